// Package result holds the structured outcome of a link check: per-link
// outcomes, per-document results and the aggregate report for one invocation.
package result

// Status classifies the outcome of probing one link.
type Status string

const (
	StatusValid   Status = "valid"
	StatusBroken  Status = "broken"
	StatusErrored Status = "errored"
)

// LinkOutcome is the result of validating a single URL.
// Reason is empty for valid links.
type LinkOutcome struct {
	Status Status
	Reason string
}

// Valid returns a Valid outcome.
func Valid() LinkOutcome { return LinkOutcome{Status: StatusValid} }

// Broken returns a Broken outcome with the given reason.
func Broken(reason string) LinkOutcome { return LinkOutcome{Status: StatusBroken, Reason: reason} }

// Errored returns an Errored outcome with the given reason.
func Errored(reason string) LinkOutcome { return LinkOutcome{Status: StatusErrored, Reason: reason} }

// FailedLink is a URL paired with the reason it was not valid.
type FailedLink struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// DocumentCheckResult is the outcome of checking every link in one document.
// Each extracted link appears in exactly one of Valid, Broken or Errors.
type DocumentCheckResult struct {
	Total  int          `json:"total"`
	Valid  []string     `json:"valid"`
	Broken []FailedLink `json:"broken"`
	Errors []FailedLink `json:"errors"`
}

// NewDocumentCheckResult returns an empty result with non-nil collections so
// that JSON output always renders arrays.
func NewDocumentCheckResult() DocumentCheckResult {
	return DocumentCheckResult{
		Valid:  []string{},
		Broken: []FailedLink{},
		Errors: []FailedLink{},
	}
}

// Add records the outcome for url.
func (d *DocumentCheckResult) Add(url string, outcome LinkOutcome) {
	switch outcome.Status {
	case StatusValid:
		d.Valid = append(d.Valid, url)
	case StatusBroken:
		d.Broken = append(d.Broken, FailedLink{URL: url, Reason: reasonOr(outcome.Reason, "Unknown")})
	default:
		d.Errors = append(d.Errors, FailedLink{URL: url, Reason: reasonOr(outcome.Reason, "Unknown Error")})
	}
}

// Consistent reports whether the collection sizes add up to Total.
func (d DocumentCheckResult) Consistent() bool {
	return len(d.Valid)+len(d.Broken)+len(d.Errors) == d.Total
}

// HasFailures reports whether any link was broken or errored.
func (d DocumentCheckResult) HasFailures() bool {
	return len(d.Broken) > 0 || len(d.Errors) > 0
}

func reasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}
