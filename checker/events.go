package checker

import "github.com/lukemcguire/mdlinkcheck/result"

// CheckEvent reports progress for a single checked link.
type CheckEvent struct {
	Document string
	URL      string
	Status   result.Status
	Reason   string
	Checked  int
	Failed   int
}
