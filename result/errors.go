package result

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorCategory is a short, stable classification of a probe failure.
// It is used verbatim as the reason of an Errored outcome.
type ErrorCategory string

const (
	CategoryTimeout           ErrorCategory = "Timeout"
	CategoryDNSFailure        ErrorCategory = "DNSFailure"
	CategoryConnectionRefused ErrorCategory = "ConnectionRefused"
	CategoryConnectionReset   ErrorCategory = "ConnectionReset"
	CategoryTLSFailure        ErrorCategory = "TLSFailure"
	CategoryConnection        ErrorCategory = "ConnectionError"
	CategoryCancelled         ErrorCategory = "Cancelled"
	CategoryUnknown           ErrorCategory = ""
)

// Reasons that are not derived from an error value.
const (
	ReasonTooManyRedirects = "Too many redirects"
	ReasonRobotsDisallowed = "Disallowed by robots.txt"
	unexpectedPrefix       = "Unexpected: "
	taskExceptionPrefix    = "Task Exception: "
)

// ClassifyError maps a transport error onto a network failure category.
// It returns CategoryUnknown for errors that are not network failures.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	// Timeouts first: url.Error and net.OpError both report them.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}

	if errors.Is(err, context.Canceled) {
		return CategoryCancelled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CategoryDNSFailure
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return CategoryConnectionRefused
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return CategoryConnectionReset
	}

	if isTLSError(err) {
		return CategoryTLSFailure
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CategoryConnection
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return CategoryConnection
	}

	return CategoryUnknown
}

func isTLSError(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		recordErr    tls.RecordHeaderError
		alertErr     tls.AlertError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}

// FailureReason turns a probe error into the reason of an Errored outcome:
// the network category when there is one, otherwise "Unexpected: <type>".
func FailureReason(err error) string {
	if cat := ClassifyError(err); cat != CategoryUnknown {
		return string(cat)
	}
	return unexpectedPrefix + TypeName(err)
}

// TaskExceptionReason describes a panic that escaped a single link check.
func TaskExceptionReason(recovered any) string {
	if err, ok := recovered.(error); ok {
		return taskExceptionPrefix + TypeName(err)
	}
	return taskExceptionPrefix + strings.TrimPrefix(fmt.Sprintf("%T", recovered), "*")
}

// UnexpectedReason formats a catch-all reason for a named failure.
func UnexpectedReason(name string) string {
	return unexpectedPrefix + name
}

// TypeName returns the type name of the innermost wrapped error,
// without the pointer marker (e.g. "url.Error", "net.OpError").
func TypeName(err error) string {
	if err == nil {
		return "nil"
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

// FormatStatus returns a human-readable label for an outcome status.
func FormatStatus(s Status) string {
	switch s {
	case StatusValid:
		return "Valid Links"
	case StatusBroken:
		return "Broken Links"
	case StatusErrored:
		return "Errored Links"
	default:
		return "Other"
	}
}
