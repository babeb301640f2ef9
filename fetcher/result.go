package fetcher

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// ErrorDomain identifies the layer a job failure originated from.
type ErrorDomain int

const (
	// DomainFilesystem covers local file creation and open failures.
	DomainFilesystem ErrorDomain = iota
	// DomainTransport covers DNS, connect, TLS, redirect and protocol
	// failures reported while talking to the remote side.
	DomainTransport
)

func (d ErrorDomain) String() string {
	switch d {
	case DomainFilesystem:
		return "filesystem"
	case DomainTransport:
		return "transport"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// Code values carried by DomainTransport errors. DomainFilesystem
// errors carry the raw errno of the failing call instead.
const (
	CodeTransportOther = iota + 1
	CodeTransportDNS
	CodeTransportConnect
	CodeTransportTLS
	CodeTransportTimeout
)

// FetchError describes a failed job. Exactly one of a FetchError or a
// status code is reported per job, never both.
type FetchError struct {
	// Code is the errno for DomainFilesystem errors and one of the
	// CodeTransport values for DomainTransport errors.
	Code int
	// Domain tells which layer failed.
	Domain ErrorDomain
	// Context is the URI or path implicated in the failure.
	Context string
	// Cause is the underlying error.
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s error %d at %s: %v", e.Domain, e.Code, e.Context, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// newFilesystemError wraps a local file failure, pulling the errno out
// of the wrapped syscall error when present.
func newFilesystemError(path string, err error) *FetchError {
	var errno syscall.Errno
	code := 0
	if errors.As(err, &errno) {
		code = int(errno)
	}
	return &FetchError{Code: code, Domain: DomainFilesystem, Context: path, Cause: err}
}

func newTransportError(uri string, err error) *FetchError {
	return &FetchError{Code: classifyTransport(err), Domain: DomainTransport, Context: uri, Cause: err}
}

// classifyTransport maps a transport failure to a stable code so
// callers can branch without string matching.
func classifyTransport(err error) int {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeTransportDNS
	}
	var recordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &recordErr) || errors.As(err, &certErr) ||
		errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) {
		return CodeTransportTLS
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return CodeTransportConnect
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTransportTimeout
	}
	return CodeTransportOther
}

// FetchResult is the outcome a worker reports for one job: a status
// code in the HTTP convention, or a structured error when the job
// failed before a status was obtained.
type FetchResult struct {
	// Status is the final HTTP status code. Git jobs synthesize 200 on
	// a zero subprocess exit and surface the raw exit code otherwise.
	Status int
	// Err is non-nil when the job failed without producing a status.
	Err *FetchError
}

// OK reports whether the job ran and succeeded.
func (r FetchResult) OK() bool { return r.Err == nil && r.Status == http.StatusOK }
