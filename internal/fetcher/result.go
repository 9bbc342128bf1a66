package fetcher

import "fmt"

// ErrorKind classifies the outcome of a fetch.
type ErrorKind int

const (
	// KindNone means the fetch succeeded.
	KindNone ErrorKind = iota
	// KindBlocked means the URL targets a private address and was never attempted.
	KindBlocked
	// KindHTTPClient is a 4xx response. It is never retried.
	KindHTTPClient
	// KindHTTPServer is a 5xx response that persisted through every retry.
	KindHTTPServer
	// KindTransport is a timeout, connect or read error that persisted through every retry.
	KindTransport
	// KindUnexpected is any other error. It is never retried.
	KindUnexpected
	// KindSoftFailure is a successful response whose body looks unusable.
	KindSoftFailure
)

// String returns the name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBlocked:
		return "blocked"
	case KindHTTPClient:
		return "http_client_error"
	case KindHTTPServer:
		return "http_server_error"
	case KindTransport:
		return "transport_error"
	case KindUnexpected:
		return "unexpected"
	case KindSoftFailure:
		return "soft_failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Result is the outcome of one fetch, produced after retries are exhausted.
type Result struct {
	// URL is the requested URL, exactly as given.
	URL string

	// Content is the decoded body. It is set on success and on soft failure.
	Content string

	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int

	// Kind is KindNone on success.
	Kind ErrorKind

	// Detail describes transport and unexpected errors.
	Detail string

	// FromCache is true if the content came from the page cache.
	FromCache bool

	// FetchTimeMS is the duration of the final network attempt.
	FetchTimeMS int64
}

// Success reports whether the fetch produced usable content.
func (r Result) Success() bool {
	return r.Kind == KindNone
}

// ErrorMessage renders the failure as a short message, or "" on success.
func (r Result) ErrorMessage() string {
	switch r.Kind {
	case KindNone:
		return ""
	case KindBlocked:
		return "blocked_private_url"
	case KindHTTPClient, KindHTTPServer:
		return fmt.Sprintf("HTTP %d", r.StatusCode)
	case KindTransport:
		return "Max retries exceeded: " + r.Detail
	case KindUnexpected:
		return "Unexpected: " + r.Detail
	case KindSoftFailure:
		return "soft_failure"
	default:
		return r.Kind.String()
	}
}
