package domain

// FailurePolicy defines what a handler does when a dependency fails
type FailurePolicy int

const (
	// FailClosed rejects the request with a generic error
	FailClosed FailurePolicy = iota
	// FailOpen continues with safe defaults
	FailOpen
)

// per-handler failure policies
const (
	FlagsReadPolicy        = FailOpen   // GET /api/flags serves defaults (all features off)
	FlagsWritePolicy       = FailClosed // PUT /api/flags reports the error
	ContactSendPolicy      = FailClosed // POST /api/contact returns generic error
	ContactRateCheckPolicy = FailOpen   // rate limit check errors let the request through
)

// String returns policy name
func (p FailurePolicy) String() string {
	switch p {
	case FailOpen:
		return "fail-open"
	case FailClosed:
		return "fail-closed"
	default:
		return "unknown"
	}
}
