package domain

import "time"

// Outcome classifies the result of a single network attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTimeout
	OutcomeNetworkError
	OutcomeBadStatus
	OutcomeMalformedBody
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeNetworkError:
		return "network_error"
	case OutcomeBadStatus:
		return "bad_status"
	case OutcomeMalformedBody:
		return "malformed_body"
	default:
		return "unknown"
	}
}

// Reachable reports whether the outcome proves the backend answered at all.
func (o Outcome) Reachable() bool {
	return o == OutcomeSuccess || o == OutcomeMalformedBody || o == OutcomeBadStatus
}

// DispatchAttempt records one network call made while dispatching a message.
// It only lives for the duration of one Dispatch call.
type DispatchAttempt struct {
	Endpoint   Endpoint  `json:"endpoint"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
	Outcome    Outcome   `json:"-"`
	StatusCode int       `json:"statusCode,omitempty"`
	Err        error     `json:"-"`
}

// Healthy reports whether this attempt should mark its endpoint as healthy.
// Server-side failures (5xx) count as unhealthy, client-side rejections do not.
func (a DispatchAttempt) Healthy() bool {
	if a.Outcome == OutcomeBadStatus {
		return a.StatusCode < 500
	}
	return a.Outcome.Reachable()
}

// RawResponse is a successful backend answer, before normalization.
type RawResponse struct {
	Endpoint   Endpoint
	StatusCode int
	Body       []byte
	Attempts   []DispatchAttempt
}
