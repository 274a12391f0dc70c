package domain

import (
	"net/http"
	"net/url"
)

// BodyShape identifies which request body a backend endpoint expects.
type BodyShape int

const (
	// ShapeMessage is the conversational body: {message, session_id, history}.
	ShapeMessage BodyShape = iota
	// ShapeSequence is the analysis body: {sequence, analysis_type}.
	ShapeSequence
	// ShapeQuery is the legacy body: {query, session_id}.
	ShapeQuery
)

func (s BodyShape) String() string {
	switch s {
	case ShapeSequence:
		return "sequence"
	case ShapeQuery:
		return "query"
	default:
		return "message"
	}
}

// Endpoint is one candidate backend URL. Candidates are static configuration
// ordered by priority.
type Endpoint struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	BodyShape BodyShape `json:"-"`
}

// Origin returns scheme://host[:port] of the endpoint. It names a backend in
// health reports.
func (e Endpoint) Origin() string {
	u, err := url.Parse(e.URL)
	if err != nil || u.Host == "" {
		return e.URL
	}
	return u.Scheme + "://" + u.Host
}

// HasBody reports whether a request body is sent to this endpoint.
func (e Endpoint) HasBody() bool {
	return e.Method != http.MethodGet
}

// RequestBody carries every field any body shape can need. Payload renders
// the wire object for one specific shape.
type RequestBody struct {
	Message      string
	Sequence     string
	AnalysisType string
	SessionID    string
	History      []Message
}

type sequencePayload struct {
	Sequence     string `json:"sequence"`
	AnalysisType string `json:"analysis_type"`
}

type messagePayload struct {
	Message   string    `json:"message"`
	SessionID string    `json:"session_id"`
	History   []Message `json:"history,omitempty"`
}

type queryPayload struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// Payload returns the JSON-encodable body for the given shape.
func (b RequestBody) Payload(shape BodyShape) any {
	switch shape {
	case ShapeSequence:
		return sequencePayload{Sequence: b.Sequence, AnalysisType: b.AnalysisType}
	case ShapeQuery:
		return queryPayload{Query: b.Message, SessionID: b.SessionID}
	default:
		return messagePayload{Message: b.Message, SessionID: b.SessionID, History: b.History}
	}
}
