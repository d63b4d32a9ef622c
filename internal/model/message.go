package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message actions exchanged between the controller and the orchestrator.
const (
	// ActionCollectAll asks the orchestrator to scan every open tab.
	ActionCollectAll = "collectAllDownloadLinks"

	// ActionCollectionComplete carries a finished AggregateOutcome.
	ActionCollectionComplete = "collectionComplete"

	// ActionCollectionError carries an orchestration-level failure.
	ActionCollectionError = "collectionError"
)

// ErrUnknownAction is returned when a request carries an unexpected action.
var ErrUnknownAction = errors.New("unknown action")

// ScanSettings is the part of the user settings passed into every scan.
type ScanSettings struct {
	// AllowVariations enables the word-boundary match ("Download Now").
	AllowVariations bool `json:"allowVariations"`
}

// CollectRequest is sent by the controller to start one collection run.
type CollectRequest struct {
	Action    string       `json:"action"`
	RequestID string       `json:"requestId"`
	Settings  ScanSettings `json:"settings"`
}

// NewCollectRequest builds a collection request with the given ID.
func NewCollectRequest(requestID string, allowVariations bool) CollectRequest {
	return CollectRequest{
		Action:    ActionCollectAll,
		RequestID: requestID,
		Settings:  ScanSettings{AllowVariations: allowVariations},
	}
}

// Validate checks that the request asks for a collection.
func (r CollectRequest) Validate() error {
	if r.Action != ActionCollectAll {
		return fmt.Errorf("%w: %q", ErrUnknownAction, r.Action)
	}
	return nil
}

// Message is the single response published for a CollectRequest.
// Exactly one of the complete or error shapes is populated, selected by Action.
type Message struct {
	Action    string      `json:"action"`
	RequestID string      `json:"requestId,omitempty"`
	Success   bool        `json:"success"`
	LinkCount int         `json:"linkCount"`
	TabCount  int         `json:"tabCount"`
	Results   []TabResult `json:"results,omitempty"`
	Error     string      `json:"error,omitempty"`

	// outcome keeps the run statistics when the message never leaves the process.
	outcome *AggregateOutcome
}

// CompleteMessage wraps a finished outcome.
func CompleteMessage(outcome *AggregateOutcome) Message {
	return Message{
		Action:    ActionCollectionComplete,
		RequestID: outcome.RequestID,
		Success:   outcome.Success,
		LinkCount: outcome.TotalLinkCount,
		TabCount:  outcome.TabCount,
		Results:   outcome.TabResults,
		outcome:   outcome,
	}
}

// ErrorMessage reports an orchestration-level failure for a request.
func ErrorMessage(requestID, reason string) Message {
	return Message{
		Action:    ActionCollectionError,
		RequestID: requestID,
		Error:     reason,
	}
}

// MarshalJSON encodes the complete shape, or only action, requestId and
// error for a collectionError.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.IsError() {
		return json.Marshal(struct {
			Action    string `json:"action"`
			RequestID string `json:"requestId,omitempty"`
			Error     string `json:"error"`
		}{Action: m.Action, RequestID: m.RequestID, Error: m.Error})
	}
	type wire Message
	return json.Marshal(wire(m))
}

// IsComplete reports whether the message carries an outcome.
func (m Message) IsComplete() bool {
	return m.Action == ActionCollectionComplete
}

// IsError reports whether the message carries a failure.
func (m Message) IsError() bool {
	return m.Action == ActionCollectionError
}

// Outcome rebuilds the AggregateOutcome carried by a complete message.
// When the message was created in-process the original outcome is returned.
// It returns nil for error messages.
func (m Message) Outcome() *AggregateOutcome {
	if !m.IsComplete() {
		return nil
	}
	if m.outcome != nil {
		return m.outcome
	}
	results := m.Results
	if results == nil {
		results = make([]TabResult, 0)
	}
	return &AggregateOutcome{
		RequestID:      m.RequestID,
		Success:        m.Success,
		TotalLinkCount: m.LinkCount,
		TabCount:       m.TabCount,
		TabResults:     results,
	}
}
