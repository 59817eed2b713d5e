package schemas

import (
	"encoding/json"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Outcome discriminates the two variants of an Envelope.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

func (o Outcome) String() string { return string(o) }

// -- Result Envelope --

// Envelope is the uniform result of every client-facing API operation.
// A success carries the raw JSON payload in Data; an error carries Message.
type Envelope struct {
	Result  Outcome         `json:"result"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`

	// Status is the HTTP status code of the response the envelope was built
	// from, or 0 when no request was made.
	Status int `json:"-"`
}

// Success builds a success envelope around an already encoded payload.
func Success(data json.RawMessage) Envelope {
	return Envelope{Result: OutcomeSuccess, Data: data}
}

// Failure builds an error envelope.
func Failure(message string) Envelope {
	return Envelope{Result: OutcomeError, Message: message}
}

// Failuref builds an error envelope with a formatted message.
func Failuref(format string, args ...any) Envelope {
	return Failure(fmt.Sprintf(format, args...))
}

// OK reports whether the envelope is the success variant.
func (e Envelope) OK() bool { return e.Result == OutcomeSuccess }

// Err converts an error envelope into a Go error. It returns nil for a success.
func (e Envelope) Err() error {
	if e.OK() {
		return nil
	}
	return &APIError{Message: e.Message, Status: e.Status}
}

// APIError is the error form of an error envelope.
type APIError struct {
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
	}
	return "api error: " + e.Message
}

// ErrNoPayload is returned by Decode when a success envelope carries no data.
var ErrNoPayload = errors.New("envelope carries no payload")

// Decode unmarshals the payload of a success envelope into T.
func Decode[T any](e Envelope) (T, error) {
	var out T
	if err := e.Err(); err != nil {
		return out, err
	}
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return out, ErrNoPayload
	}
	if err := jsoniter.Unmarshal(e.Data, &out); err != nil {
		return out, fmt.Errorf("failed to decode envelope payload: %w", err)
	}
	return out, nil
}
