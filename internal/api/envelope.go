package api

import (
	"encoding/json"
	"fmt"
)

// Envelope is the {success, data, error} wrapper most endpoints respond with.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Detail  string          `json:"detail,omitempty"`
}

// Err returns an error when the server reported success=false.
func (e Envelope) Err() error {
	if e.Success {
		return nil
	}
	msg := e.Error
	if msg == "" {
		msg = e.Detail
	}
	if msg == "" {
		msg = e.Message
	}
	return &Error{Kind: KindStatus, Message: orDefault(msg, MsgGeneric)}
}

// DecodeEnvelope unwraps raw into T. A success=false envelope becomes an
// *Error. Bodies that are not an envelope are decoded into T directly.
func DecodeEnvelope[T any](raw json.RawMessage) (T, error) {
	var zero T

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err == nil {
		if _, ok := probe["success"]; ok {
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				return zero, decodeError(err)
			}
			if err := env.Err(); err != nil {
				return zero, err
			}
			if len(env.Data) == 0 {
				return zero, nil
			}
			raw = env.Data
		}
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, decodeError(err)
	}
	return out, nil
}

func decodeError(err error) error {
	return &Error{Kind: KindDecode, Message: MsgInvalidBody, Err: fmt.Errorf("decode: %w", err)}
}
