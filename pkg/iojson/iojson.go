// Package iojson writes and reads JSON for command line output and input.
package iojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Error is the JSON shape of a failed command.
type Error struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// StatusError is implemented by errors that carry an HTTP status and an
// error kind, such as *api.Error.
type StatusError interface {
	error
	HTTPStatus() int
	KindName() string
}

func jsonError(msg string, jsonErr error) string {
	msgBytes, _ := json.Marshal(msg)
	errBytes, _ := json.Marshal(jsonErr.Error())
	return fmt.Sprintf(`{"message":%s,"data":{"json_error":%s}}`, msgBytes, errBytes)
}

// MarshalError renders msg and data as indented JSON. If marshaling fails
// the result is a hand built object naming the marshal error.
func MarshalError(msg string, data map[string]any) string {
	bits, err := json.MarshalIndent(Error{Message: msg, Data: data}, "", "  ")
	if err != nil {
		return jsonError(msg, err)
	}
	return string(bits)
}

// ErrorData extracts the status and kind of err when it carries them.
func ErrorData(err error) map[string]any {
	var se StatusError
	if !errors.As(err, &se) {
		return nil
	}
	data := map[string]any{"kind": se.KindName()}
	if status := se.HTTPStatus(); status != 0 {
		data["status"] = status
	}
	return data
}

// WriteErrorTo writes err as JSON to w.
func WriteErrorTo(w io.Writer, err error) error {
	_, werr := fmt.Fprintln(w, MarshalError(err.Error(), ErrorData(err)))
	return werr
}

// WriteError writes err as JSON to stderr.
func WriteError(err error) error {
	return WriteErrorTo(os.Stderr, err)
}

// WriteWith writes obj as indented JSON to w. Marshal failures are reported
// on ew.
func WriteWith(w io.Writer, ew io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		_, err = fmt.Fprintln(ew, jsonError("error marshaling in iojson.Write", err))
		return err
	}

	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// Write calls WriteWith with [os.Stdout] and [os.Stderr]
func Write(obj any) error {
	return WriteWith(os.Stdout, os.Stderr, obj)
}

// WriteLine writes obj as a single line of JSON to w.
func WriteLine(w io.Writer, obj any) error {
	bits, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintln(w, string(bits))
	return err
}
