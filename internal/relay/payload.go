package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// PayloadTooLargeError reports a payload whose encoded size exceeds the relay ceiling.
type PayloadTooLargeError struct {
	Size  int
	Limit int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload is %d bytes, exceeds relay policy limit of %d bytes", e.Size, e.Limit)
}

// PayloadShapeError reports a payload that is not a single JSON object.
type PayloadShapeError struct {
	Reason string
	Err    error
}

func (e *PayloadShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payload must be a JSON object: %s: %v", e.Reason, e.Err)
	}
	return "payload must be a JSON object: " + e.Reason
}

func (e *PayloadShapeError) Unwrap() error { return e.Err }

// ParsePayload enforces maxBytes on the UTF-8 encoding of raw before decoding
// it, then requires a single JSON object. An empty payload is {}. A maxBytes
// of zero disables the size check.
func ParsePayload(raw string, maxBytes int) (map[string]any, error) {
	if size := len(raw); maxBytes > 0 && size > maxBytes {
		return nil, &PayloadTooLargeError{Size: size, Limit: maxBytes}
	}
	if len(bytes.TrimSpace([]byte(raw))) == 0 {
		raw = "{}"
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, &PayloadShapeError{Reason: "invalid JSON", Err: err}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, &PayloadShapeError{Reason: "trailing data after JSON value"}
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, &PayloadShapeError{Reason: fmt.Sprintf("got %s", jsonKind(decoded))}
	}
	return obj, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
