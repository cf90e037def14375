package tweet

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrNotStatus is returned for records that are valid JSON but do not
// represent a status: delete and withheld envelopes, rate-limit notices,
// and blank lines. Callers skip these and keep going.
var ErrNotStatus = errors.New("record is not a status")

// DecodeError indicates a structurally invalid record. It is reported per
// record and never aborts the surrounding file.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode status: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses one raw record into a Status. The record is expected to be
// a single line of UTF-8 JSON with clean boundaries; decompression and
// control-character stripping happen upstream.
func Decode(line []byte) (*Status, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, ErrNotStatus
	}

	var st Status
	if err := json.Unmarshal(line, &st); err != nil {
		return nil, &DecodeError{Err: err}
	}

	// Stream control records (e.g. {"delete": {...}}, {"limit": {...}})
	// carry no top-level status id.
	if st.ID == 0 {
		return nil, ErrNotStatus
	}
	return &st, nil
}
