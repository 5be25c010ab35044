package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tablekeep/vtt/pkg/core"
)

// ErrMalformed marks a stored or pushed aggregate without a scenes array.
var ErrMalformed = errors.New("malformed scene aggregate")

// Encode renders the persisted aggregate. A nil scene list encodes as [].
func Encode(st core.State) (json.RawMessage, error) {
	if st.Scenes == nil {
		st.Scenes = []core.Scene{}
	}
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode aggregate: %w", err)
	}
	return data, nil
}

// Decode parses a persisted aggregate. The scenes member must be present and
// an array.
func Decode(raw json.RawMessage) (core.State, error) {
	var probe struct {
		Scenes json.RawMessage `json:"scenes"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return core.State{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(probe.Scenes), []byte("[")) {
		return core.State{}, fmt.Errorf("%w: scenes is not an array", ErrMalformed)
	}
	var st core.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return core.State{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return st, nil
}
