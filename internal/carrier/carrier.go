package carrier

import (
	"encoding/json"
	"errors"
	"fmt"
)

// State is the flow state threaded through the modal sequence in each
// view's private_metadata field. Slack echoes the string back verbatim on
// submission; this round trip is the only persistence the service has.
type State struct {
	Model     string `json:"model,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

// ErrCorruptState marks metadata that did not survive the round trip.
var ErrCorruptState = errors.New("corrupt modal state")

// Encode packs the state into an opaque string for private_metadata.
func (s State) Encode() string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Decode unpacks a string produced by Encode. Anything else fails with an
// error wrapping ErrCorruptState.
func Decode(raw string) (State, error) {
	if raw == "" {
		return State{}, fmt.Errorf("%w: empty metadata", ErrCorruptState)
	}
	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return s, nil
}
