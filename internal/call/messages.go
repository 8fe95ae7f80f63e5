package call

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Data message types sent by the agent.
const (
	MessageTranscript   = "transcript"
	MessageScriptUpdate = "script_update"
)

// DataMessage is the JSON envelope of an agent data-channel payload.
type DataMessage struct {
	Type   string `json:"type"`
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text,omitempty"`
	StepID StepID `json:"stepId,omitempty"`
}

// StepID accepts both "3" and 3 on the wire.
type StepID string

func (s *StepID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = StepID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("stepId: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("stepId %s is not an integer", n)
	}
	*s = StepID(n.String())
	return nil
}

// DecodeDataMessage parses one payload. Invalid UTF-8 and invalid JSON are
// errors; unknown types are returned as-is for the caller to drop.
func DecodeDataMessage(payload []byte) (DataMessage, error) {
	if !utf8.Valid(payload) {
		return DataMessage{}, fmt.Errorf("payload is not valid UTF-8")
	}
	var msg DataMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return DataMessage{}, fmt.Errorf("decode data message: %w", err)
	}
	return msg, nil
}

// EncodeTranscript builds a transcript payload. The development backend's
// agent uses it.
func EncodeTranscript(sender, text string) []byte {
	data, _ := json.Marshal(DataMessage{Type: MessageTranscript, Sender: sender, Text: text})
	return data
}

// EncodeScriptUpdate builds a script_update payload.
func EncodeScriptUpdate(stepID string) []byte {
	data, _ := json.Marshal(DataMessage{Type: MessageScriptUpdate, StepID: StepID(stepID)})
	return data
}
