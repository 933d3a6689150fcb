package xagent

import (
	"encoding/json"
)

// JSONCodec is the default codec: it writes the Record form and re-validates on decode.
// Numeric payload values come back as float64, as with any JSON round trip.
type JSONCodec struct{}

func (JSONCodec) Marshal(msg Message) ([]byte, error) { return json.Marshal(msg.Record()) }

func (JSONCodec) Unmarshal(data []byte) (Message, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Message{}, err
	}
	return FromRecord(r)
}

func (JSONCodec) Name() string { return "json" }

// DecodePayload converts a structured payload (typically map[string]any) into T
// by way of the JSON representation.
func DecodePayload[T any](msg Message) (T, error) {
	var v T
	data, err := json.Marshal(msg.payload)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}
