package xagent

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// TimestampLayout is the fixed UTC text format every Message timestamp must match.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Conventional lifecycle statuses.
const (
	StatusPending = "PENDING"
	StatusOK      = "OK"
	StatusError   = "ERROR"
)

// ControlType is the reserved type prefix of control messages.
const ControlType = "control"

// Message is the immutable envelope exchanged between agents.
// Construct it with NewMessage; the zero value is not a valid message.
type Message struct {
	typ       string
	source    string
	target    string
	timestamp string
	payload   any
	status    string
	context   map[string]any
}

// Record is the lossless structured form of a Message, exposing every field by name.
type Record struct {
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Target    string         `json:"target"`
	Timestamp string         `json:"timestamp"`
	Payload   any            `json:"payload"`
	Status    string         `json:"status"`
	Context   map[string]any `json:"context"`
}

// NewMessage validates the fields and returns an immutable Message.
// It fails with *ValidationError when type, source, target or status are empty,
// payload or context are nil, or timestamp does not match TimestampLayout.
func NewMessage(typ, source, target, timestamp string, payload any, status string, context map[string]any) (Message, error) {
	switch {
	case typ == "":
		return Message{}, &ValidationError{Field: "type", Reason: "is required"}
	case source == "":
		return Message{}, &ValidationError{Field: "source", Reason: "is required"}
	case target == "":
		return Message{}, &ValidationError{Field: "target", Reason: "is required"}
	case isNil(payload):
		return Message{}, &ValidationError{Field: "payload", Reason: "is required"}
	case status == "":
		return Message{}, &ValidationError{Field: "status", Reason: "is required"}
	case context == nil:
		return Message{}, &ValidationError{Field: "context", Reason: "must be a map (can be empty)"}
	}
	// time.Parse tolerates fractional seconds; the round trip rejects them.
	if t, err := time.Parse(TimestampLayout, timestamp); err != nil || t.Format(TimestampLayout) != timestamp {
		return Message{}, &ValidationError{
			Field:  "timestamp",
			Reason: fmt.Sprintf("must be UTC like 2025-01-01T00:00:00Z, got %q", timestamp),
		}
	}
	return Message{
		typ:       typ,
		source:    source,
		target:    target,
		timestamp: timestamp,
		payload:   cloneValue(payload),
		status:    status,
		context:   cloneMap(context),
	}, nil
}

// FromRecord builds a Message from its structured form, validating it.
func FromRecord(r Record) (Message, error) {
	return NewMessage(r.Type, r.Source, r.Target, r.Timestamp, r.Payload, r.Status, r.Context)
}

// FormatTimestamp renders t in TimestampLayout (UTC, second precision).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func (m Message) Type() string      { return m.typ }
func (m Message) Source() string    { return m.source }
func (m Message) Target() string    { return m.target }
func (m Message) Timestamp() string { return m.timestamp }
func (m Message) Status() string    { return m.status }

// Payload returns a copy of the payload.
func (m Message) Payload() any { return cloneValue(m.payload) }

// Context returns a copy of the context map; never nil for a valid message.
func (m Message) Context() map[string]any { return cloneMap(m.context) }

// Time returns the parsed timestamp.
func (m Message) Time() time.Time {
	t, _ := time.Parse(TimestampLayout, m.timestamp)
	return t
}

// IsZero reports whether m was not produced by NewMessage.
func (m Message) IsZero() bool { return m.typ == "" }

// IsControl reports whether the message carries the reserved control prefix.
func (m Message) IsControl() bool { return strings.HasPrefix(m.typ, ControlType) }

// ContextString returns the context value under key when it is a string.
func (m Message) ContextString(key string) (string, bool) {
	s, ok := m.context[key].(string)
	return s, ok
}

// WithStatus returns a copy of m carrying a new status.
func (m Message) WithStatus(status string) (Message, error) {
	return NewMessage(m.typ, m.source, m.target, m.timestamp, m.payload, status, m.context)
}

// WithPayload returns a copy of m carrying a new payload.
func (m Message) WithPayload(payload any) (Message, error) {
	return NewMessage(m.typ, m.source, m.target, m.timestamp, payload, m.status, m.context)
}

// WithContext returns a copy of m whose context is extended by kv.
func (m Message) WithContext(kv map[string]any) (Message, error) {
	ctx := cloneMap(m.context)
	if ctx == nil {
		ctx = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		ctx[k] = v
	}
	return NewMessage(m.typ, m.source, m.target, m.timestamp, m.payload, m.status, ctx)
}

// Reply builds a response addressed back to m's source.
func (m Message) Reply(typ, timestamp string, payload any, status string) (Message, error) {
	return NewMessage(typ, m.target, m.source, timestamp, payload, status, map[string]any{})
}

// Record returns the structured form of m.
func (m Message) Record() Record {
	return Record{
		Type:      m.typ,
		Source:    m.source,
		Target:    m.target,
		Timestamp: m.timestamp,
		Payload:   cloneValue(m.payload),
		Status:    m.status,
		Context:   cloneMap(m.context),
	}
}

func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Record())
}

// UnmarshalJSON decodes and re-validates; m is left untouched on failure.
func (m *Message) UnmarshalJSON(data []byte) error {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	decoded, err := FromRecord(r)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}

func (m Message) String() string {
	return fmt.Sprintf("Message{type:%s source:%s target:%s status:%s ts:%s}",
		m.typ, m.source, m.target, m.status, m.timestamp)
}

// isNil reports an absent payload, including typed nils that would encode as null.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// cloneValue copies the map/slice containers a structured payload is made of,
// so neither the producer nor a consumer can mutate a published message.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}
