package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeValid(t *testing.T) {
	for _, typ := range EventTypes {
		assert.True(t, typ.Valid(), "%s should be valid", typ)
	}
	assert.False(t, EventType("").Valid())
	assert.False(t, EventType("sys_start").Valid())
	assert.False(t, EventType("SYS_RESTART").Valid())
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(EventSysStart, nil)
	assert.Equal(t, EventSysStart, ev.Type)
	assert.Equal(t, EventVersion, ev.Version)
	assert.NotNil(t, ev.Payload)
	assert.Empty(t, ev.Payload)
}

func TestEncodeRecord(t *testing.T) {
	raw, err := EncodeRecord(Event{Type: EventSysStop, Version: EventVersion})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"SYS_STOP","version":"1.0","payload":{}}`, string(raw))
	assert.NotContains(t, string(raw), "\n")
}

func TestEncodeRecordEscapesNewlines(t *testing.T) {
	raw, err := EncodeRecord(NewEvent(EventUserAction, map[string]any{"text": "line1\nline2"}))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "\n", "records must stay on one line")
}

func TestDecodeRecord(t *testing.T) {
	ev, err := DecodeRecord([]byte(`{"type":"USER_ACTION","version":"1.0","payload":{"step":3,"tags":["a"]}}`))
	require.NoError(t, err)

	assert.Equal(t, EventUserAction, ev.Type)
	assert.Equal(t, EventVersion, ev.Version)
	assert.Equal(t, json.Number("3"), ev.Payload["step"])
	assert.Equal(t, []any{"a"}, ev.Payload["tags"])
}

func TestDecodeRecordIgnoresUnknownFields(t *testing.T) {
	ev, err := DecodeRecord([]byte(`{"id":"abc","type":"SYS_START","version":"1.0","payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, MustEventID(NewEvent(EventSysStart, nil)), MustEventID(ev))
}

func TestDecodeRecordMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ``},
		{"truncated", `{"type":"USER_ACTION","version":"1.0","payload":{"step":3}`},
		{"not an object", `["SYS_START"]`},
		{"scalar", `42`},
		{"unknown type", `{"type":"SYS_PAUSE","version":"1.0","payload":{}}`},
		{"type not a string", `{"type":1,"version":"1.0","payload":{}}`},
		{"missing type", `{"version":"1.0","payload":{}}`},
		{"wrong version", `{"type":"SYS_START","version":"2.0","payload":{}}`},
		{"numeric version", `{"type":"SYS_START","version":1.0,"payload":{}}`},
		{"missing payload", `{"type":"SYS_START","version":"1.0"}`},
		{"null payload", `{"type":"SYS_START","version":"1.0","payload":null}`},
		{"array payload", `{"type":"SYS_START","version":"1.0","payload":[]}`},
		{"two records on one line", `{"type":"SYS_START","version":"1.0","payload":{}}{"type":"SYS_STOP","version":"1.0","payload":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord([]byte(tt.line))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestValidateEvent(t *testing.T) {
	require.NoError(t, ValidateEvent(NewEvent(EventUserAction, map[string]any{"a": []any{1, nil}})))
	require.NoError(t, ValidateEvent(Event{Type: EventSysStart, Version: EventVersion}))

	tests := []struct {
		name  string
		event Event
		field string
	}{
		{"unknown type", Event{Type: "BOGUS", Version: EventVersion}, "type"},
		{"empty type", Event{Version: EventVersion}, "type"},
		{"wrong version", Event{Type: EventSysStart, Version: "0.9"}, "version"},
		{"empty version", Event{Type: EventSysStart}, "version"},
		{"channel payload", NewEvent(EventUserAction, map[string]any{"c": make(chan int)}), "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvent(tt.event)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
