package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roelbroersma/kerong-BT-lock/protocol"
)

func TestRequestLogsDecodesEntries(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, ft)
	require.NoError(t, s.Connect())

	var entries []LogEntry
	s.Events().LogReceived.AddCallback(func(data map[string]interface{}) {
		entries = append(entries, data["entry"].(LogEntry))
	})

	require.NoError(t, s.RequestLogs())

	payload := []byte{byte(protocol.TypeAdmin)}
	payload = append(payload, 0x01, 0x58, 0x14, 0x01, 0x54, 0x70) // 15814015470
	payload = append(payload, 0x24, 0x07, 0x15, 0x09, 0x30)       // 2024-07-15 09:30
	ft.push(protocol.CmdLog, protocol.StatusSuccess, payload)

	require.Len(t, entries, 1)
	assert.Equal(t, protocol.TypeAdmin, entries[0].Actor)
	assert.Equal(t, "15814015470", entries[0].Phone)
	assert.Equal(t, "2024-07-15 09:30", entries[0].Timestamp)
}

func TestLogNotificationsNeverCrashTheSession(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(t, ft)
	require.NoError(t, s.Connect())

	assert.NotPanics(t, func() {
		ft.push(protocol.CmdLog, protocol.Status(0x80), nil)        // error status
		ft.push(protocol.CmdLog, protocol.StatusSuccess, []byte{1}) // short payload
	})
	assert.True(t, s.Connected())
}

func TestDecodeLogEntryInvalidTimestamp(t *testing.T) {
	payload := []byte{byte(protocol.TypeUser)}
	payload = append(payload, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00)
	payload = append(payload, 0x24, 0x13, 0x15, 0x09, 0x30) // month 13

	entry, err := decodeLogEntry(payload)
	require.NoError(t, err)
	assert.Contains(t, entry.Timestamp, "invalid-bcd")
}
