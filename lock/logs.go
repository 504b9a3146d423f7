package lock

import (
	"fmt"

	"github.com/roelbroersma/kerong-BT-lock/protocol"
)

// LogEntry is one decoded access log record.
type LogEntry struct {
	Actor     protocol.RecordType
	Phone     string
	Timestamp string
}

// RequestLogs asks the lock to replay its access log. Entries are
// informational: each 0x72 notification is decoded and surfaced through the
// LogReceived event and the logger; no correlation slot is held.
func (s *Session) RequestLogs() error {
	return s.writeCommand(protocol.CmdLog, nil)
}

func (s *Session) onLog(rsp *protocol.Response) {
	if rsp.Status != protocol.StatusSuccess {
		s.logger.Warn("log notification with error status dropped", "status", rsp.Status)
		return
	}

	entry, err := decodeLogEntry(rsp.Payload)
	if err != nil {
		s.logger.Warn("corrupt log entry dropped", "err", err)
		return
	}

	s.logger.Info("lock log entry",
		"actor", entry.Actor.String(), "phone", entry.Phone, "time", entry.Timestamp)
	s.events.LogReceived.Fire(map[string]interface{}{"entry": entry})
}

// decodeLogEntry parses actor type, BCD phone digits and BCD timestamp.
func decodeLogEntry(payload []byte) (LogEntry, error) {
	if len(payload) < 12 {
		return LogEntry{}, fmt.Errorf("lock: log payload too short: %d bytes", len(payload))
	}
	return LogEntry{
		Actor:     protocol.RecordType(payload[0]),
		Phone:     protocol.BCDPhoneString(payload[1:7]),
		Timestamp: protocol.ParseDateTime(payload[7:12]),
	}, nil
}
