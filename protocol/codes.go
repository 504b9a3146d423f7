package protocol

import "fmt"

// Frame delimiters.
const (
	STX byte = 0xF5
	ETX byte = 0x5F
)

// Command bytes understood by the lock. The same byte identifies the
// outbound request and the notification it triggers.
const (
	CmdShutdown    byte = 0x07
	CmdPair        byte = 0x0F
	CmdRandomCode  byte = 0x20
	CmdAuth        byte = 0x21
	CmdBattery     byte = 0x60
	CmdCreateUser  byte = 0x68
	CmdDeleteUsers byte = 0x6B
	CmdListUsers   byte = 0x6C
	CmdLog         byte = 0x72
)

// Status is the status byte the lock reports in the ASK position of an
// inbound notification.
type Status byte

const (
	// StatusSuccess acknowledges a command or closes a multi-fragment reply.
	StatusSuccess Status = 0x10
	// StatusPartial marks an intermediate fragment of a user-list reply.
	StatusPartial Status = 0x24
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPartial:
		return "partial"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(s))
	}
}

// RecordType classifies a stored user record and the actor of a log entry.
type RecordType byte

const (
	TypeAdmin RecordType = 0x01
	TypeUser  RecordType = 0x02
	// TypeOnceUser is a one-shot credential the lock invalidates after first use.
	TypeOnceUser RecordType = 0x03
)

func (t RecordType) String() string {
	switch t {
	case TypeAdmin:
		return "admin"
	case TypeUser:
		return "user"
	case TypeOnceUser:
		return "once"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(t))
	}
}
