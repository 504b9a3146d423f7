package protocol

import (
	"fmt"
	"strings"
)

// UserRecordSize is the fixed on-wire size of one stored user record:
// type(1) id(6) password(6) validFrom(5) validTo(5) checksum(1).
const UserRecordSize = 24

// UserRecord is one parsed entry of a reassembled user-list reply.
type UserRecord struct {
	Type      RecordType
	UserID    string
	Password  string
	ValidFrom string
	ValidTo   string
	// Valid reports whether the trailing checksum byte matched the low byte
	// of the sum of the 23 bytes before it.
	Valid bool
}

// ParseUserRecord decodes a single 24-byte user record.
func ParseUserRecord(b []byte) (UserRecord, error) {
	if len(b) != UserRecordSize {
		return UserRecord{}, fmt.Errorf("protocol: user record must be %d bytes, got %d", UserRecordSize, len(b))
	}
	return UserRecord{
		Type:      RecordType(b[0]),
		UserID:    trimUserID(b[1:7]),
		Password:  strings.TrimRight(string(b[7:13]), "\x00"),
		ValidFrom: ParseDateTime(b[13:18]),
		ValidTo:   ParseDateTime(b[18:23]),
		Valid:     b[23] == Checksum(b[:UserRecordSize-1]),
	}, nil
}

func trimUserID(b []byte) string {
	id := strings.TrimLeft(strings.TrimRight(string(b), "\x00"), "0")
	if id == "" {
		return "0"
	}
	return id
}
