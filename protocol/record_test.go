package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRecord assembles a checksummed 24-byte user record for tests.
func buildRecord(typ RecordType, id, password string, from, to []byte) []byte {
	b := make([]byte, 0, UserRecordSize)
	b = append(b, byte(typ))
	b = append(b, []byte(id)...)
	b = append(b, []byte(password)...)
	b = append(b, from...)
	b = append(b, to...)
	b = append(b, Checksum(b))
	return b
}

func TestParseUserRecord(t *testing.T) {
	raw := buildRecord(TypeUser, "001000", "AAAAAA",
		[]byte{0x24, 0x01, 0x01, 0x00, 0x00},
		[]byte{0x25, 0x12, 0x31, 0x23, 0x59})

	rec, err := ParseUserRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeUser, rec.Type)
	assert.Equal(t, "1000", rec.UserID)
	assert.Equal(t, "AAAAAA", rec.Password)
	assert.Equal(t, "2024-01-01 00:00", rec.ValidFrom)
	assert.Equal(t, "2025-12-31 23:59", rec.ValidTo)
	assert.True(t, rec.Valid)
}

func TestParseUserRecordChecksum(t *testing.T) {
	raw := buildRecord(TypeOnceUser, "001001", "BBBBBB",
		[]byte{0x24, 0x06, 0x15, 0x08, 0x00},
		[]byte{0x24, 0x06, 0x16, 0x08, 0x00})

	// Flipping any single byte without recomputing the checksum must
	// invalidate the record.
	for i := 0; i < UserRecordSize; i++ {
		mutated := make([]byte, UserRecordSize)
		copy(mutated, raw)
		mutated[i] ^= 0xFF

		rec, err := ParseUserRecord(mutated)
		require.NoError(t, err)
		assert.False(t, rec.Valid, "byte %d", i)
	}
}

func TestParseUserRecordSize(t *testing.T) {
	_, err := ParseUserRecord(make([]byte, UserRecordSize-1))
	assert.Error(t, err)
}
