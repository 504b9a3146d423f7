package protocol

import (
	"fmt"
	"strings"
	"time"
)

// DecToBCD packs a value in 0..99 as binary-coded decimal, one decimal
// digit per nibble.
func DecToBCD(n int) byte {
	return byte(n/10<<4 | n%10)
}

// BCDToDec is the inverse nibble unpack of DecToBCD.
func BCDToDec(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}

// DateToBCD encodes t as the lock's packed 5-byte timestamp:
// year mod 100, month, day, hour, minute.
func DateToBCD(t time.Time) []byte {
	return []byte{
		DecToBCD(t.Year() % 100),
		DecToBCD(int(t.Month())),
		DecToBCD(t.Day()),
		DecToBCD(t.Hour()),
		DecToBCD(t.Minute()),
	}
}

// ParseDateTime renders a 5-byte BCD timestamp as "2006-01-02 15:04".
// Out-of-range fields yield an invalid-value token embedding the raw bytes;
// corrupt timestamps never abort notification handling.
func ParseDateTime(b []byte) string {
	if len(b) != 5 {
		return fmt.Sprintf("invalid-bcd[% X]", b)
	}
	year := 2000 + BCDToDec(b[0])
	month := BCDToDec(b[1])
	day := BCDToDec(b[2])
	hour := BCDToDec(b[3])
	minute := BCDToDec(b[4])
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return fmt.Sprintf("invalid-bcd[% X]", b)
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d", year, month, day, hour, minute)
}

// PhoneToBCD packs a numeric phone string of up to 12 digits into 6 BCD
// bytes, left-padded with zero digits.
func PhoneToBCD(phone string) ([]byte, error) {
	if phone == "" || len(phone) > 12 {
		return nil, fmt.Errorf("protocol: phone must be 1-12 digits, got %q", phone)
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("protocol: phone must be numeric, got %q", phone)
		}
	}
	padded := strings.Repeat("0", 12-len(phone)) + phone
	out := make([]byte, 6)
	for i := range out {
		hi := int(padded[2*i] - '0')
		lo := int(padded[2*i+1] - '0')
		out[i] = DecToBCD(hi*10 + lo)
	}
	return out, nil
}

// BCDPhoneString unpacks BCD-packed phone bytes into a digit string with
// the zero padding stripped.
func BCDPhoneString(b []byte) string {
	var sb strings.Builder
	for _, v := range b {
		fmt.Fprintf(&sb, "%02d", BCDToDec(v))
	}
	digits := strings.TrimLeft(sb.String(), "0")
	if digits == "" {
		return "0"
	}
	return digits
}
