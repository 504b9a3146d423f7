package protocol

import "fmt"

// Reassembler accumulates the multi-fragment user-list reply. Fragments
// flagged partial are buffered; the final fragment closes the listing and
// the whole buffer is sliced into fixed-size user records. Not safe for
// concurrent use; the session serializes access.
type Reassembler struct {
	buf []byte
}

// Feed consumes one user-list fragment and reports whether the listing is
// complete. On the final fragment the buffer is cleared unconditionally,
// success or not, so a bad listing cannot corrupt the next one. A trailing
// remainder shorter than one record is discarded as incomplete.
func (r *Reassembler) Feed(status Status, payload []byte) ([]UserRecord, bool, error) {
	switch status {
	case StatusPartial:
		r.buf = append(r.buf, payload...)
		return nil, false, nil

	case StatusSuccess:
		data := append(r.buf, payload...)
		r.buf = nil
		records := make([]UserRecord, 0, len(data)/UserRecordSize)
		for len(data) >= UserRecordSize {
			rec, err := ParseUserRecord(data[:UserRecordSize])
			if err != nil {
				return records, true, err
			}
			records = append(records, rec)
			data = data[UserRecordSize:]
		}
		return records, true, nil

	default:
		r.buf = nil
		return nil, true, fmt.Errorf("protocol: unexpected user list status %s", status)
	}
}

// Pending returns a copy of the bytes buffered for an in-progress listing.
func (r *Reassembler) Pending() []byte {
	out := make([]byte, len(r.buf))
	copy(out, r.buf)
	return out
}

// Reset discards any buffered fragments.
func (r *Reassembler) Reset() {
	r.buf = nil
}
