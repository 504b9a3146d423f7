package protocol

// XORTransform applies the session stream cipher: every byte of data XORed
// with the device-issued key byte. The transform is its own inverse, so the
// same call encrypts and decrypts. The input slice is left untouched.
func XORTransform(data []byte, key byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key
	}
	return out
}
