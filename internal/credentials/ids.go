package credentials

import "crypto/rand"

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// SecureID returns a 24-character identifier drawn from a
// cryptographically strong alphabet. Used for room ids and relay-assigned
// correlation ids.
func SecureID() string {
	const length = 24

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic("credentials: failed to read random bytes: " + err.Error())
	}

	id := make([]byte, length)
	for i, b := range buf {
		id[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(id)
}
