package crypto

import "github.com/awnumar/memguard"

// Wipe overwrites b with zeros. Shared secrets and session keys are wiped
// as soon as the envelope that needed them is sealed or opened.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}
