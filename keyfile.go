package quantumchat

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/quantumchat/client-go/internal/crypto"
)

// Keypair is a long-term KEM keypair.
type Keypair = crypto.Keypair

// Key backup file section markers.
const (
	keyFileHeader        = "=== QUANTUM CHAT PRIVATE KEY ==="
	keyFilePrivateHeader = "=== Private Key (Base64) ==="
	keyFilePublicHeader  = "=== Public Key (Base64) - Safe to Share ==="
	keyFileSecurity      = "=== Security Information ==="

	keyFileWrap = 64
)

// KeyFile is a parsed key backup file.
type KeyFile struct {
	Username  string
	Generated time.Time // zero if absent or unparseable
	Keypair   *Keypair
}

// GenerateKeypair creates a keypair for the named KEM. An empty name
// selects ML-KEM-1024.
func GenerateKeypair(kemName string) (*Keypair, error) {
	if kemName == "" {
		kemName = crypto.DefaultKEM
	}
	k, err := crypto.KEMByName(kemName)
	if err != nil {
		return nil, err
	}
	return crypto.GenerateKeypair(k)
}

// ExportKeyFile renders the portable key backup document for username.
// The output contains the private key in the clear and must be handled
// like the key itself.
func ExportKeyFile(username string, kp *Keypair, generated time.Time) []byte {
	kemName := kp.KEM
	if kemName == "" {
		kemName = crypto.DefaultKEM
	}

	var b bytes.Buffer
	fmt.Fprintln(&b, keyFileHeader)
	fmt.Fprintf(&b, "Username: %s\n", username)
	fmt.Fprintf(&b, "Generated: %s\n", generated.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Algorithm: %s\n", kemName)
	fmt.Fprintln(&b, "WARNING: NEVER SHARE YOUR PRIVATE KEY!")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, keyFilePrivateHeader)
	writeWrapped(&b, crypto.ToBase64(kp.PrivateKey))
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, keyFilePublicHeader)
	writeWrapped(&b, crypto.ToBase64(kp.PublicKey))
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, keyFileSecurity)
	fmt.Fprintf(&b, "Algorithm: %s (post-quantum KEM)\n", kemName)
	fmt.Fprintf(&b, "Encryption: %s\n", crypto.DefaultCipher)
	fmt.Fprintln(&b, "Key exchange: KEM per message + HKDF-SHA-256")
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Keep this file secure. Your public key is stored on the server;")
	fmt.Fprintln(&b, "this private key is the only way to read messages sent to you.")
	fmt.Fprintln(&b, "If it is lost, those messages cannot be recovered.")
	return b.Bytes()
}

func writeWrapped(b *bytes.Buffer, s string) {
	for len(s) > keyFileWrap {
		b.WriteString(s[:keyFileWrap])
		b.WriteByte('\n')
		s = s[keyFileWrap:]
	}
	b.WriteString(s)
	b.WriteByte('\n')
}

// ImportKeyFile parses a key backup file. When expectedUsername is not
// empty the file must belong to that user. The private key is validated
// for the file's KEM (defaultKEM when the file names none) and the public
// block, if present, must match the key derived from the private key.
func ImportKeyFile(data []byte, expectedUsername, defaultKEM string) (*KeyFile, error) {
	var (
		username, algorithm, generated string
		privB64, pubB64                strings.Builder
		section                        string
		sawHeader                      bool
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(sc.Text(), "\r"))

		switch {
		case line == keyFileHeader:
			sawHeader = true
			section = "meta"
			continue
		case line == keyFilePrivateHeader:
			section = "private"
			continue
		case line == keyFilePublicHeader:
			section = "public"
			continue
		case strings.HasPrefix(line, "===") && strings.HasSuffix(line, "==="):
			section = "trailer"
			continue
		}

		switch section {
		case "meta":
			if v, ok := strings.CutPrefix(line, "Username:"); ok && username == "" {
				username = strings.TrimSpace(v)
			} else if v, ok := strings.CutPrefix(line, "Generated:"); ok && generated == "" {
				generated = strings.TrimSpace(v)
			} else if v, ok := strings.CutPrefix(line, "Algorithm:"); ok && algorithm == "" {
				algorithm = strings.TrimSpace(v)
			}
		case "private":
			privB64.WriteString(line)
		case "public":
			pubB64.WriteString(line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFile, err)
	}

	if !sawHeader || username == "" {
		return nil, fmt.Errorf("%w: missing header or username", ErrInvalidKeyFile)
	}
	if privB64.Len() == 0 {
		return nil, fmt.Errorf("%w: missing private key block", ErrInvalidKeyFile)
	}
	if expectedUsername != "" && username != expectedUsername {
		return nil, fmt.Errorf("%w: file is for %q, not %q", ErrUsernameMismatch, username, expectedUsername)
	}

	if algorithm == "" {
		algorithm = defaultKEM
	}
	if algorithm == "" {
		algorithm = crypto.DefaultKEM
	}
	k, err := crypto.KEMByName(algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyFile, err)
	}

	priv, err := crypto.DecodeBase64(privB64.String())
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %w", ErrKeyValidation, err)
	}

	var kp *Keypair
	if pubB64.Len() > 0 {
		pub, err := crypto.DecodeBase64(pubB64.String())
		if err != nil {
			return nil, fmt.Errorf("%w: public key: %v", ErrInvalidKeyFile, err)
		}
		kp, err = crypto.NewKeypairFromBytes(k, priv, pub)
		if err != nil {
			return nil, err
		}
	} else {
		kp, err = crypto.KeypairFromPrivateKey(k, priv)
		if err != nil {
			return nil, err
		}
	}

	kf := &KeyFile{Username: username, Keypair: kp}
	if t, err := time.Parse(time.RFC3339, generated); err == nil {
		kf.Generated = t
	}
	return kf, nil
}

// ValidatePrivateKey checks that a base64 private key decodes to the exact
// size the KEM expects. It is a structural check only; it cannot tell
// whether the key belongs to anyone in particular.
func ValidatePrivateKey(privateKeyB64, kemName string) error {
	if kemName == "" {
		kemName = crypto.DefaultKEM
	}
	k, err := crypto.KEMByName(kemName)
	if err != nil {
		return err
	}

	priv, err := crypto.DecodeBase64(privateKeyB64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyValidation, err)
	}
	defer crypto.Wipe(priv)
	return crypto.ValidatePrivateKey(k, priv)
}

// ValidPrivateKey is ValidatePrivateKey as a predicate.
func ValidPrivateKey(privateKeyB64, kemName string) bool {
	return ValidatePrivateKey(privateKeyB64, kemName) == nil
}
