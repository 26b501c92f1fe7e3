package quantumchat

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quantumchat/client-go/internal/crypto"
)

// MessageType distinguishes text and file envelopes.
type MessageType string

const (
	// TypeText carries a UTF-8 text message in Envelope.Ciphertext.
	TypeText MessageType = "text"
	// TypeFile carries file bytes in Envelope.EncryptedFile.
	TypeFile MessageType = "file"
)

// MaxFileSize is the largest attachment SealFile accepts.
const MaxFileSize = 5 << 20

// maxIDLength bounds Envelope.ID. UUIDs and server object IDs fit well
// within it.
const maxIDLength = 128

// envelopeContext prefixes the associated data bound into every envelope.
const envelopeContext = "quantumchat:envelope:v1"

// Envelope is a sealed message as stored and relayed. Binary fields hold
// standard base64. An envelope never contains plaintext or key material
// other than the KEM ciphertext, and is never modified after sealing:
// every field except the payload is authenticated as associated data.
type Envelope struct {
	ID              string      `json:"id"`
	From            string      `json:"from"`
	To              string      `json:"to"`
	EncapsulatedKey string      `json:"encapsulatedKey"`
	Ciphertext      string      `json:"ciphertext,omitempty"`
	EncryptedFile   string      `json:"encryptedFile,omitempty"`
	IV              string      `json:"iv"`
	Timestamp       time.Time   `json:"timestamp"`
	Type            MessageType `json:"type"`
	FileName        string      `json:"fileName,omitempty"`
	FileType        string      `json:"fileType,omitempty"`
	KEM             string      `json:"kem,omitempty"`
	Cipher          string      `json:"cipher,omitempty"`
}

// Validate checks that the envelope carries the fields its type requires
// and that its ID is safe to use in file and key names. It does not decode
// or authenticate anything.
func (e *Envelope) Validate() error {
	if !validID(e.ID) {
		return fmt.Errorf("%w: id %q must be at most %d letters, digits, '-' or '_'", ErrInvalidEnvelope, e.ID, maxIDLength)
	}

	var missing []string
	if e.From == "" {
		missing = append(missing, "from")
	}
	if e.To == "" {
		missing = append(missing, "to")
	}
	if e.EncapsulatedKey == "" {
		missing = append(missing, "encapsulatedKey")
	}
	if e.IV == "" {
		missing = append(missing, "iv")
	}

	switch e.Type {
	case TypeText:
		if e.Ciphertext == "" {
			missing = append(missing, "ciphertext")
		}
	case TypeFile:
		if e.EncryptedFile == "" {
			missing = append(missing, "encryptedFile")
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEnvelope, e.Type)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidEnvelope, strings.Join(missing, ", "))
	}
	return nil
}

// validID reports whether id is empty or made only of ASCII letters,
// digits, '-' and '_'. Servers that assign no ID leave it empty.
func validID(id string) bool {
	if len(id) > maxIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// dedupeKey identifies an envelope across polls. Envelopes stored without
// an ID fall back to the encapsulated key, which is fresh per message.
func (e *Envelope) dedupeKey() string {
	if e.ID != "" {
		return e.ID
	}
	return "kem:" + e.EncapsulatedKey
}

// payload returns the encrypted payload field for the envelope's type.
func (e *Envelope) payload() string {
	if e.Type == TypeFile {
		return e.EncryptedFile
	}
	return e.Ciphertext
}

// associatedData binds the envelope metadata into the AEAD tag. Each field
// is length-prefixed so no two distinct envelopes serialize alike.
func (e *Envelope) associatedData() []byte {
	fields := []string{
		e.ID,
		e.From,
		e.To,
		string(e.Type),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.FileName,
		e.FileType,
		e.KEM,
		e.Cipher,
	}

	n := len(envelopeContext)
	for _, f := range fields {
		n += 4 + len(f)
	}

	aad := make([]byte, 0, n)
	aad = append(aad, envelopeContext...)
	for _, f := range fields {
		aad = binary.BigEndian.AppendUint32(aad, uint32(len(f)))
		aad = append(aad, f...)
	}
	return aad
}

// Attachment is a decrypted file.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// PlaceholderText replaces the content of a message that could not be
// decrypted when loading a conversation.
const PlaceholderText = "🔒 [Failed to decrypt - Invalid key]"

// Message is a decrypted envelope, or a placeholder for one that failed.
type Message struct {
	ID        string
	From      string
	To        string
	Type      MessageType
	Timestamp time.Time

	// Text holds the message for TypeText, or PlaceholderText when
	// DecryptionFailed is set.
	Text string
	// File holds the attachment for TypeFile.
	File *Attachment

	// DecryptionFailed marks a placeholder; Err holds the cause.
	DecryptionFailed bool
	Err              error
}

func placeholder(env *Envelope, err error) *Message {
	return &Message{
		ID:               env.ID,
		From:             env.From,
		To:               env.To,
		Type:             env.Type,
		Timestamp:        env.Timestamp,
		Text:             PlaceholderText,
		DecryptionFailed: true,
		Err:              err,
	}
}

// Sealer runs the hybrid pipeline: KEM encapsulation to the recipient,
// HKDF over the sorted participant pair, then AEAD encryption. It is
// stateless and safe for concurrent use.
type Sealer struct {
	kem    crypto.KEM
	cipher crypto.Cipher
	now    func() time.Time
}

// NewSealer returns a sealer for the named KEM and cipher. Empty names
// select the defaults (ML-KEM-1024, AES-256-GCM).
func NewSealer(kemName, cipherName string) (*Sealer, error) {
	if kemName == "" {
		kemName = crypto.DefaultKEM
	}
	if cipherName == "" {
		cipherName = crypto.DefaultCipher
	}

	k, err := crypto.KEMByName(kemName)
	if err != nil {
		return nil, err
	}
	c, err := crypto.CipherByName(cipherName)
	if err != nil {
		return nil, err
	}
	return &Sealer{kem: k, cipher: c, now: time.Now}, nil
}

// KEM returns the sealer's key encapsulation mechanism.
func (s *Sealer) KEM() crypto.KEM { return s.kem }

// Cipher returns the sealer's AEAD cipher.
func (s *Sealer) Cipher() crypto.Cipher { return s.cipher }

// SealText seals a text message from one user to another.
func (s *Sealer) SealText(from, to string, recipientPublicKey []byte, text string) (*Envelope, error) {
	env := s.newEnvelope(from, to, TypeText)
	ct, err := s.seal(env, recipientPublicKey, []byte(text))
	if err != nil {
		return nil, err
	}
	env.Ciphertext = crypto.ToBase64(ct)
	return env, nil
}

// SealFile seals a file. name and mimeType travel in the clear but are
// authenticated.
func (s *Sealer) SealFile(from, to string, recipientPublicKey []byte, name, mimeType string, data []byte) (*Envelope, error) {
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), MaxFileSize)
	}

	env := s.newEnvelope(from, to, TypeFile)
	env.FileName = name
	env.FileType = mimeType

	ct, err := s.seal(env, recipientPublicKey, data)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.Grow((len(ct) + 2) / 3 * 4)
	if err := crypto.EncodeBase64To(&sb, ct); err != nil {
		return nil, err
	}
	env.EncryptedFile = sb.String()
	return env, nil
}

func (s *Sealer) newEnvelope(from, to string, typ MessageType) *Envelope {
	return &Envelope{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Type:      typ,
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
		KEM:       s.kem.Name(),
		Cipher:    s.cipher.Name(),
	}
}

// seal fills EncapsulatedKey and IV and returns the raw ciphertext.
func (s *Sealer) seal(env *Envelope, recipientPublicKey, plaintext []byte) ([]byte, error) {
	if env.From == "" || env.To == "" {
		return nil, fmt.Errorf("%w: sender and recipient are required", ErrInvalidEnvelope)
	}

	ss, encKey, err := s.kem.Encapsulate(recipientPublicKey)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(ss)

	key, err := crypto.DeriveSessionKey(ss, env.From, env.To)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(key)

	ct, nonce, err := s.cipher.Encrypt(key, plaintext, env.associatedData())
	if err != nil {
		return nil, err
	}

	env.EncapsulatedKey = crypto.ToBase64(encKey)
	env.IV = crypto.ToBase64(nonce)
	return ct, nil
}

// Open decrypts an envelope with the recipient's private key. Algorithms
// named in the envelope take precedence over the sealer's own.
//
// A private key of the wrong size is rejected with ErrKeyValidation before
// any decryption is attempted. Every other failure is a *DecryptionError.
func (s *Sealer) Open(env *Envelope, privateKey []byte) (*Message, error) {
	if env == nil {
		return nil, &DecryptionError{Stage: StageDecode, Err: fmt.Errorf("%w: nil envelope", ErrInvalidEnvelope)}
	}
	k, c := s.kem, s.cipher
	fail := func(stage string, err error) (*Message, error) {
		return nil, &DecryptionError{Stage: stage, EnvelopeID: env.ID, Err: err}
	}

	if env.KEM != "" && env.KEM != k.Name() {
		var err error
		if k, err = crypto.KEMByName(env.KEM); err != nil {
			return fail(StageKEM, err)
		}
	}
	if env.Cipher != "" && env.Cipher != c.Name() {
		var err error
		if c, err = crypto.CipherByName(env.Cipher); err != nil {
			return fail(StageAEAD, err)
		}
	}

	if err := crypto.ValidatePrivateKey(k, privateKey); err != nil {
		return nil, err
	}

	if err := env.Validate(); err != nil {
		return fail(StageDecode, err)
	}
	encKey, err := crypto.FromBase64(env.EncapsulatedKey)
	if err != nil {
		return fail(StageDecode, fmt.Errorf("%w: encapsulatedKey: %v", ErrInvalidEnvelope, err))
	}
	nonce, err := crypto.FromBase64(env.IV)
	if err != nil {
		return fail(StageDecode, fmt.Errorf("%w: iv: %v", ErrInvalidEnvelope, err))
	}
	ct, err := crypto.DecodeBase64From(env.payload())
	if err != nil {
		return fail(StageDecode, fmt.Errorf("%w: payload: %v", ErrInvalidEnvelope, err))
	}

	ss, err := k.Decapsulate(privateKey, encKey)
	if err != nil {
		return fail(StageKEM, err)
	}
	defer crypto.Wipe(ss)

	key, err := crypto.DeriveSessionKey(ss, env.From, env.To)
	if err != nil {
		return fail(StageHKDF, err)
	}
	defer crypto.Wipe(key)

	plaintext, err := c.Decrypt(key, ct, nonce, env.associatedData())
	if err != nil {
		return fail(StageAEAD, err)
	}

	msg := &Message{
		ID:        env.ID,
		From:      env.From,
		To:        env.To,
		Type:      env.Type,
		Timestamp: env.Timestamp,
	}
	if env.Type == TypeFile {
		msg.File = &Attachment{Name: env.FileName, MIMEType: env.FileType, Data: plaintext}
	} else {
		msg.Text = string(plaintext)
	}
	return msg, nil
}

var defaultSealer, _ = NewSealer("", "")

// Open decrypts an envelope with the default algorithms, unless the
// envelope names others.
func Open(env *Envelope, privateKey []byte) (*Message, error) {
	return defaultSealer.Open(env, privateKey)
}
