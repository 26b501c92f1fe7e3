package api

import "time"

// Envelope is the wire form of a sealed message. Binary fields are standard
// base64, exactly as stored and relayed by the server.
type Envelope struct {
	ID              string    `json:"id"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	EncapsulatedKey string    `json:"encapsulatedKey"`
	Ciphertext      string    `json:"ciphertext,omitempty"`
	EncryptedFile   string    `json:"encryptedFile,omitempty"`
	IV              string    `json:"iv"`
	Timestamp       time.Time `json:"timestamp"`
	Type            string    `json:"type"`
	FileName        string    `json:"fileName,omitempty"`
	FileType        string    `json:"fileType,omitempty"`
	KEM             string    `json:"kem,omitempty"`
	Cipher          string    `json:"cipher,omitempty"`
}

// PublicKeyRecord is the body of POST /api/users/public-key and the
// response of the matching GET.
type PublicKeyRecord struct {
	Username  string `json:"username"`
	PublicKey string `json:"publicKey"`
}

// UserRecord is one entry of GET /api/users. PublicKey is empty until the
// user publishes one.
type UserRecord struct {
	Username  string `json:"username"`
	PublicKey string `json:"publicKey"`
}

// sendMessageResponse covers both reply shapes seen in the wild:
// {"success":true,"id":...} and {"message":"Message sent successfully"}.
type sendMessageResponse struct {
	Success *bool  `json:"success,omitempty"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
