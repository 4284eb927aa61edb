package types

import "time"

// StorageMetadata travels alongside content; it is never secret.
type StorageMetadata struct {
	ContentType string            `json:"content_type"`
	Author      string            `json:"author"`
	Tags        []string          `json:"tags,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Size        int64             `json:"size"`
	Checksum    string            `json:"checksum"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// EncryptedContent is the on-the-wire/at-rest envelope produced by the PQC
// crypto module (spec §3, §4.4).
type EncryptedContent struct {
	MLKemCiphertext  []byte             `json:"ml_kem_ciphertext"`
	AEADNonce        []byte             `json:"aead_nonce"`
	AEADCiphertext   []byte             `json:"aead_ciphertext"`
	ContentAddress   StorageAddress     `json:"content_address"`
	KeyDerivation    KeyDerivationInfo  `json:"key_derivation_info"`
}

// KeyDerivationInfo records enough non-secret context to re-derive the
// decryption path without ever persisting the derived key itself.
type KeyDerivationInfo struct {
	Mode       string `json:"mode"` // matches pqc.Mode
	Namespace  string `json:"namespace,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
	Iterations int    `json:"iterations"`
}
