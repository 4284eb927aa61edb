package storage

import (
	"encoding/json"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// encodeEnvelope serializes an EncryptedContent for placement into the
// local store, the DHT, or a group's erasure-coded shards. JSON matches the
// wire format the rest of the module uses for anything that crosses a
// process boundary (see internal/kademlia/messages.go).
func encodeEnvelope(ec types.EncryptedContent) []byte {
	raw, err := json.Marshal(ec)
	if err != nil {
		// EncryptedContent is built entirely from []byte and value fields;
		// marshaling it cannot fail.
		panic(err)
	}
	return raw
}

// decodeEnvelope reverses encodeEnvelope and checks the recovered address
// against want, surfacing any mismatch as corruption rather than silently
// trusting whatever was stored under the key.
func decodeEnvelope(raw []byte, want types.StorageAddress) (types.EncryptedContent, error) {
	var ec types.EncryptedContent
	if err := json.Unmarshal(raw, &ec); err != nil {
		return types.EncryptedContent{}, types.NewError(types.KindIntegrityViolation, "malformed stored envelope", err)
	}
	if !ec.ContentAddress.Equal(want) {
		return types.EncryptedContent{}, types.NewError(types.KindIntegrityViolation, "stored envelope address mismatch", nil)
	}
	return ec, nil
}
