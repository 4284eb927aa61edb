package api

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// encodeAddress renders a StorageAddress as an opaque path-safe token the
// CLI/HTTP surface can round-trip; types.StorageAddress.String() prints the
// Policy struct with fmt's default formatting and has no parser.
func encodeAddress(a types.StorageAddress) string {
	return fmt.Sprintf("%d|%s|%s|%s", int(a.Policy.Kind), a.Policy.Namespace, a.Policy.GroupID, a.ContentID.String())
}

// decodeAddress reverses encodeAddress.
func decodeAddress(token string) (types.StorageAddress, error) {
	parts := strings.SplitN(token, "|", 4)
	if len(parts) != 4 {
		return types.StorageAddress{}, fmt.Errorf("api: malformed address token %q", token)
	}

	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return types.StorageAddress{}, fmt.Errorf("api: malformed policy kind in %q: %w", token, err)
	}

	raw, err := hex.DecodeString(parts[3])
	if err != nil {
		return types.StorageAddress{}, fmt.Errorf("api: malformed content id in %q: %w", token, err)
	}
	cid, err := types.ContentIDFromBytes(raw)
	if err != nil {
		return types.StorageAddress{}, err
	}

	return types.StorageAddress{
		ContentID: cid,
		Policy: types.Policy{
			Kind:      types.PolicyKind(kind),
			Namespace: parts[1],
			GroupID:   parts[2],
		},
	}, nil
}
