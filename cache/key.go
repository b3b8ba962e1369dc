package cache

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Digest names accepted in Config.Digest.
const (
	DigestMD5    = "md5"
	DigestXXHash = "xxhash"
)

// Key components, as they appear in the encoded component map.
const (
	componentRecordID = "recordId"
	componentSource   = "source"
	componentUserID   = "userId"
)

// DefaultSourceAliases folds the default search backend name onto the
// canonical name stored in cache rows.
func DefaultSourceAliases() map[string]string {
	return map[string]string{"Solr": "VuFind"}
}

// KeyBuilder derives cache keys from record identity. It is a value type and
// safe for concurrent use.
//
// The key is the digest of the JSON encoded component map. Changing which
// components a policy includes changes every key produced under it, so
// existing rows must be treated as belonging to the old policy.
type KeyBuilder struct {
	aliases map[string]string
	digest  string
}

// NewKeyBuilder returns a builder using aliases for source normalization and
// the named digest. An empty digest selects DigestMD5.
func NewKeyBuilder(aliases map[string]string, digest string) KeyBuilder {
	copied := make(map[string]string, len(aliases))
	for k, v := range aliases {
		copied[k] = v
	}
	if digest == "" {
		digest = DigestMD5
	}
	return KeyBuilder{aliases: copied, digest: digest}
}

// ComputeKey derives the key for (id, source, userID) under policy p using
// the default aliases and MD5.
func ComputeKey(id, source, userID string, p Policy) string {
	return NewKeyBuilder(DefaultSourceAliases(), DigestMD5).ComputeKey(id, source, userID, p)
}

// ComputeKey derives the key for (id, source, userID) under policy p.
func (b KeyBuilder) ComputeKey(id, source, userID string, p Policy) string {
	components := make(map[string]any, 3)
	if p.IncludeRecordID {
		components[componentRecordID] = id
	}
	if p.IncludeSource {
		components[componentSource] = b.NormalizeSource(source)
	}
	if p.IncludeUserID {
		if userID == "" {
			components[componentUserID] = nil
		} else {
			components[componentUserID] = userID
		}
	}

	payload := encodeComponents(components)

	switch b.digest {
	case DigestXXHash:
		return fmt.Sprintf("%016x", xxhash.Sum64(payload))
	default:
		sum := md5.Sum(payload)
		return hex.EncodeToString(sum[:])
	}
}

// NormalizeSource maps a source alias to its canonical name.
func (b KeyBuilder) NormalizeSource(source string) string {
	if canonical, ok := b.aliases[source]; ok {
		return canonical
	}
	return source
}

// encodeComponents renders the component map as compact JSON with sorted
// keys. '<', '>' and '&' are written literally.
func encodeComponents(components map[string]any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(components); err != nil {
		// unreachable for string and nil values
		return nil
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
