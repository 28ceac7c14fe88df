package submit

import (
	"crypto/sha256"
	"encoding/hex"
)

// DefaultSalt is mixed into origin hashes when none is configured.
const DefaultSalt = "DKP_SALT_2024"

// OriginHash returns the hex SHA-256 of ip followed by salt. The raw address
// is never stored. An empty ip yields an empty hash.
func OriginHash(ip, salt string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip + salt))
	return hex.EncodeToString(sum[:])
}
