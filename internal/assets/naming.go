package assets

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dgallion1/imglocal/internal/fetch"
)

const (
	urlDigestLen     = 12
	contentDigestLen = 8
)

// Filename derives the local name of an asset. It is a pure function of the
// URL and, when withContent is set and content is non-empty, of the bytes too.
func Filename(url string, content []byte, withContent bool) string {
	name := HashHex([]byte(url))[:urlDigestLen]
	if withContent && len(content) > 0 {
		name += "_" + HashHex(content)[:contentDigestLen]
	}
	return name + fetch.ExtensionFromURL(url)
}

// HashHex computes SHA-256 of data and returns the hex string.
func HashHex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
