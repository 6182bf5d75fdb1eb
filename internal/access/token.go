package access

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"lukechampine.com/blake3"
)

const (
	nonceSize = 32
	macSize   = 32

	// DownloadPath is the route a download link points at.
	DownloadPath = "/download_video"
)

var encoding = base64.RawURLEncoding

// Token is an issued download capability.
type Token struct {
	Filename  string
	Value     string
	ExpiresAt time.Time
}

// Expires renders ExpiresAt as unix seconds with a microsecond fraction.
func (t Token) Expires() string {
	return formatExpires(t.ExpiresAt)
}

// Query returns the filename, token and expires query parameters.
func (t Token) Query() url.Values {
	values := url.Values{}
	values.Set("filename", t.Filename)
	values.Set("token", t.Value)
	values.Set("expires", t.Expires())
	return values
}

// Path returns the download URL rooted at base, which may be empty for a
// relative link.
func (t Token) Path(base string) string {
	return strings.TrimRight(base, "/") + DownloadPath + "?" + t.Query().Encode()
}

func formatExpires(at time.Time) string {
	return decimal.New(at.UnixMicro(), -6).StringFixed(6)
}

// parseExpires accepts non-negative unix seconds with an optional fraction.
// Precision beyond microseconds is truncated.
func parseExpires(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, r := range value {
		if (r < '0' || r > '9') && r != '.' {
			return time.Time{}, false
		}
	}
	seconds, err := decimal.NewFromString(value)
	if err != nil || seconds.GreaterThan(maxExpires) {
		return time.Time{}, false
	}
	return time.UnixMicro(seconds.Shift(6).IntPart()), true
}

// 9999-12-31T23:59:59Z
var maxExpires = decimal.NewFromInt(253402300799)

func newNonce() (string, error) {
	buf := make([]byte, nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return encoding.EncodeToString(buf), nil
}

// sign computes the keyed MAC binding filename, expires and nonce.
func sign(key *[32]byte, filename, expires, nonce string) []byte {
	h := blake3.New(macSize, key[:])
	_, _ = h.Write([]byte(filename))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(expires))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(nonce))
	return h.Sum(nil)
}

func verify(key *[32]byte, filename, expires, value string) bool {
	nonce, macText, ok := strings.Cut(value, ".")
	if !ok || nonce == "" || macText == "" {
		return false
	}
	if raw, err := encoding.DecodeString(nonce); err != nil || len(raw) != nonceSize {
		return false
	}
	mac, err := encoding.DecodeString(macText)
	if err != nil || len(mac) != macSize {
		return false
	}
	return subtle.ConstantTimeCompare(mac, sign(key, filename, expires, nonce)) == 1
}
