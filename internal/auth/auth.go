// Package auth generates the per-request device authentication headers
// expected by the radio backend.
package auth

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderMAC        = "X-MAC-Address"
	HeaderChipID     = "X-Chip-ID"
	HeaderTimestamp  = "X-Timestamp"
	HeaderDynamicKey = "X-Dynamic-Key"

	// keyBytes is how much of the SHA-256 digest goes into the dynamic key.
	keyBytes = 16
)

// Identity is the device identity and the secret shared with the backend.
type Identity struct {
	MAC    string
	ChipID string
	Secret string

	// Now defaults to time.Now.
	Now func() time.Time
}

// ChipIDFromMAC strips the separators from a MAC address.
func ChipIDFromMAC(mac string) string {
	return strings.NewReplacer(":", "", "-", "").Replace(mac)
}

func (id Identity) chipID() string {
	if id.ChipID != "" {
		return id.ChipID
	}
	return ChipIDFromMAC(id.MAC)
}

// DynamicKey returns the uppercase hex of the first 16 bytes of
// SHA-256("MAC:chipID:timestamp:secret").
func (id Identity) DynamicKey(timestamp int64) string {
	data := id.MAC + ":" + id.chipID() + ":" + strconv.FormatInt(timestamp, 10) + ":" + id.Secret
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%X", sum[:keyBytes])
}

// Headers builds a fresh set of authentication headers.
func (id Identity) Headers() map[string]string {
	now := time.Now
	if id.Now != nil {
		now = id.Now
	}
	ts := now().Unix()

	return map[string]string{
		HeaderMAC:        id.MAC,
		HeaderChipID:     id.chipID(),
		HeaderTimestamp:  strconv.FormatInt(ts, 10),
		HeaderDynamicKey: id.DynamicKey(ts),
	}
}

// Apply sets the authentication headers on h.
func (id Identity) Apply(h http.Header) {
	for k, v := range id.Headers() {
		h.Set(k, v)
	}
}
