package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"golang.org/x/crypto/hkdf"
)

// WrappedKey is a data key sealed under the master key of Version.
type WrappedKey struct {
	Version int
	Sealed
}

// KeyRing holds the process-wide master keys indexed by version. New wraps
// always use the current version; unwrap uses whatever version the wrapped
// key records, so old documents stay readable after rotation.
type KeyRing struct {
	keys    map[int][]byte
	current int
}

// NewKeyRing validates the master keys and returns a ring whose current
// version is current. Every key must be exactly 32 bytes and the current
// version must be present; otherwise common.ErrConfig is returned.
func NewKeyRing(current int, keys map[int][]byte) (*KeyRing, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no master key configured", common.ErrConfig)
	}
	ring := &KeyRing{keys: make(map[int][]byte, len(keys)), current: current}
	for v, k := range keys {
		if len(k) != KeySize {
			return nil, fmt.Errorf("%w: master key v%d is %d bytes, want %d", common.ErrConfig, v, len(k), KeySize)
		}
		ring.keys[v] = append([]byte(nil), k...)
	}
	if _, ok := ring.keys[current]; !ok {
		return nil, fmt.Errorf("%w: current master key version %d not configured", common.ErrConfig, current)
	}
	return ring, nil
}

// CurrentVersion returns the version used by Wrap.
func (r *KeyRing) CurrentVersion() int { return r.current }

// Versions lists configured versions in ascending order.
func (r *KeyRing) Versions() []int {
	out := make([]int, 0, len(r.keys))
	for v := range r.keys {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Wrap encrypts dataKey under the current master key.
func (r *KeyRing) Wrap(dataKey []byte) (*WrappedKey, error) {
	if len(dataKey) != KeySize {
		return nil, ErrKeySize
	}
	sealed, err := Encrypt(dataKey, r.keys[r.current])
	if err != nil {
		return nil, fmt.Errorf("wrap data key: %w", err)
	}
	return &WrappedKey{Version: r.current, Sealed: *sealed}, nil
}

// Unwrap recovers a data key. An unknown version is reported as
// common.ErrIntegrity: the record cannot be authenticated by this process.
func (r *KeyRing) Unwrap(w *WrappedKey) ([]byte, error) {
	if w == nil {
		return nil, common.ErrIntegrity
	}
	mk, ok := r.keys[w.Version]
	if !ok {
		return nil, fmt.Errorf("%w: unknown master key version %d", common.ErrIntegrity, w.Version)
	}
	return Decrypt(&w.Sealed, mk)
}

// Fingerprint returns a short identifier for the master key of version that
// is safe to log. It is derived with HKDF, so it reveals nothing about the key.
func (r *KeyRing) Fingerprint(version int) (string, error) {
	mk, ok := r.keys[version]
	if !ok {
		return "", fmt.Errorf("%w: unknown master key version %d", common.ErrConfig, version)
	}
	return Fingerprint(mk)
}

// Fingerprint derives an 8-byte hex identifier from a master key.
func Fingerprint(masterKey []byte) (string, error) {
	out := make([]byte, 8)
	rd := hkdf.New(sha256.New, masterKey, []byte("careconnect:fingerprint"), []byte("v1"))
	if _, err := io.ReadFull(rd, out); err != nil {
		return "", fmt.Errorf("derive fingerprint: %w", err)
	}
	return hex.EncodeToString(out), nil
}

// DecodeMasterKey parses a base64 (standard encoding) master key and checks
// that it is exactly 32 bytes.
func DecodeMasterKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%w: master key is empty", common.ErrConfig)
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: master key is not valid base64", common.ErrConfig)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: master key is %d bytes, want %d", common.ErrConfig, len(key), KeySize)
	}
	return key, nil
}
