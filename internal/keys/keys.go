// Package keys provides per-network decryption key lookup for protected 802.11 frames.
package keys

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"sync"

	"firestige.xyz/dissector/internal/core"
)

// Cipher identifies the link-layer protection a key is meant for.
type Cipher uint8

const (
	CipherNone Cipher = iota
	CipherWEP
	CipherTKIP
	CipherCCMP
)

func (c Cipher) String() string {
	switch c {
	case CipherWEP:
		return "wep"
	case CipherTKIP:
		return "tkip"
	case CipherCCMP:
		return "ccmp"
	default:
		return "none"
	}
}

// ParseCipher maps a configuration name to a Cipher.
func ParseCipher(name string) (Cipher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wep":
		return CipherWEP, nil
	case "tkip", "wpa":
		return CipherTKIP, nil
	case "ccmp", "wpa2", "aes":
		return CipherCCMP, nil
	default:
		return CipherNone, fmt.Errorf("%w: unknown cipher %q", core.ErrKeyInvalid, name)
	}
}

// Key is the secret registered for one network.
// For TKIP, Secret holds the 16-byte temporal key, optionally followed by
// the two 8-byte Michael keys. For CCMP it holds the 16-byte temporal key.
type Key struct {
	Cipher Cipher
	Secret []byte
}

// Validate checks the secret length against the cipher.
func (k Key) Validate() error {
	n := len(k.Secret)
	switch k.Cipher {
	case CipherWEP:
		// 40, 104 and 128 bit WEP secrets
		if n == 5 || n == 13 || n == 16 {
			return nil
		}
	case CipherTKIP:
		if n == 16 || n == 32 {
			return nil
		}
	case CipherCCMP:
		if n == 16 {
			return nil
		}
	default:
		return fmt.Errorf("%w: cipher not set", core.ErrKeyInvalid)
	}
	return fmt.Errorf("%w: %d byte secret is not valid for %s", core.ErrKeyInvalid, n, k.Cipher)
}

// Lookup maps a BSSID to its key. A miss is reported through the boolean,
// never as an error.
type Lookup interface {
	Key(bssid net.HardwareAddr) (Key, bool)
}

// Empty is a Lookup that never has a key.
type Empty struct{}

func (Empty) Key(net.HardwareAddr) (Key, bool) { return Key{}, false }

// Store is a static key table. It is safe for concurrent lookups while
// other goroutines add keys.
type Store struct {
	mu   sync.RWMutex
	keys map[string]Key
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{keys: make(map[string]Key)}
}

// Add registers key for bssid, replacing any previous entry.
func (s *Store) Add(bssid net.HardwareAddr, key Key) error {
	if len(bssid) != 6 {
		return fmt.Errorf("%w: bssid %q must be 6 bytes", core.ErrKeyInvalid, bssid.String())
	}
	if err := key.Validate(); err != nil {
		return err
	}
	secret := make([]byte, len(key.Secret))
	copy(secret, key.Secret)

	s.mu.Lock()
	s.keys[bssid.String()] = Key{Cipher: key.Cipher, Secret: secret}
	s.mu.Unlock()
	return nil
}

// Key implements Lookup.
func (s *Store) Key(bssid net.HardwareAddr) (Key, bool) {
	s.mu.RLock()
	k, ok := s.keys[bssid.String()]
	s.mu.RUnlock()
	return k, ok
}

// Len returns the number of registered networks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Entry is the textual form of a key, as found in configuration and key files.
type Entry struct {
	BSSID  string `yaml:"bssid" mapstructure:"bssid"`
	Cipher string `yaml:"cipher" mapstructure:"cipher"`
	Key    string `yaml:"key" mapstructure:"key"`
}

// Parse converts the entry into a BSSID and a validated Key.
// The secret is hex, with optional ':' or '-' separators.
func (e Entry) Parse() (net.HardwareAddr, Key, error) {
	bssid, err := net.ParseMAC(strings.TrimSpace(e.BSSID))
	if err != nil {
		return nil, Key{}, fmt.Errorf("%w: bssid %q: %v", core.ErrKeyInvalid, e.BSSID, err)
	}
	cipher, err := ParseCipher(e.Cipher)
	if err != nil {
		return nil, Key{}, err
	}
	clean := strings.NewReplacer(":", "", "-", "", " ", "").Replace(e.Key)
	secret, err := hex.DecodeString(clean)
	if err != nil {
		return nil, Key{}, fmt.Errorf("%w: key for %s is not hex: %v", core.ErrKeyInvalid, e.BSSID, err)
	}
	key := Key{Cipher: cipher, Secret: secret}
	if err := key.Validate(); err != nil {
		return nil, Key{}, fmt.Errorf("key for %s: %w", e.BSSID, err)
	}
	return bssid, key, nil
}

// AddEntries parses and registers every entry, stopping at the first invalid one.
func (s *Store) AddEntries(entries []Entry) error {
	for i, e := range entries {
		bssid, key, err := e.Parse()
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if err := s.Add(bssid, key); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}
