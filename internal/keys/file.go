package keys

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// keyFile is the layout of a key file:
//
//	keys:
//	  - bssid: "00:11:22:33:44:55"
//	    cipher: wep
//	    key: "0102030405"
type keyFile struct {
	Keys []Entry `yaml:"keys"`
}

// LoadFile reads a YAML key file into a new Store.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	s := NewStore()
	if err := s.LoadYAML(data); err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return s, nil
}

// LoadYAML adds the keys of a YAML key document to the store.
func (s *Store) LoadYAML(data []byte) error {
	var kf keyFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return fmt.Errorf("failed to parse keys: %w", err)
	}
	return s.AddEntries(kf.Keys)
}

// ParseEntrySpec parses the compact command-line form
// "bssid=00:11:22:33:44:55,cipher=wep,key=0102030405".
func ParseEntrySpec(spec string) (Entry, error) {
	fields := make(map[string]string)
	for _, part := range strings.Split(spec, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return Entry{}, fmt.Errorf("malformed key spec %q: expected name=value", part)
		}
		fields[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	var e Entry
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &e,
	})
	if err != nil {
		return Entry{}, err
	}
	if err := dec.Decode(fields); err != nil {
		return Entry{}, fmt.Errorf("malformed key spec %q: %w", spec, err)
	}
	return e, nil
}
