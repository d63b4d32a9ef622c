package settings

import (
	"errors"
	"fmt"
	"slices"
)

// Keys under which the toggles are stored.
const (
	// KeyAutoCollect starts a collection as soon as the tool comes up.
	KeyAutoCollect = "autoCollect"

	// KeyAllowVariations accepts anchor text that contains "download" as a word.
	KeyAllowVariations = "allowDownloadVariations"
)

// ErrUnknownKey is returned for a key other than KeyAutoCollect or KeyAllowVariations.
var ErrUnknownKey = errors.New("unknown settings key")

// Settings are the persisted user preferences.
type Settings struct {
	// AutoCollect runs a collection when the relay server starts.
	AutoCollect bool `json:"autoCollect"`

	// AllowVariations enables the word-boundary match ("Download Now").
	AllowVariations bool `json:"allowDownloadVariations"`
}

// Default returns the settings used for keys that were never written.
func Default() Settings {
	return Settings{
		AutoCollect:     true,
		AllowVariations: false,
	}
}

// Keys returns every known key in display order.
func Keys() []string {
	return []string{KeyAutoCollect, KeyAllowVariations}
}

// ValidateKey reports ErrUnknownKey for keys outside Keys().
func ValidateKey(key string) error {
	if !slices.Contains(Keys(), key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

// Store is a boolean key-value store.
type Store interface {
	// GetBool returns the stored value and whether the key was present.
	GetBool(key string) (value bool, ok bool, err error)

	// SetBool stores one value. Concurrent writers race; the last one wins.
	SetBool(key string, value bool) error
}

// Load reads both toggles, falling back to Default for missing keys.
func Load(store Store) (Settings, error) {
	s := Default()

	autoCollect, ok, err := store.GetBool(KeyAutoCollect)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read %s: %w", KeyAutoCollect, err)
	}
	if ok {
		s.AutoCollect = autoCollect
	}

	allow, ok, err := store.GetBool(KeyAllowVariations)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read %s: %w", KeyAllowVariations, err)
	}
	if ok {
		s.AllowVariations = allow
	}

	return s, nil
}

// Save writes a single toggle.
func Save(store Store, key string, value bool) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := store.SetBool(key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Get returns the value of key from s.
func (s Settings) Get(key string) (bool, error) {
	switch key {
	case KeyAutoCollect:
		return s.AutoCollect, nil
	case KeyAllowVariations:
		return s.AllowVariations, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
}
