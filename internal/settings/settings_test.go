package settings

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// TestLoad tests defaults and stored values.
func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("empty store yields defaults", func(t *testing.T) {
		t.Parallel()

		s, err := Load(NewMemoryStore(nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s != Default() {
			t.Errorf("expected defaults, got %+v", s)
		}
		if !s.AutoCollect {
			t.Error("expected autoCollect to default to true")
		}
		if s.AllowVariations {
			t.Error("expected allowDownloadVariations to default to false")
		}
	})

	t.Run("stored values override defaults", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore(map[string]bool{
			KeyAutoCollect:     false,
			KeyAllowVariations: true,
		})
		s, err := Load(store)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.AutoCollect || !s.AllowVariations {
			t.Errorf("unexpected settings %+v", s)
		}
	})
}

// TestSave tests single toggle writes.
func TestSave(t *testing.T) {
	t.Parallel()

	t.Run("unknown key is rejected", func(t *testing.T) {
		t.Parallel()

		err := Save(NewMemoryStore(nil), "darkMode", true)
		if !errors.Is(err, ErrUnknownKey) {
			t.Errorf("expected ErrUnknownKey, got %v", err)
		}
	})

	t.Run("toggle is visible to the next load", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore(nil)
		if err := Save(store, KeyAllowVariations, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s, err := Load(store)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !s.AllowVariations {
			t.Error("expected allowDownloadVariations to be true")
		}
		if !s.AutoCollect {
			t.Error("expected autoCollect to keep its default")
		}
	})
}

// TestSettingsGet tests key lookup on a Settings value.
func TestSettingsGet(t *testing.T) {
	t.Parallel()

	s := Settings{AutoCollect: false, AllowVariations: true}

	if v, err := s.Get(KeyAutoCollect); err != nil || v {
		t.Errorf("Get(autoCollect) = %v, %v", v, err)
	}
	if v, err := s.Get(KeyAllowVariations); err != nil || !v {
		t.Errorf("Get(allowDownloadVariations) = %v, %v", v, err)
	}
	if _, err := s.Get("other"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
}

// TestFileStore tests the YAML-backed store.
func TestFileStore(t *testing.T) {
	t.Parallel()

	t.Run("missing file reads as empty", func(t *testing.T) {
		t.Parallel()

		store := NewFileStore(filepath.Join(t.TempDir(), "settings.yaml"))
		_, ok, err := store.GetBool(KeyAutoCollect)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected key to be absent")
		}
	})

	t.Run("values persist across instances", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
		if err := Save(NewFileStore(path), KeyAutoCollect, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := Save(NewFileStore(path), KeyAllowVariations, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		s, err := Load(NewFileStore(path))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.AutoCollect || !s.AllowVariations {
			t.Errorf("unexpected settings %+v", s)
		}
	})

	t.Run("corrupt file is an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "settings.yaml")
		if err := os.WriteFile(path, []byte("autoCollect: [nope"), 0o600); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		if _, err := Load(NewFileStore(path)); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("concurrent writers leave a readable file", func(t *testing.T) {
		t.Parallel()

		store := NewFileStore(filepath.Join(t.TempDir(), "settings.yaml"))

		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func(v bool) {
				defer wg.Done()
				if err := store.SetBool(KeyAllowVariations, v); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}(i%2 == 0)
		}
		wg.Wait()

		if _, ok, err := store.GetBool(KeyAllowVariations); err != nil || !ok {
			t.Errorf("expected a stored value, got ok=%v err=%v", ok, err)
		}
	})
}
