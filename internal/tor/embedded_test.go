package tor

import (
	"errors"
	"testing"
	"time"
)

// TestEmbeddedTor tests the daemon manager without starting Tor.
func TestEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("uses default timeout", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if e.StartupTimeout() != DefaultStartupTimeout {
			t.Errorf("expected %v, got %v", DefaultStartupTimeout, e.StartupTimeout())
		}
	})

	t.Run("applies WithStartupTimeout", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor(WithStartupTimeout(5 * time.Minute))
		if e.StartupTimeout() != 5*time.Minute {
			t.Errorf("expected 5m, got %v", e.StartupTimeout())
		}
	})

	t.Run("ignores non-positive timeout", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor(WithStartupTimeout(0))
		if e.StartupTimeout() != DefaultStartupTimeout {
			t.Errorf("expected default, got %v", e.StartupTimeout())
		}
	})

	t.Run("stopped instance", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if e.IsRunning() {
			t.Error("expected not running")
		}
		if e.SocksAddr() != "" {
			t.Errorf("expected empty address, got %q", e.SocksAddr())
		}
		if err := e.Stop(); err != nil {
			t.Errorf("Stop on unstarted instance returned %v", err)
		}
		if _, err := e.NewClient(time.Second); !errors.Is(err, ErrNotRunning) {
			t.Errorf("expected ErrNotRunning, got %v", err)
		}
	})
}
