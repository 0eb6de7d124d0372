package testsupport

import (
	"testing"

	"reelgen/internal/config"
	"reelgen/internal/ledger"
)

// MustOpenLedger opens the run ledger for cfg and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
