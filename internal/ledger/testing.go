package ledger

// SeedBalance is a test helper that seeds available funds directly when using
// the in-memory store, bypassing the transaction log.
func SeedBalance(s Store, walletID string, available int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if w, exists := mem.wallets[walletID]; exists {
			w.Available = available
		}
	}
}
