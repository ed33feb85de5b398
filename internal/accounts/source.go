package accounts

import (
	"context"
	"sort"

	"orderbook-lab/internal/domain"
)

// MemorySource is a TechAccountSource fed from the event log.
// Later entries for the same account replace earlier ones.
type MemorySource struct {
	accounts map[string]TechAccount
}

// NewMemorySource creates an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{accounts: make(map[string]TechAccount)}
}

// Put registers or replaces technical accounts.
func (s *MemorySource) Put(entries ...TechAccount) {
	for _, e := range entries {
		s.accounts[e.AccountID] = e
	}
}

// TechAccounts returns every registered account ordered by account id.
func (s *MemorySource) TechAccounts(_ context.Context, _ domain.Block) ([]TechAccount, error) {
	out := make([]TechAccount, 0, len(s.accounts))
	for _, e := range s.accounts {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}
