package shift

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/hallops/generic"
)

// MemoryStore is an in-memory Store for tests and the CLI.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]Record
	cashCounts map[string]CashCount
	checks     map[string][]CheckEntry
	restricted []RestrictedPlayer

	// FailSubmission, when set, is returned by SaveSubmission after the
	// record has been staged, to exercise atomicity.
	FailSubmission error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]Record),
		cashCounts: make(map[string]CashCount),
		checks:     make(map[string][]CheckEntry),
	}
}

func (m *MemoryStore) CreateShift(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; ok {
		return generic.ErrConflict
	}
	m.records[r.ID] = r
	return nil
}

func (m *MemoryStore) UpdateShift(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; !ok {
		return generic.ErrNotFound
	}
	m.records[r.ID] = r
	return nil
}

func (m *MemoryStore) GetShift(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, generic.ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) ListShifts(_ context.Context, f Filter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.records {
		if r.IsDeleted && !f.IncludeDeleted {
			continue
		}
		if (f.From != "" && r.Date < f.From) || (f.To != "" && r.Date > f.To) {
			continue
		}
		if (f.Shift != "" && r.Shift != f.Shift) || (f.Workflow != "" && r.WorkflowType != f.Workflow) {
			continue
		}
		out = append(out, r)
	}
	sortRecords(out)
	return out, nil
}

func (m *MemoryStore) FindPreviousShift(_ context.Context, date string, designation Designation) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var candidates []Record
	for _, r := range m.records {
		if r.IsDeleted {
			continue
		}
		if r.Date < date || (designation == PM && r.Date == date && r.Shift == AM) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sortRecords(candidates)
	last := candidates[len(candidates)-1]
	return &last, nil
}

func (m *MemoryStore) SaveSubmission(_ context.Context, r Record, cash CashCount, checks []CheckEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSubmission != nil {
		return m.FailSubmission
	}
	if _, ok := m.records[r.ID]; ok {
		return generic.ErrConflict
	}
	m.records[r.ID] = r
	m.cashCounts[r.ID] = cash
	m.checks[r.ID] = append([]CheckEntry(nil), checks...)
	return nil
}

// CashCount returns the stored count for a submitted shift.
func (m *MemoryStore) CashCount(id string) (CashCount, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cashCounts[id]
	return c, ok
}

// Checks returns the stored check log for a submitted shift.
func (m *MemoryStore) Checks(id string) []CheckEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checks[id]
}

func (m *MemoryStore) ListRestrictedPlayers(_ context.Context, activeOnly bool) ([]RestrictedPlayer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RestrictedPlayer
	for _, p := range m.restricted {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) CreateRestrictedPlayer(_ context.Context, p RestrictedPlayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restricted = append(m.restricted, p)
	return nil
}

// sortRecords orders by date, then AM before PM, then id.
func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Date != rs[j].Date {
			return rs[i].Date < rs[j].Date
		}
		if rs[i].Shift != rs[j].Shift {
			return rs[i].Shift < rs[j].Shift
		}
		return rs[i].ID < rs[j].ID
	})
}
