// Package store provides in-memory implementations of the generic store
// interfaces.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/hallops/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements TxSettingsStore, TxVersionStore and ProgramCatalog.
// Transactions work on a snapshot that is swapped in only on success.
type Memory struct {
	mu    sync.Mutex
	state *memState

	// FailOn makes the named operation return the given error, for
	// exercising rollback paths in tests.
	FailOn map[string]error
}

type memState struct {
	settings map[string]generic.Setting
	versions map[string]generic.Version
	order    []string
	programs []generic.Program
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{state: &memState{
		settings: make(map[string]generic.Setting),
		versions: make(map[string]generic.Version),
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		settings: make(map[string]generic.Setting, len(s.settings)),
		versions: make(map[string]generic.Version, len(s.versions)),
		order:    append([]string(nil), s.order...),
		programs: append([]generic.Program(nil), s.programs...),
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	for k, v := range s.versions {
		c.versions[k] = copyVersion(v)
	}
	return c
}

func copyVersion(v generic.Version) generic.Version {
	v.Slots = append([]generic.Slot(nil), v.Slots...)
	v.Content = append(json.RawMessage(nil), v.Content...)
	return v
}

// AddProgram registers a program slug.
func (m *Memory) AddProgram(p generic.Program) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.programs = append(m.state.programs, p)
}

// ListPrograms returns registered programs.
func (m *Memory) ListPrograms(_ context.Context) ([]generic.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generic.Program(nil), m.state.programs...), nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Memory) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m, s: m.state}).GetSetting(ctx, key)
}

func (m *Memory) SetSetting(ctx context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m, s: m.state}).SetSetting(ctx, key, value)
}

func (m *Memory) DeleteSetting(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m, s: m.state}).DeleteSetting(ctx, key)
}

func (m *Memory) ListSettings(ctx context.Context, prefix string) ([]generic.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m, s: m.state}).ListSettings(ctx, prefix)
}

// WithSettingsTx runs fn against a snapshot and commits it on success.
func (m *Memory) WithSettingsTx(ctx context.Context, fn func(generic.SettingsStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{m: m, s: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.s
	return nil
}

// =============================================================================
// VERSIONS
// =============================================================================

func (m *Memory) FindVersionByStatus(ctx context.Context, kind generic.DocumentKind, status generic.VersionStatus) (*generic.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m, s: m.state}).FindVersionByStatus(ctx, kind, status)
}

func (m *Memory) GetVersion(ctx context.Context, id string) (*generic.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m, s: m.state}).GetVersion(ctx, id)
}

func (m *Memory) ListVersions(ctx context.Context, kind generic.DocumentKind) ([]generic.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m, s: m.state}).ListVersions(ctx, kind)
}

func (m *Memory) CreateVersion(ctx context.Context, v *generic.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m, s: m.state}).CreateVersion(ctx, v)
}

func (m *Memory) UpdateVersion(ctx context.Context, v *generic.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m, s: m.state}).UpdateVersion(ctx, v)
}

func (m *Memory) SetVersionStatus(ctx context.Context, id string, status generic.VersionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m, s: m.state}).SetVersionStatus(ctx, id, status)
}

// WithVersionTx runs fn against a snapshot and commits it on success.
func (m *Memory) WithVersionTx(ctx context.Context, fn func(generic.VersionStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{m: m, s: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.s
	return nil
}

// =============================================================================
// TX VIEW - Operations over one state snapshot (caller holds the lock)
// =============================================================================

type memTx struct {
	m *Memory
	s *memState
}

func (t *memTx) fail(op string) error {
	if t.m.FailOn == nil {
		return nil
	}
	return t.m.FailOn[op]
}

func (t *memTx) GetSetting(_ context.Context, key string) (json.RawMessage, error) {
	if err := t.fail("GetSetting"); err != nil {
		return nil, err
	}
	st, ok := t.s.settings[key]
	if !ok {
		return nil, nil
	}
	return append(json.RawMessage(nil), st.Value...), nil
}

func (t *memTx) SetSetting(_ context.Context, key string, value json.RawMessage) error {
	if err := t.fail("SetSetting"); err != nil {
		return err
	}
	t.s.settings[key] = generic.Setting{Key: key, Value: append(json.RawMessage(nil), value...), UpdatedAt: time.Now().UTC()}
	return nil
}

func (t *memTx) DeleteSetting(_ context.Context, key string) error {
	if err := t.fail("DeleteSetting"); err != nil {
		return err
	}
	delete(t.s.settings, key)
	return nil
}

func (t *memTx) ListSettings(_ context.Context, prefix string) ([]generic.Setting, error) {
	var out []generic.Setting
	for k, v := range t.s.settings {
		if strings.HasPrefix(k, prefix) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (t *memTx) FindVersionByStatus(_ context.Context, kind generic.DocumentKind, status generic.VersionStatus) (*generic.Version, error) {
	for i := len(t.s.order) - 1; i >= 0; i-- {
		v := t.s.versions[t.s.order[i]]
		if v.Kind == kind && v.Status == status {
			c := copyVersion(v)
			return &c, nil
		}
	}
	return nil, nil
}

func (t *memTx) GetVersion(_ context.Context, id string) (*generic.Version, error) {
	v, ok := t.s.versions[id]
	if !ok {
		return nil, generic.ErrNotFound
	}
	c := copyVersion(v)
	return &c, nil
}

func (t *memTx) ListVersions(_ context.Context, kind generic.DocumentKind) ([]generic.Version, error) {
	var out []generic.Version
	for i := len(t.s.order) - 1; i >= 0; i-- {
		v := t.s.versions[t.s.order[i]]
		if v.Kind == kind {
			c := copyVersion(v)
			c.Slots = nil
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *memTx) CreateVersion(_ context.Context, v *generic.Version) error {
	if err := t.fail("CreateVersion"); err != nil {
		return err
	}
	if _, exists := t.s.versions[v.ID]; exists {
		return generic.ErrConflict
	}
	if v.Status == generic.StatusActive {
		for _, existing := range t.s.versions {
			if existing.Kind == v.Kind && existing.Status == generic.StatusActive {
				return generic.ErrConflict
			}
		}
	}
	t.s.versions[v.ID] = copyVersion(*v)
	t.s.order = append(t.s.order, v.ID)
	return nil
}

func (t *memTx) UpdateVersion(_ context.Context, v *generic.Version) error {
	if err := t.fail("UpdateVersion"); err != nil {
		return err
	}
	if _, ok := t.s.versions[v.ID]; !ok {
		return generic.ErrNotFound
	}
	t.s.versions[v.ID] = copyVersion(*v)
	return nil
}

func (t *memTx) SetVersionStatus(_ context.Context, id string, status generic.VersionStatus) error {
	if err := t.fail("SetVersionStatus"); err != nil {
		return err
	}
	v, ok := t.s.versions[id]
	if !ok {
		return generic.ErrNotFound
	}
	v.Status = status
	t.s.versions[id] = v
	return nil
}
