package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memTable struct {
	meta    TableMeta
	records []Record
	nextID  int64
}

// MemoryStore keeps tables in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*memTable
	now    func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*memTable), now: time.Now}
}

func (m *MemoryStore) CreateTableIfNotExists(_ context.Context, name string, headers []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	t, ok := m.tables[name]
	if !ok {
		t = &memTable{meta: TableMeta{Name: name, CreatedAt: now}}
		m.tables[name] = t
	}
	t.meta.Headers = append([]string(nil), headers...)
	t.meta.LastUpdated = now
	return nil
}

func (m *MemoryStore) AppendRecords(_ context.Context, name string, records []Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	for _, r := range records {
		c := clone(r)
		t.nextID++
		c[FieldID] = t.nextID
		t.records = append(t.records, c)
	}
	t.meta.RecordCount = len(t.records)
	t.meta.LastUpdated = m.now().UTC()
	return len(records), nil
}

func (m *MemoryStore) ListTables(context.Context) ([]TableMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TableMeta, 0, len(m.tables))
	for _, t := range m.tables {
		meta := t.meta
		meta.Headers = append([]string(nil), t.meta.Headers...)
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) TableData(_ context.Context, name string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[name]
	if !ok {
		return []Record{}, nil
	}
	out := make([]Record, len(t.records))
	for i, r := range t.records {
		out[i] = clone(r)
	}
	return out, nil
}

func (m *MemoryStore) ClearTable(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tables[name]; ok {
		t.records = nil
		t.meta.RecordCount = 0
		t.meta.LastUpdated = m.now().UTC()
	}
	return nil
}

func (m *MemoryStore) DeleteTable(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, name)
	return nil
}

func (m *MemoryStore) Stats(context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{TotalTables: len(m.tables)}
	for _, t := range m.tables {
		st.TotalRecords += t.meta.RecordCount
	}
	return st, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) Close() error { return nil }

var _ TableStore = (*MemoryStore)(nil)
