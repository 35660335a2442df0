package rowstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process table. It backs local development and tests.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]Row
	seq  []string // insertion order, used as the tie-break for sorting
	now  func() time.Time
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{rows: make(map[string]Row), now: now}
}

func (m *Memory) SelectAll(_ context.Context, orderBy string) ([]Row, error) {
	if err := checkOrderBy(orderBy); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Row, 0, len(m.seq))
	for _, id := range m.seq {
		out = append(out, cloneRow(m.rows[id]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return fmt.Sprint(out[i][orderBy]) < fmt.Sprint(out[j][orderBy])
	})
	return out, nil
}

func (m *Memory) Insert(_ context.Context, row Row) (Row, error) {
	if err := checkColumns(row); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := cloneRow(row)
	id := uuid.NewString()
	stored["id"] = id
	stored["created_at"] = m.now().UTC().Format(time.RFC3339Nano)
	m.rows[id] = stored
	m.seq = append(m.seq, id)
	return cloneRow(stored), nil
}

func (m *Memory) Update(_ context.Context, id string, row Row) (Row, error) {
	if err := checkColumns(row); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range row {
		stored[k] = v
	}
	return cloneRow(stored), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	for i, s := range m.seq {
		if s == id {
			m.seq = append(m.seq[:i], m.seq[i+1:]...)
			break
		}
	}
	return nil
}

// Seed stores rows as given, keeping any id/created_at they carry. Rows
// without an id get one.
func (m *Memory) Seed(rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		stored := cloneRow(r)
		id, _ := stored["id"].(string)
		if id == "" {
			id = uuid.NewString()
			stored["id"] = id
		}
		if _, ok := m.rows[id]; !ok {
			m.seq = append(m.seq, id)
		}
		m.rows[id] = stored
	}
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
