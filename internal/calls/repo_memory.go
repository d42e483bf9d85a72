package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{calls: make(map[string]Record)}
}

func clone(r Record) Record {
	if r.Recording != nil {
		rec := *r.Recording
		r.Recording = &rec
	}
	if r.Price != nil {
		p := *r.Price
		r.Price = &p
	}
	return r
}

func (m *MemoryRepo) Apply(ctx context.Context, callSID string, fn MutateFunc) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.calls[callSID]
	if !exists {
		cur = Record{CallSID: callSID}
	}
	next, err := fn(clone(cur), exists)
	if err != nil {
		return Record{}, err
	}
	next.CallSID = callSID
	m.calls[callSID] = clone(next)
	return next, nil
}

func (m *MemoryRepo) GetBySID(ctx context.Context, callSID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.calls[callSID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return clone(r), nil
}

func (m *MemoryRepo) Get(ctx context.Context, userID, callSID string) (Record, error) {
	r, err := m.GetBySID(ctx, callSID)
	if err != nil {
		return Record{}, err
	}
	if r.UserID != userID {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepo) filter(keep func(Record) bool) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.calls {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func page(rs []Record, limit, offset int) []Record {
	if offset >= len(rs) {
		return nil
	}
	rs = rs[offset:]
	if limit < len(rs) {
		rs = rs[:limit]
	}
	return rs
}

func (m *MemoryRepo) List(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	return page(m.filter(func(r Record) bool { return r.UserID == userID }), limit, offset), nil
}

func (m *MemoryRepo) ListRecordings(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	return page(m.filter(func(r Record) bool { return r.UserID == userID && r.Recording != nil }), limit, offset), nil
}

func (m *MemoryRepo) ListBetween(ctx context.Context, userID string, from, to time.Time) ([]Record, error) {
	out := m.filter(func(r Record) bool {
		return r.UserID == userID && !r.CreatedAt.Before(from) && r.CreatedAt.Before(to)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
