package clinic

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// repoMem is an in-memory Repository used in tests and development.
type repoMem struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Clinic
}

func NewRepoMem() Repository {
	return &repoMem{items: make(map[uuid.UUID]*Clinic)}
}

func (r *repoMem) Create(_ context.Context, c *Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("clinic %s: not found", id)
	}
	cp := *c
	return &cp, nil
}

func (r *repoMem) Update(_ context.Context, c *Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.ID]; !ok {
		return fmt.Errorf("clinic %s: not found", c.ID)
	}
	c.UpdatedAt = time.Now()
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *repoMem) List(_ context.Context, limit, offset int) ([]*Clinic, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*Clinic
	for _, c := range r.items {
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
