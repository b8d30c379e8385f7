package catalog

import (
	"context"
	"sync"
	"time"

	"dropship-gateway/internal/model"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*Product
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*Product),
		now:      time.Now,
	}
}

func (m *MemoryStore) GetProduct(_ context.Context, id string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, model.NewNotFoundError("product " + id)
	}
	return clone(p), nil
}

func (m *MemoryStore) UpsertProduct(_ context.Context, p *Product) error {
	if p == nil || p.ID == "" {
		return model.NewValidationError("product id", "required")
	}
	cp := clone(p)
	cp.UpdatedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = cp
	return nil
}

func (m *MemoryStore) UpdateVariantStock(_ context.Context, productID, variantID string, stock int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return model.NewNotFoundError("product " + productID)
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			p.Variants[i].Stock = stock
			p.Variants[i].Available = stock > 0
			p.UpdatedAt = m.now()
			return nil
		}
	}
	return model.NewNotFoundError("variant " + variantID)
}

func clone(p *Product) *Product {
	cp := *p
	cp.Variants = append([]Variant(nil), p.Variants...)
	return &cp
}
