package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/indiec/internal/server/models"
)

// CatalogService serves reference catalogs. Catalogs are seeded by
// migrations and never change at runtime, so successful reads are cached.
type CatalogService struct {
	Deps
	mu    sync.RWMutex
	cache map[string][]models.CatalogItem
}

func NewCatalogService(d Deps) *CatalogService {
	return &CatalogService{Deps: d, cache: map[string][]models.CatalogItem{}}
}

func (s *CatalogService) List(ctx context.Context, name string) ([]models.CatalogItem, error) {
	s.mu.RLock()
	items, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return items, nil
	}

	items, err := s.Repos.Catalogs(s.DB).List(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[name] = items
	s.mu.Unlock()
	return items, nil
}

// Exists reports whether id is present in the named catalog.
func (s *CatalogService) Exists(ctx context.Context, name string, id int64) (bool, error) {
	s.mu.RLock()
	items, ok := s.cache[name]
	s.mu.RUnlock()
	if !ok {
		return s.Repos.Catalogs(s.DB).Exists(ctx, name, id)
	}
	for _, it := range items {
		if it.ID == id {
			return true, nil
		}
	}
	return false, nil
}
