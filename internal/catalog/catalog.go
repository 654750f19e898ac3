// Package catalog holds the static boundary reference data. The catalog is
// immutable at runtime; every ledger write validates boundary ids against it
// and the match engine uses its ordering for stable responses.
package catalog

import (
	id "tandem/pkg/domain"
)

// Boundary is a single consentable behavior drawn from the catalog.
type Boundary struct {
	ID       id.BoundaryID `json:"id"`
	Label    string        `json:"label"`
	Category string        `json:"category"`
}

// Category groups boundaries for rendering.
type Category struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Boundaries []Boundary `json:"boundaries"`
}

// Service provides read-only catalog lookups.
type Service struct {
	categories []Category
	order      map[id.BoundaryID]int
	byID       map[id.BoundaryID]Boundary
}

// New builds the catalog service from the seed data.
func New() *Service {
	return newFromCategories(seed())
}

func newFromCategories(categories []Category) *Service {
	s := &Service{
		categories: categories,
		order:      make(map[id.BoundaryID]int),
		byID:       make(map[id.BoundaryID]Boundary),
	}
	i := 0
	for _, c := range categories {
		for _, b := range c.Boundaries {
			s.order[b.ID] = i
			s.byID[b.ID] = b
			i++
		}
	}
	return s
}

// Exists reports whether a boundary id is part of the catalog.
func (s *Service) Exists(boundaryID id.BoundaryID) bool {
	_, ok := s.byID[boundaryID]
	return ok
}

// Get returns the boundary definition for an id.
func (s *Service) Get(boundaryID id.BoundaryID) (Boundary, bool) {
	b, ok := s.byID[boundaryID]
	return b, ok
}

// OrderIndex returns the catalog position of a boundary. Unknown ids sort last.
func (s *Service) OrderIndex(boundaryID id.BoundaryID) int {
	if idx, ok := s.order[boundaryID]; ok {
		return idx
	}
	return len(s.order)
}

// Categories returns the full ordered catalog for rendering.
func (s *Service) Categories() []Category {
	return s.categories
}

// Size returns the number of boundaries in the catalog.
func (s *Service) Size() int {
	return len(s.byID)
}
