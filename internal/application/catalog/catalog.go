// Package catalog provides read-only lookup of expense categories and problem
// types keyed by (document type, meeting type, expense type) context codes.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// Catalog is the classification lookup used by problem resolution
type Catalog interface {
	// FindCategory matches a human-entered label within a document/meeting context.
	// Returns (nil, nil) when no category carries the label.
	FindCategory(ctx context.Context, documentType, meetingType, label string) (*entity.ExpenseCategory, error)

	// GeneralCategories returns the categories of the context with the general expense code
	GeneralCategories(ctx context.Context, documentType, meetingType string) ([]*entity.ExpenseCategory, error)

	// ProblemTypes returns the active problem types with exactly the given code
	ProblemTypes(ctx context.Context, code entity.ContextCode) ([]*entity.ProblemType, error)

	// ProblemType returns a problem type by id, or (nil, nil)
	ProblemType(ctx context.Context, id int64) (*entity.ProblemType, error)

	// Invalidate drops cached entries; the next lookup reloads them
	Invalidate()
}

type contextKey struct {
	documentType string
	meetingType  string
}

// index is an immutable snapshot of the catalog tables
type index struct {
	categories   map[contextKey][]*entity.ExpenseCategory
	problemTypes map[entity.ContextCode][]*entity.ProblemType
	problemByID  map[int64]*entity.ProblemType
}

type cachedCatalog struct {
	repo port.CatalogRepository

	mu      sync.RWMutex
	current *index
}

// New creates a catalog that loads reference data lazily and keeps it in memory
func New(repo port.CatalogRepository) Catalog {
	return &cachedCatalog{repo: repo}
}

// FindCategory matches the label exactly after trimming surrounding spaces
func (c *cachedCatalog) FindCategory(ctx context.Context, documentType, meetingType, label string) (*entity.ExpenseCategory, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, nil
	}

	idx, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	for _, cat := range idx.categories[contextKey{documentType, meetingType}] {
		if cat.Name == label {
			return cat, nil
		}
	}
	return nil, nil
}

// GeneralCategories returns the "00" categories of the context
func (c *cachedCatalog) GeneralCategories(ctx context.Context, documentType, meetingType string) ([]*entity.ExpenseCategory, error) {
	idx, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	var result []*entity.ExpenseCategory
	for _, cat := range idx.categories[contextKey{documentType, meetingType}] {
		if cat.ExpenseTypeCode == entity.GeneralExpenseTypeCode {
			result = append(result, cat)
		}
	}
	return result, nil
}

// ProblemTypes returns the active problem types of the exact code
func (c *cachedCatalog) ProblemTypes(ctx context.Context, code entity.ContextCode) ([]*entity.ProblemType, error) {
	idx, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return append([]*entity.ProblemType(nil), idx.problemTypes[code]...), nil
}

// ProblemType returns a problem type by id, active or not
func (c *cachedCatalog) ProblemType(ctx context.Context, id int64) (*entity.ProblemType, error) {
	idx, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return idx.problemByID[id], nil
}

// Invalidate drops the cached snapshot
func (c *cachedCatalog) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *cachedCatalog) load(ctx context.Context) (*index, error) {
	c.mu.RLock()
	idx := c.current
	c.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return c.current, nil
	}

	categories, err := c.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load expense categories: %w", err)
	}
	problemTypes, err := c.repo.ListProblemTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load problem types: %w", err)
	}

	c.current = buildIndex(categories, problemTypes)
	return c.current, nil
}

func buildIndex(categories []*entity.ExpenseCategory, problemTypes []*entity.ProblemType) *index {
	idx := &index{
		categories:   make(map[contextKey][]*entity.ExpenseCategory),
		problemTypes: make(map[entity.ContextCode][]*entity.ProblemType),
		problemByID:  make(map[int64]*entity.ProblemType, len(problemTypes)),
	}

	for _, cat := range categories {
		key := contextKey{cat.DocumentTypeCode, cat.MeetingTypeCode}
		idx.categories[key] = append(idx.categories[key], cat)
	}
	for key := range idx.categories {
		list := idx.categories[key]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].ExpenseTypeCode != list[j].ExpenseTypeCode {
				return list[i].ExpenseTypeCode < list[j].ExpenseTypeCode
			}
			return list[i].ID < list[j].ID
		})
	}

	for _, pt := range problemTypes {
		idx.problemByID[pt.ID] = pt
		if !pt.Active {
			continue
		}
		idx.problemTypes[pt.ContextCode()] = append(idx.problemTypes[pt.ContextCode()], pt)
	}

	return idx
}
