package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"sweetshop/internal/domain"
	"sweetshop/internal/repos"
	"sweetshop/internal/validate"
)

// SweetStore is the catalog persistence the inventory relies on. Missing
// sweets are reported as sql.ErrNoRows; DecrementIfPositive reports an empty
// shelf as repos.ErrInsufficientStock.
type SweetStore interface {
	Insert(ctx context.Context, s domain.Sweet) error
	Get(ctx context.Context, id string) (domain.Sweet, error)
	Query(ctx context.Context, f domain.SearchFilter) ([]domain.Sweet, error)
	Patch(ctx context.Context, id string, p domain.SweetPatch) (domain.Sweet, error)
	DecrementIfPositive(ctx context.Context, id string) (domain.Sweet, error)
	Increment(ctx context.Context, id string, amount int) (domain.Sweet, error)
	Delete(ctx context.Context, id string) error
}

type CreateSweetInput struct {
	Name     string
	Category string
	Price    float64
	Quantity int
}

type InventoryService struct {
	Sweets SweetStore
	now    func() time.Time
}

func NewInventoryService(sweets SweetStore) *InventoryService {
	return &InventoryService{Sweets: sweets, now: time.Now}
}

func (s *InventoryService) Create(ctx context.Context, in CreateSweetInput) (domain.Sweet, error) {
	name, ok := validate.Name(in.Name)
	if !ok {
		return domain.Sweet{}, errBadName
	}
	if err := checkPrice(in.Price); err != nil {
		return domain.Sweet{}, err
	}
	if in.Quantity < 0 {
		return domain.Sweet{}, fmt.Errorf("%w: quantity cannot be negative", ErrInvalidSweet)
	}

	sw := domain.Sweet{
		ID:        uuid.NewString(),
		Name:      name,
		Category:  strings.TrimSpace(in.Category),
		Price:     in.Price,
		Quantity:  in.Quantity,
		CreatedAt: s.now().UTC(),
	}
	if err := s.Sweets.Insert(ctx, sw); err != nil {
		return domain.Sweet{}, fmt.Errorf("insert sweet: %w", err)
	}
	return sw, nil
}

// List returns every sweet, newest first.
func (s *InventoryService) List(ctx context.Context) ([]domain.Sweet, error) {
	return s.Search(ctx, domain.SearchFilter{})
}

// Search applies every supplied filter (AND), newest first.
func (s *InventoryService) Search(ctx context.Context, f domain.SearchFilter) ([]domain.Sweet, error) {
	var okName, okCat bool
	f.Name, okName = validate.Term(f.Name)
	f.Category, okCat = validate.Term(f.Category)
	if !okName || !okCat {
		return nil, fmt.Errorf("%w: search terms are limited to %d characters", ErrInvalidFilter, validate.MaxTermLen)
	}
	for _, p := range []*float64{f.MinPrice, f.MaxPrice} {
		if p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
			return nil, fmt.Errorf("%w: price bounds must be finite", ErrInvalidFilter)
		}
	}
	out, err := s.Sweets.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query sweets: %w", err)
	}
	return out, nil
}

func (s *InventoryService) Update(ctx context.Context, id string, p domain.SweetPatch) (domain.Sweet, error) {
	id, err := parseID(id)
	if err != nil {
		return domain.Sweet{}, err
	}
	if p.Name != nil {
		name, ok := validate.Name(*p.Name)
		if !ok {
			return domain.Sweet{}, errBadName
		}
		p.Name = &name
	}
	if p.Category != nil {
		c := strings.TrimSpace(*p.Category)
		p.Category = &c
	}
	if p.Price != nil {
		if err := checkPrice(*p.Price); err != nil {
			return domain.Sweet{}, err
		}
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return domain.Sweet{}, fmt.Errorf("%w: quantity cannot be negative", ErrInvalidSweet)
	}

	sw, err := s.Sweets.Patch(ctx, id, p)
	if err != nil {
		return domain.Sweet{}, storeErr("update sweet", err)
	}
	return sw, nil
}

func (s *InventoryService) Delete(ctx context.Context, id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	if err := s.Sweets.Delete(ctx, id); err != nil {
		return storeErr("delete sweet", err)
	}
	return nil
}

// Purchase takes exactly one unit. The availability check and the decrement
// happen in the store as one conditional update.
func (s *InventoryService) Purchase(ctx context.Context, id string) (domain.Sweet, error) {
	id, err := parseID(id)
	if err != nil {
		return domain.Sweet{}, err
	}
	sw, err := s.Sweets.DecrementIfPositive(ctx, id)
	if err != nil {
		if errors.Is(err, repos.ErrInsufficientStock) {
			return domain.Sweet{}, ErrOutOfStock
		}
		return domain.Sweet{}, storeErr("purchase sweet", err)
	}
	return sw, nil
}

// Restock adds amount units. A nil amount means the caller supplied none.
func (s *InventoryService) Restock(ctx context.Context, id string, amount *int) (domain.Sweet, error) {
	id, err := parseID(id)
	if err != nil {
		return domain.Sweet{}, err
	}
	if amount == nil || *amount <= 0 {
		return domain.Sweet{}, ErrInvalidQuantity
	}
	sw, err := s.Sweets.Increment(ctx, id, *amount)
	if err != nil {
		return domain.Sweet{}, storeErr("restock sweet", err)
	}
	return sw, nil
}

var errBadName = fmt.Errorf("%w: name must be 1 to %d characters", ErrInvalidSweet, validate.MaxNameLen)

func parseID(raw string) (string, error) {
	id, ok := validate.ID(raw)
	if !ok {
		return "", ErrInvalidID
	}
	return id, nil
}

func checkPrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return fmt.Errorf("%w: price must be a non-negative number", ErrInvalidSweet)
	}
	return nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
