package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"table-ordering-service/internal/apperr"
	"table-ordering-service/internal/entity"
)

type MenuService struct {
	deps Deps
}

func NewMenuService(deps Deps) *MenuService {
	return &MenuService{deps: deps}
}

func (s *MenuService) List(ctx context.Context, category string, includeUnavailable bool) ([]entity.MenuItem, error) {
	items, err := s.deps.Store.ListMenuItems(ctx, strings.TrimSpace(category), includeUnavailable)
	return items, storeErr(err, "")
}

func (s *MenuService) Get(ctx context.Context, id string) (*entity.MenuItem, error) {
	item, err := s.deps.Store.GetMenuItem(ctx, id)
	if err != nil {
		return nil, storeErr(err, "menu item not found")
	}
	return item, nil
}

type CreateMenuItemRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable *bool           `json:"is_available"`
}

func (s *MenuService) Create(ctx context.Context, req CreateMenuItemRequest) (*entity.MenuItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if !req.Price.IsPositive() {
		return nil, apperr.Validation("price must be greater than zero")
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "main"
	}
	item := &entity.MenuItem{
		ID:          newID(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Category:    category,
		Price:       req.Price.Round(2),
		IsAvailable: req.IsAvailable == nil || *req.IsAvailable,
		CreatedAt:   s.deps.now(),
	}
	if err := s.deps.Store.CreateMenuItem(ctx, item); err != nil {
		return nil, storeErr(err, "")
	}
	return item, nil
}
