package memory

import (
	"context"
	"sort"
	"time"

	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/repository"
)

func (s *Store) ListMenuItems(_ context.Context, category string, includeUnavailable bool) ([]entity.MenuItem, error) {
	var out []entity.MenuItem
	err := s.with(func(st *state) error {
		for _, m := range st.menu {
			if category != "" && m.Category != category {
				continue
			}
			if !includeUnavailable && !m.IsAvailable {
				continue
			}
			out = append(out, *m)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

func (s *Store) GetMenuItem(_ context.Context, id string) (*entity.MenuItem, error) {
	var out *entity.MenuItem
	err := s.with(func(st *state) error {
		m, ok := st.menu[id]
		if !ok {
			return repository.ErrNotFound
		}
		c := *m
		out = &c
		return nil
	})
	return out, err
}

func (s *Store) CreateMenuItem(_ context.Context, m *entity.MenuItem) error {
	return s.with(func(st *state) error {
		if _, ok := st.menu[m.ID]; ok {
			return repository.ErrDuplicate
		}
		c := *m
		st.menu[m.ID] = &c
		return nil
	})
}

func (s *Store) CreateOrder(_ context.Context, o *entity.Order) error {
	return s.with(func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return repository.ErrDuplicate
		}
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

func (s *Store) GetOrder(_ context.Context, id string) (*entity.Order, error) {
	var out *entity.Order
	err := s.with(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

func (s *Store) UpdateOrder(_ context.Context, o *entity.Order) error {
	return s.with(func(st *state) error {
		if _, ok := st.orders[o.ID]; !ok {
			return repository.ErrNotFound
		}
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	return s.with(func(st *state) error {
		if _, ok := st.orders[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.orders, id)
		return nil
	})
}

func (s *Store) ListOrderLines(_ context.Context, sessionID string, statuses ...entity.OrderStatus) ([]entity.OrderLine, error) {
	var out []entity.OrderLine
	err := s.with(func(st *state) error {
		for _, o := range st.orders {
			if o.SessionID != sessionID || !statusIn(o.Status, statuses) {
				continue
			}
			m, ok := st.menu[o.MenuItemID]
			if !ok {
				continue
			}
			out = append(out, entity.OrderLine{Order: *o.Clone(), MenuItemName: m.Name, Price: m.Price})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func statusIn(st entity.OrderStatus, statuses []entity.OrderStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s *Store) DeleteCartOrdersBefore(_ context.Context, sessionID string, before time.Time) (int64, error) {
	var n int64
	err := s.with(func(st *state) error {
		for id, o := range st.orders {
			if o.Status != entity.OrderCart || !o.CreatedAt.Before(before) {
				continue
			}
			if sessionID != "" && o.SessionID != sessionID {
				continue
			}
			delete(st.orders, id)
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) PromoteCartOrders(_ context.Context, sessionID string, placedAt time.Time) (int64, error) {
	var n int64
	err := s.with(func(st *state) error {
		for _, o := range st.orders {
			if o.SessionID == sessionID && o.Status == entity.OrderCart {
				at := placedAt
				o.Status = entity.OrderPlaced
				o.PlacedAt = &at
				o.UpdatedAt = placedAt
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) ClearSplitBill(_ context.Context, splitBillID string, now time.Time) error {
	return s.with(func(st *state) error {
		for _, o := range st.orders {
			if o.SplitBillID != nil && *o.SplitBillID == splitBillID {
				o.SplitBillID = nil
				o.UpdatedAt = now
			}
		}
		return nil
	})
}

func (s *Store) CreateSplitBill(_ context.Context, b *entity.SplitBill) error {
	return s.with(func(st *state) error {
		if _, ok := st.splitBills[b.ID]; ok {
			return repository.ErrDuplicate
		}
		st.splitBills[b.ID] = b.Clone()
		return nil
	})
}

func (s *Store) GetSplitBill(_ context.Context, id string) (*entity.SplitBill, error) {
	var out *entity.SplitBill
	err := s.with(func(st *state) error {
		b, ok := st.splitBills[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = b.Clone()
		return nil
	})
	return out, err
}

func (s *Store) UpdateSplitBill(_ context.Context, b *entity.SplitBill) error {
	return s.with(func(st *state) error {
		if _, ok := st.splitBills[b.ID]; !ok {
			return repository.ErrNotFound
		}
		st.splitBills[b.ID] = b.Clone()
		return nil
	})
}

func (s *Store) ListSplitBills(_ context.Context, sessionID string, status entity.SplitBillStatus) ([]entity.SplitBill, error) {
	var out []entity.SplitBill
	err := s.with(func(st *state) error {
		for _, b := range st.splitBills {
			if b.SessionID == sessionID && b.Status == status {
				out = append(out, *b.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// DeleteSplitBill removes a split bill row outright. Used to model rows that
// disappeared underneath their orders.
func (s *Store) DeleteSplitBill(id string) {
	_ = s.with(func(st *state) error {
		delete(st.splitBills, id)
		return nil
	})
}
