package repository

import (
	"context"
	"time"

	"table-ordering-service/internal/entity"
)

const (
	orderColumns     = `id, session_id, menu_item_id, quantity, notes, status, split_bill_id, created_by_name, created_at, updated_at, placed_at`
	menuColumns      = `id, name, description, category, price, is_available, created_at`
	splitBillColumns = `id, session_id, menu_item_id, original_price, split_price, split_count, participants, status, created_at, resolved_at`
)

func (s *SQLStore) ListMenuItems(ctx context.Context, category string, includeUnavailable bool) ([]entity.MenuItem, error) {
	query := `SELECT ` + menuColumns + ` FROM menu_items WHERE 1 = 1`
	var args []any
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if !includeUnavailable {
		query += ` AND is_available = ?`
		args = append(args, true)
	}
	query += ` ORDER BY category, name`

	items := []entity.MenuItem{}
	err := s.selectIn(ctx, &items, "list menu", query, args...)
	return items, err
}

func (s *SQLStore) GetMenuItem(ctx context.Context, id string) (*entity.MenuItem, error) {
	m := &entity.MenuItem{}
	if err := s.get(ctx, m, "get menu item", `SELECT `+menuColumns+` FROM menu_items WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLStore) CreateMenuItem(ctx context.Context, m *entity.MenuItem) error {
	_, err := s.exec(ctx, "create menu item",
		`INSERT INTO menu_items (`+menuColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Description, m.Category, m.Price, m.IsAvailable, m.CreatedAt)
	return err
}

func (s *SQLStore) CreateOrder(ctx context.Context, o *entity.Order) error {
	_, err := s.exec(ctx, "create order",
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.SessionID, o.MenuItemID, o.Quantity, o.Notes, string(o.Status), o.SplitBillID,
		o.CreatedByName, o.CreatedAt, o.UpdatedAt, o.PlacedAt)
	return err
}

func (s *SQLStore) GetOrder(ctx context.Context, id string) (*entity.Order, error) {
	o := &entity.Order{}
	if err := s.get(ctx, o, "get order", `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *SQLStore) UpdateOrder(ctx context.Context, o *entity.Order) error {
	n, err := s.exec(ctx, "update order",
		`UPDATE orders SET quantity = ?, notes = ?, status = ?, split_bill_id = ?, updated_at = ?, placed_at = ?
		 WHERE id = ?`,
		o.Quantity, o.Notes, string(o.Status), o.SplitBillID, o.UpdatedAt, o.PlacedAt, o.ID)
	return mustAffect(n, err, ErrNotFound)
}

func (s *SQLStore) DeleteOrder(ctx context.Context, id string) error {
	n, err := s.exec(ctx, "delete order", `DELETE FROM orders WHERE id = ?`, id)
	return mustAffect(n, err, ErrNotFound)
}

func (s *SQLStore) ListOrderLines(ctx context.Context, sessionID string, statuses ...entity.OrderStatus) ([]entity.OrderLine, error) {
	query := `SELECT o.id, o.session_id, o.menu_item_id, o.quantity, o.notes, o.status, o.split_bill_id,
			o.created_by_name, o.created_at, o.updated_at, o.placed_at,
			m.name AS menu_item_name, m.price AS price
		 FROM orders o JOIN menu_items m ON m.id = o.menu_item_id
		 WHERE o.session_id = ?`
	args := []any{sessionID}
	if len(statuses) > 0 {
		query += ` AND o.status IN (?)`
		args = append(args, orderStatusStrings(statuses))
	}
	query += ` ORDER BY o.created_at, o.id`

	lines := []entity.OrderLine{}
	err := s.selectIn(ctx, &lines, "list order lines", query, args...)
	return lines, err
}

func (s *SQLStore) DeleteCartOrdersBefore(ctx context.Context, sessionID string, before time.Time) (int64, error) {
	query := `DELETE FROM orders WHERE status = ? AND created_at < ?`
	args := []any{string(entity.OrderCart), before}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	return s.exec(ctx, "delete stale cart orders", query, args...)
}

func (s *SQLStore) PromoteCartOrders(ctx context.Context, sessionID string, placedAt time.Time) (int64, error) {
	return s.exec(ctx, "place cart orders",
		`UPDATE orders SET status = ?, placed_at = ?, updated_at = ? WHERE session_id = ? AND status = ?`,
		string(entity.OrderPlaced), placedAt, placedAt, sessionID, string(entity.OrderCart))
}

func (s *SQLStore) ClearSplitBill(ctx context.Context, splitBillID string, now time.Time) error {
	_, err := s.exec(ctx, "unlink split bill",
		`UPDATE orders SET split_bill_id = NULL, updated_at = ? WHERE split_bill_id = ?`, now, splitBillID)
	return err
}

func (s *SQLStore) CreateSplitBill(ctx context.Context, b *entity.SplitBill) error {
	_, err := s.exec(ctx, "create split bill",
		`INSERT INTO split_bills (`+splitBillColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SessionID, b.MenuItemID, b.OriginalPrice, b.SplitPrice, b.SplitCount, b.Participants,
		string(b.Status), b.CreatedAt, b.ResolvedAt)
	return err
}

func (s *SQLStore) GetSplitBill(ctx context.Context, id string) (*entity.SplitBill, error) {
	b := &entity.SplitBill{}
	if err := s.get(ctx, b, "get split bill", `SELECT `+splitBillColumns+` FROM split_bills WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SQLStore) UpdateSplitBill(ctx context.Context, b *entity.SplitBill) error {
	n, err := s.exec(ctx, "update split bill",
		`UPDATE split_bills SET participants = ?, status = ?, resolved_at = ? WHERE id = ?`,
		b.Participants, string(b.Status), b.ResolvedAt, b.ID)
	return mustAffect(n, err, ErrNotFound)
}

func (s *SQLStore) ListSplitBills(ctx context.Context, sessionID string, status entity.SplitBillStatus) ([]entity.SplitBill, error) {
	bills := []entity.SplitBill{}
	err := s.selectIn(ctx, &bills, "list split bills",
		`SELECT `+splitBillColumns+` FROM split_bills WHERE session_id = ? AND status = ? ORDER BY created_at`,
		sessionID, string(status))
	return bills, err
}
