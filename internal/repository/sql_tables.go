package repository

import (
	"context"
	"time"

	"table-ordering-service/internal/entity"
)

const tableColumns = `id, table_number, capacity, occupied, current_session_id, current_pin, is_active, version, created_at, updated_at`

func (s *SQLStore) ListTables(ctx context.Context) ([]entity.Table, error) {
	tables := []entity.Table{}
	err := s.selectIn(ctx, &tables, "list tables", `SELECT `+tableColumns+` FROM tables ORDER BY table_number`)
	return tables, err
}

func (s *SQLStore) GetTable(ctx context.Context, id string) (*entity.Table, error) {
	t := &entity.Table{}
	if err := s.get(ctx, t, "get table", `SELECT `+tableColumns+` FROM tables WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLStore) GetTableByNumber(ctx context.Context, number int) (*entity.Table, error) {
	t := &entity.Table{}
	if err := s.get(ctx, t, "get table by number", `SELECT `+tableColumns+` FROM tables WHERE table_number = ?`, number); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLStore) GetTableForUpdate(ctx context.Context, id string) (*entity.Table, error) {
	t := &entity.Table{}
	if err := s.get(ctx, t, "lock table", `SELECT `+tableColumns+` FROM tables WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLStore) CreateTable(ctx context.Context, t *entity.Table) error {
	_, err := s.exec(ctx, "create table",
		`INSERT INTO tables (`+tableColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TableNumber, t.Capacity, t.Occupied, t.CurrentSessionID, t.CurrentPIN, t.IsActive, t.Version, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *SQLStore) UpdateTable(ctx context.Context, t *entity.Table) error {
	n, err := s.exec(ctx, "update table",
		`UPDATE tables SET capacity = ?, occupied = ?, current_session_id = ?, current_pin = ?, is_active = ?,
			version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		t.Capacity, t.Occupied, t.CurrentSessionID, t.CurrentPIN, t.IsActive, t.UpdatedAt, t.ID, t.Version)
	if err := mustAffect(n, err, ErrStaleVersion); err != nil {
		return err
	}
	t.Version++
	return nil
}

func (s *SQLStore) SetTablePINIfEmpty(ctx context.Context, id, pin string, now time.Time) (bool, error) {
	n, err := s.exec(ctx, "set table pin",
		`UPDATE tables SET current_pin = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND (current_pin IS NULL OR current_pin = '')`,
		pin, now, id)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLStore) ListTablesServedBy(ctx context.Context, staffID string) ([]entity.Table, error) {
	tables := []entity.Table{}
	err := s.selectIn(ctx, &tables, "list staff tables",
		`SELECT t.id, t.table_number, t.capacity, t.occupied, t.current_session_id, t.current_pin,
			t.is_active, t.version, t.created_at, t.updated_at
		 FROM tables t JOIN sessions s ON s.id = t.current_session_id
		 WHERE s.served_by = ? AND s.status = ?
		 ORDER BY t.table_number`,
		staffID, string(entity.SessionActive))
	return tables, err
}
