package repository

import (
	"context"
	"time"

	"table-ordering-service/internal/entity"
)

const sessionColumns = `id, table_id, status, started_by_name, served_by, final_total, payment_status, payment_method, version, started_at, updated_at, ended_at`

func (s *SQLStore) CreateSession(ctx context.Context, sess *entity.Session) error {
	_, err := s.exec(ctx, "create session",
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.TableID, string(sess.Status), sess.StartedByName, sess.ServedBy, sess.FinalTotal,
		string(sess.PaymentStatus), sess.PaymentMethod, sess.Version, sess.StartedAt, sess.UpdatedAt, sess.EndedAt)
	return err
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (*entity.Session, error) {
	sess := &entity.Session{}
	if err := s.get(ctx, sess, "get session", `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLStore) GetSessionForUpdate(ctx context.Context, id string) (*entity.Session, error) {
	sess := &entity.Session{}
	if err := s.get(ctx, sess, "lock session", `SELECT `+sessionColumns+` FROM sessions WHERE id = ? FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLStore) GetActiveSessionByTable(ctx context.Context, tableID string) (*entity.Session, error) {
	sess := &entity.Session{}
	err := s.get(ctx, sess, "get active session",
		`SELECT `+sessionColumns+` FROM sessions WHERE table_id = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		tableID, string(entity.SessionActive))
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLStore) UpdateSession(ctx context.Context, sess *entity.Session) error {
	n, err := s.exec(ctx, "update session",
		`UPDATE sessions SET table_id = ?, status = ?, served_by = ?, final_total = ?, payment_status = ?,
			payment_method = ?, updated_at = ?, ended_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		sess.TableID, string(sess.Status), sess.ServedBy, sess.FinalTotal, string(sess.PaymentStatus),
		sess.PaymentMethod, sess.UpdatedAt, sess.EndedAt, sess.ID, sess.Version)
	if err := mustAffect(n, err, ErrStaleVersion); err != nil {
		return err
	}
	sess.Version++
	return nil
}

func (s *SQLStore) ListIdleSessions(ctx context.Context, before time.Time) ([]entity.Session, error) {
	sessions := []entity.Session{}
	err := s.selectIn(ctx, &sessions, "list idle sessions",
		`SELECT `+sessionColumns+` FROM sessions WHERE status = ? AND updated_at < ? ORDER BY updated_at`,
		string(entity.SessionActive), before)
	return sessions, err
}
