package repository

import (
	"context"
	"time"

	"table-ordering-service/internal/entity"
)

const (
	notificationColumns        = `id, session_id, table_id, type, status, message, metadata, acknowledged_by, created_at, updated_at`
	paymentNotificationColumns = `id, session_id, table_id, amount, method, status, created_at, updated_at`
)

func (s *SQLStore) CreateNotification(ctx context.Context, n *entity.Notification) error {
	_, err := s.exec(ctx, "create notification",
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.SessionID, n.TableID, string(n.Type), string(n.Status), n.Message, n.Metadata,
		n.AcknowledgedBy, n.CreatedAt, n.UpdatedAt)
	return err
}

func (s *SQLStore) GetNotification(ctx context.Context, id string) (*entity.Notification, error) {
	n := &entity.Notification{}
	if err := s.get(ctx, n, "get notification", `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *SQLStore) TransitionNotification(ctx context.Context, id string, from, to entity.NotificationStatus, staffID string, now time.Time) error {
	n, err := s.exec(ctx, "transition notification",
		`UPDATE notifications SET status = ?, acknowledged_by = COALESCE(acknowledged_by, ?), updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), nullString(staffID), now, id, string(from))
	return mustAffect(n, err, ErrStaleVersion)
}

func (s *SQLStore) ListStaffNotifications(ctx context.Context, staffID string, statuses []entity.NotificationStatus) ([]entity.Notification, error) {
	notifications := []entity.Notification{}
	err := s.selectIn(ctx, &notifications, "list staff notifications",
		`SELECT n.id, n.session_id, n.table_id, n.type, n.status, n.message, n.metadata, n.acknowledged_by,
			n.created_at, n.updated_at
		 FROM notifications n LEFT JOIN sessions s ON s.id = n.session_id
		 WHERE n.status IN (?) AND (s.served_by IS NULL OR s.served_by = ?)
		 ORDER BY n.created_at DESC`,
		notificationStatusStrings(statuses), staffID)
	return notifications, err
}

func (s *SQLStore) CreateWaiterRequest(ctx context.Context, r *entity.WaiterRequest) error {
	_, err := s.exec(ctx, "create waiter request",
		`INSERT INTO waiter_requests (id, session_id, table_id, request_type, message, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.TableID, r.RequestType, r.Message, string(r.Status), r.CreatedAt)
	return err
}

func (s *SQLStore) CreatePaymentNotification(ctx context.Context, p *entity.PaymentNotification) error {
	_, err := s.exec(ctx, "create payment notification",
		`INSERT INTO payment_notifications (`+paymentNotificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.TableID, p.Amount, p.Method, string(p.Status), p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *SQLStore) ListPaymentNotifications(ctx context.Context, staffID string, statuses []entity.NotificationStatus) ([]entity.PaymentNotification, error) {
	payments := []entity.PaymentNotification{}
	err := s.selectIn(ctx, &payments, "list payment notifications",
		`SELECT p.id, p.session_id, p.table_id, p.amount, p.method, p.status, p.created_at, p.updated_at
		 FROM payment_notifications p JOIN sessions s ON s.id = p.session_id
		 WHERE p.status IN (?) AND (s.served_by IS NULL OR s.served_by = ?)
		 ORDER BY p.created_at`,
		notificationStatusStrings(statuses), staffID)
	return payments, err
}

func (s *SQLStore) ResolvePaymentNotifications(ctx context.Context, sessionID string, now time.Time) (int64, error) {
	return s.exec(ctx, "resolve payment notifications",
		`UPDATE payment_notifications SET status = ?, updated_at = ? WHERE session_id = ? AND status <> ?`,
		string(entity.NotificationResolved), now, sessionID, string(entity.NotificationResolved))
}

func (s *SQLStore) CreateStaff(ctx context.Context, st *entity.Staff) error {
	_, err := s.exec(ctx, "create staff",
		`INSERT INTO staff (id, email, name, role, password_hash, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Email, st.Name, string(st.Role), st.PasswordHash, st.IsActive, st.CreatedAt)
	return err
}

const staffColumns = `id, email, name, role, password_hash, is_active, created_at`

func (s *SQLStore) GetStaff(ctx context.Context, id string) (*entity.Staff, error) {
	st := &entity.Staff{}
	if err := s.get(ctx, st, "get staff", `SELECT `+staffColumns+` FROM staff WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLStore) GetStaffByEmail(ctx context.Context, email string) (*entity.Staff, error) {
	st := &entity.Staff{}
	if err := s.get(ctx, st, "get staff by email", `SELECT `+staffColumns+` FROM staff WHERE email = ?`, email); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLStore) ListStaff(ctx context.Context) ([]entity.Staff, error) {
	staff := []entity.Staff{}
	err := s.selectIn(ctx, &staff, "list staff", `SELECT `+staffColumns+` FROM staff ORDER BY name`)
	return staff, err
}

func (s *SQLStore) CreateAuditLog(ctx context.Context, l *entity.AuditLog) error {
	_, err := s.exec(ctx, "create audit log",
		`INSERT INTO audit_logs (id, action, entity_type, entity_id, actor, details, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Action, l.EntityType, l.EntityID, l.Actor, l.Details, l.CreatedAt)
	return err
}
