package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/repository"
)

func (s *Store) CreateNotification(_ context.Context, n *entity.Notification) error {
	return s.with(func(st *state) error {
		if _, ok := st.notifications[n.ID]; ok {
			return repository.ErrDuplicate
		}
		st.notifications[n.ID] = n.Clone()
		return nil
	})
}

func (s *Store) GetNotification(_ context.Context, id string) (*entity.Notification, error) {
	var out *entity.Notification
	err := s.with(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = n.Clone()
		return nil
	})
	return out, err
}

func (s *Store) TransitionNotification(_ context.Context, id string, from, to entity.NotificationStatus, staffID string, now time.Time) error {
	return s.with(func(st *state) error {
		n, ok := st.notifications[id]
		if !ok || n.Status != from {
			return repository.ErrStaleVersion
		}
		n.Status = to
		if n.AcknowledgedBy == nil && staffID != "" {
			by := staffID
			n.AcknowledgedBy = &by
		}
		n.UpdatedAt = now
		return nil
	})
}

// servedByOrUnassigned mirrors the staff visibility rule of the SQL store.
func servedByOrUnassigned(st *state, sessionID *string, staffID string) bool {
	if sessionID == nil {
		return true
	}
	sess, ok := st.sessions[*sessionID]
	if !ok || sess.ServedBy == nil {
		return true
	}
	return *sess.ServedBy == staffID
}

func notificationStatusIn(st entity.NotificationStatus, statuses []entity.NotificationStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s *Store) ListStaffNotifications(_ context.Context, staffID string, statuses []entity.NotificationStatus) ([]entity.Notification, error) {
	var out []entity.Notification
	err := s.with(func(st *state) error {
		for _, n := range st.notifications {
			if notificationStatusIn(n.Status, statuses) && servedByOrUnassigned(st, n.SessionID, staffID) {
				out = append(out, *n.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (s *Store) CreateWaiterRequest(_ context.Context, r *entity.WaiterRequest) error {
	return s.with(func(st *state) error {
		c := *r
		st.waiterRequests[r.ID] = &c
		return nil
	})
}

func (s *Store) CreatePaymentNotification(_ context.Context, p *entity.PaymentNotification) error {
	return s.with(func(st *state) error {
		c := *p
		st.payments[p.ID] = &c
		return nil
	})
}

func (s *Store) ListPaymentNotifications(_ context.Context, staffID string, statuses []entity.NotificationStatus) ([]entity.PaymentNotification, error) {
	var out []entity.PaymentNotification
	err := s.with(func(st *state) error {
		for _, p := range st.payments {
			sessionID := p.SessionID
			if _, ok := st.sessions[sessionID]; !ok {
				continue
			}
			if notificationStatusIn(p.Status, statuses) && servedByOrUnassigned(st, &sessionID, staffID) {
				out = append(out, *p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (s *Store) ResolvePaymentNotifications(_ context.Context, sessionID string, now time.Time) (int64, error) {
	var n int64
	err := s.with(func(st *state) error {
		for _, p := range st.payments {
			if p.SessionID == sessionID && p.Status != entity.NotificationResolved {
				p.Status = entity.NotificationResolved
				p.UpdatedAt = now
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) CreateStaff(_ context.Context, member *entity.Staff) error {
	return s.with(func(st *state) error {
		for _, existing := range st.staff {
			if existing.ID == member.ID || strings.EqualFold(existing.Email, member.Email) {
				return repository.ErrDuplicate
			}
		}
		c := *member
		st.staff[member.ID] = &c
		return nil
	})
}

func (s *Store) GetStaff(_ context.Context, id string) (*entity.Staff, error) {
	var out *entity.Staff
	err := s.with(func(st *state) error {
		m, ok := st.staff[id]
		if !ok {
			return repository.ErrNotFound
		}
		c := *m
		out = &c
		return nil
	})
	return out, err
}

func (s *Store) GetStaffByEmail(_ context.Context, email string) (*entity.Staff, error) {
	var out *entity.Staff
	err := s.with(func(st *state) error {
		for _, m := range st.staff {
			if strings.EqualFold(m.Email, email) {
				c := *m
				out = &c
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (s *Store) ListStaff(_ context.Context) ([]entity.Staff, error) {
	var out []entity.Staff
	err := s.with(func(st *state) error {
		for _, m := range st.staff {
			out = append(out, *m)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}
