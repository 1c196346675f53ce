// Package memory is an in-process repository.Store. Transactions are serialised:
// a transaction works on a copy of the data that replaces the original on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/repository"
)

type state struct {
	tables         map[string]*entity.Table
	sessions       map[string]*entity.Session
	menu           map[string]*entity.MenuItem
	orders         map[string]*entity.Order
	splitBills     map[string]*entity.SplitBill
	notifications  map[string]*entity.Notification
	waiterRequests map[string]*entity.WaiterRequest
	payments       map[string]*entity.PaymentNotification
	staff          map[string]*entity.Staff
	audit          []entity.AuditLog
}

func newState() *state {
	return &state{
		tables:         map[string]*entity.Table{},
		sessions:       map[string]*entity.Session{},
		menu:           map[string]*entity.MenuItem{},
		orders:         map[string]*entity.Order{},
		splitBills:     map[string]*entity.SplitBill{},
		notifications:  map[string]*entity.Notification{},
		waiterRequests: map[string]*entity.WaiterRequest{},
		payments:       map[string]*entity.PaymentNotification{},
		staff:          map[string]*entity.Staff{},
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.tables {
		c.tables[k] = v.Clone()
	}
	for k, v := range st.sessions {
		c.sessions[k] = v.Clone()
	}
	for k, v := range st.menu {
		m := *v
		c.menu[k] = &m
	}
	for k, v := range st.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range st.splitBills {
		c.splitBills[k] = v.Clone()
	}
	for k, v := range st.notifications {
		c.notifications[k] = v.Clone()
	}
	for k, v := range st.waiterRequests {
		r := *v
		c.waiterRequests[k] = &r
	}
	for k, v := range st.payments {
		p := *v
		c.payments[k] = &p
	}
	for k, v := range st.staff {
		s := *v
		c.staff[k] = &s
	}
	c.audit = append([]entity.AuditLog(nil), st.audit...)
	return c
}

var _ repository.Store = (*Store)(nil)

type Store struct {
	root *root
	// tx is set on transactional views; those run under the root lock already.
	tx *state
}

type root struct {
	mu        sync.Mutex
	data      *state
	commitErr error
}

func New() *Store {
	return &Store{root: &root{data: newState()}}
}

// FailCommits makes every following commit fail with err, leaving data untouched.
// Pass nil to restore normal behaviour.
func (s *Store) FailCommits(err error) {
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	s.root.commitErr = err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	s.root.mu.Lock()
	defer s.root.mu.Unlock()

	view := &Store{root: s.root, tx: s.root.data.clone()}
	if err := fn(view); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.root.commitErr != nil {
		return fmt.Errorf("%w: %v", repository.ErrTxCommit, s.root.commitErr)
	}
	s.root.data = view.tx
	return nil
}

// with runs fn against the visible data, taking the lock outside transactions.
func (s *Store) with(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	return fn(s.root.data)
}

func (s *Store) ListTables(_ context.Context) ([]entity.Table, error) {
	var out []entity.Table
	err := s.with(func(st *state) error {
		for _, t := range st.tables {
			out = append(out, *t.Clone())
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].TableNumber < out[j].TableNumber })
	return out, err
}

func (s *Store) GetTable(_ context.Context, id string) (*entity.Table, error) {
	var out *entity.Table
	err := s.with(func(st *state) error {
		t, ok := st.tables[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = t.Clone()
		return nil
	})
	return out, err
}

func (s *Store) GetTableByNumber(_ context.Context, number int) (*entity.Table, error) {
	var out *entity.Table
	err := s.with(func(st *state) error {
		for _, t := range st.tables {
			if t.TableNumber == number {
				out = t.Clone()
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (s *Store) GetTableForUpdate(ctx context.Context, id string) (*entity.Table, error) {
	return s.GetTable(ctx, id)
}

func (s *Store) CreateTable(_ context.Context, t *entity.Table) error {
	return s.with(func(st *state) error {
		for _, existing := range st.tables {
			if existing.ID == t.ID || existing.TableNumber == t.TableNumber {
				return repository.ErrDuplicate
			}
		}
		st.tables[t.ID] = t.Clone()
		return nil
	})
}

func (s *Store) UpdateTable(_ context.Context, t *entity.Table) error {
	return s.with(func(st *state) error {
		cur, ok := st.tables[t.ID]
		if !ok || cur.Version != t.Version {
			return repository.ErrStaleVersion
		}
		t.Version++
		st.tables[t.ID] = t.Clone()
		return nil
	})
}

func (s *Store) SetTablePINIfEmpty(_ context.Context, id, pin string, now time.Time) (bool, error) {
	var set bool
	err := s.with(func(st *state) error {
		t, ok := st.tables[id]
		if !ok || t.HasPIN() {
			return nil
		}
		t.CurrentPIN = &pin
		t.Version++
		t.UpdatedAt = now
		set = true
		return nil
	})
	return set, err
}

func (s *Store) ListTablesServedBy(_ context.Context, staffID string) ([]entity.Table, error) {
	var out []entity.Table
	err := s.with(func(st *state) error {
		for _, t := range st.tables {
			if t.CurrentSessionID == nil {
				continue
			}
			sess, ok := st.sessions[*t.CurrentSessionID]
			if ok && sess.IsActive() && sess.ServedBy != nil && *sess.ServedBy == staffID {
				out = append(out, *t.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].TableNumber < out[j].TableNumber })
	return out, err
}

func (s *Store) CreateSession(_ context.Context, sess *entity.Session) error {
	return s.with(func(st *state) error {
		if _, ok := st.sessions[sess.ID]; ok {
			return repository.ErrDuplicate
		}
		st.sessions[sess.ID] = sess.Clone()
		return nil
	})
}

func (s *Store) GetSession(_ context.Context, id string) (*entity.Session, error) {
	var out *entity.Session
	err := s.with(func(st *state) error {
		sess, ok := st.sessions[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = sess.Clone()
		return nil
	})
	return out, err
}

func (s *Store) GetSessionForUpdate(ctx context.Context, id string) (*entity.Session, error) {
	return s.GetSession(ctx, id)
}

func (s *Store) GetActiveSessionByTable(_ context.Context, tableID string) (*entity.Session, error) {
	var out *entity.Session
	err := s.with(func(st *state) error {
		for _, sess := range st.sessions {
			if sess.TableID == tableID && sess.IsActive() {
				if out == nil || sess.StartedAt.After(out.StartedAt) {
					out = sess.Clone()
				}
			}
		}
		if out == nil {
			return repository.ErrNotFound
		}
		return nil
	})
	return out, err
}

func (s *Store) UpdateSession(_ context.Context, sess *entity.Session) error {
	return s.with(func(st *state) error {
		cur, ok := st.sessions[sess.ID]
		if !ok || cur.Version != sess.Version {
			return repository.ErrStaleVersion
		}
		sess.Version++
		st.sessions[sess.ID] = sess.Clone()
		return nil
	})
}

func (s *Store) ListIdleSessions(_ context.Context, before time.Time) ([]entity.Session, error) {
	var out []entity.Session
	err := s.with(func(st *state) error {
		for _, sess := range st.sessions {
			if sess.IsActive() && sess.UpdatedAt.Before(before) {
				out = append(out, *sess.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, err
}

func (s *Store) CreateAuditLog(_ context.Context, l *entity.AuditLog) error {
	return s.with(func(st *state) error {
		st.audit = append(st.audit, *l)
		return nil
	})
}

// AuditLogs returns every audit entry written so far.
func (s *Store) AuditLogs() []entity.AuditLog {
	var out []entity.AuditLog
	_ = s.with(func(st *state) error {
		out = append(out, st.audit...)
		return nil
	})
	return out
}
