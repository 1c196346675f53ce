package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"table-ordering-service/internal/apperr"
	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/metrics"
	"table-ordering-service/internal/repository"
)

const (
	ActionJoin  = "join"
	ActionStart = "start"
)

// TableService covers table provisioning, PINs and moving sessions between tables.
type TableService struct {
	deps    Deps
	effects sideEffects
	baseURL string
	// newPIN is swapped in tests.
	newPIN func() (string, error)
}

func NewTableService(deps Deps, baseURL string) *TableService {
	return &TableService{
		deps:    deps,
		effects: newSideEffects(deps),
		baseURL: strings.TrimRight(baseURL, "/"),
		newPIN:  randomPIN,
	}
}

// randomPIN draws uniformly from [1000, 9999].
func randomPIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+1000, 10), nil
}

// resolveTable looks a table up by id and falls back to its table number.
func resolveTable(ctx context.Context, store repository.TableStore, ref string) (*entity.Table, error) {
	tbl, err := store.GetTable(ctx, ref)
	if err == nil {
		return tbl, nil
	}
	if !isNotFound(err) {
		return nil, storeErr(err, "")
	}
	number, convErr := strconv.Atoi(strings.TrimSpace(ref))
	if convErr != nil {
		return nil, apperr.NotFound("table %s not found", ref)
	}
	tbl, err = store.GetTableByNumber(ctx, number)
	if err != nil {
		return nil, storeErr(err, fmt.Sprintf("table %s not found", ref))
	}
	return tbl, nil
}

func pinMatches(tbl *entity.Table, pin string) bool {
	if !tbl.HasPIN() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*tbl.CurrentPIN), []byte(pin)) == 1
}

func (s *TableService) ListTables(ctx context.Context) ([]entity.Table, error) {
	tables, err := s.deps.Store.ListTables(ctx)
	return tables, storeErr(err, "")
}

func (s *TableService) GetTable(ctx context.Context, ref string) (*entity.Table, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, apperr.Validation("table id is required")
	}
	return resolveTable(ctx, s.deps.Store, ref)
}

// TableLink is the URL encoded in the table's QR code.
func (s *TableService) TableLink(tbl *entity.Table) string {
	return fmt.Sprintf("%s/table/%s", s.baseURL, tbl.ID)
}

func (s *TableService) CreateTable(ctx context.Context, number, capacity int) (*entity.Table, error) {
	if number <= 0 {
		return nil, apperr.Validation("table_number must be positive")
	}
	if capacity <= 0 {
		capacity = 4
	}
	now := s.deps.now()
	tbl := &entity.Table{
		ID:          newID(),
		TableNumber: number,
		Capacity:    capacity,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.deps.Store.CreateTable(ctx, tbl); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("table %d already exists", number)
		}
		return nil, storeErr(err, "")
	}
	return tbl, nil
}

// AssignPIN returns the table's PIN, issuing one if it has none. Concurrent callers
// all end up with the same PIN.
func (s *TableService) AssignPIN(ctx context.Context, ref string) (string, error) {
	tbl, err := s.GetTable(ctx, ref)
	if err != nil {
		return "", err
	}
	if tbl.HasPIN() {
		return *tbl.CurrentPIN, nil
	}

	pin, err := s.newPIN()
	if err != nil {
		return "", apperr.Internal(err, "could not generate PIN")
	}
	set, err := s.deps.Store.SetTablePINIfEmpty(ctx, tbl.ID, pin, s.deps.now())
	if err != nil {
		return "", storeErr(err, "table not found")
	}
	if set {
		logger.Info().Str("table_id", tbl.ID).Int("table_number", tbl.TableNumber).Msg("PIN assigned")
		return pin, nil
	}

	// another request won the conditional write
	tbl, err = s.deps.Store.GetTable(ctx, tbl.ID)
	if err != nil {
		return "", storeErr(err, "table not found")
	}
	if !tbl.HasPIN() {
		return "", apperr.Conflict("PIN was cleared while being assigned, please retry")
	}
	return *tbl.CurrentPIN, nil
}

type PINVerification struct {
	Table   *entity.Table   `json:"table"`
	Session *entity.Session `json:"session,omitempty"`
	Action  string          `json:"action"`
}

// VerifyPIN checks a guest's PIN and reports whether they should join the running
// session or start a new one. It never writes.
func (s *TableService) VerifyPIN(ctx context.Context, ref, pin string) (*PINVerification, error) {
	return verifyPIN(ctx, s.deps.Store, ref, pin)
}

func verifyPIN(ctx context.Context, store repository.Store, ref, pin string) (*PINVerification, error) {
	if strings.TrimSpace(ref) == "" || pin == "" {
		return nil, apperr.Validation("tableId and pin are required")
	}
	tbl, err := resolveTable(ctx, store, ref)
	if err != nil {
		return nil, err
	}
	if !pinMatches(tbl, pin) {
		logger.Warn().Str("table_id", tbl.ID).Msg("PIN mismatch")
		return nil, apperr.Auth("invalid PIN")
	}

	result := &PINVerification{Table: tbl, Action: ActionStart}
	sess, err := store.GetActiveSessionByTable(ctx, tbl.ID)
	switch {
	case err == nil:
		result.Session = sess
		result.Action = ActionJoin
	case isNotFound(err):
	default:
		return nil, storeErr(err, "")
	}
	return result, nil
}

type TransferRequest struct {
	SourceTableID      string `json:"sourceTableId"`
	DestinationTableID string `json:"destinationTableId"`
	SessionID          string `json:"sessionId"`
	Actor              string `json:"-"`
}

type TransferResult struct {
	SourceTable      *entity.Table   `json:"sourceTable"`
	DestinationTable *entity.Table   `json:"destinationTable"`
	Session          *entity.Session `json:"session"`
	Warnings         []string        `json:"warnings,omitempty"`
}

// Transfer moves an active session to a free table. The session, source and
// destination rows change together in one transaction or not at all.
func (s *TableService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.SourceTableID == "" || req.DestinationTableID == "" || req.SessionID == "" {
		return nil, apperr.Validation("sourceTableId, destinationTableId and sessionId are required")
	}
	if req.SourceTableID == req.DestinationTableID {
		return nil, apperr.Validation("source and destination tables must differ")
	}

	now := s.deps.now()
	result := &TransferResult{}
	err := s.deps.Store.WithTx(ctx, func(tx repository.Store) error {
		locked, err := lockTables(ctx, tx, req.SourceTableID, req.DestinationTableID)
		if err != nil {
			return err
		}

		src := locked[req.SourceTableID]
		if src == nil {
			return apperr.NotFound("source table not found")
		}
		if !src.Occupied {
			return apperr.Conflict("source table %d is not occupied", src.TableNumber)
		}
		dst := locked[req.DestinationTableID]
		if dst == nil {
			return apperr.NotFound("destination table not found")
		}
		if dst.Occupied {
			return apperr.Conflict("destination table %d is already occupied", dst.TableNumber)
		}
		sess, err := tx.GetSessionForUpdate(ctx, req.SessionID)
		if err != nil {
			return storeErr(err, "session not found")
		}
		if !sess.IsActive() {
			return apperr.Conflict("session is %s", sess.Status)
		}
		if sess.TableID != src.ID {
			return apperr.Conflict("session is not seated at table %d", src.TableNumber)
		}

		pin := src.CurrentPIN
		sess.TableID = dst.ID
		sess.UpdatedAt = now
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return err
		}
		src.Vacate()
		src.UpdatedAt = now
		if err := tx.UpdateTable(ctx, src); err != nil {
			return err
		}
		dst.Occupy(sess.ID, pin)
		dst.UpdatedAt = now
		if err := tx.UpdateTable(ctx, dst); err != nil {
			return err
		}

		result.SourceTable, result.DestinationTable, result.Session = src, dst, sess
		return nil
	})
	if err != nil {
		err = storeErr(err, "")
		outcome := "rejected"
		if k := apperr.KindOf(err); k == apperr.KindInternal || k == apperr.KindDatabase {
			outcome = "failed"
			logger.Error().Err(err).
				Str("session_id", req.SessionID).
				Str("source_table_id", req.SourceTableID).
				Str("destination_table_id", req.DestinationTableID).
				Msg("table transfer failed")
		}
		metrics.TableTransfers.WithLabelValues(outcome).Inc()
		return nil, err
	}
	metrics.TableTransfers.WithLabelValues("ok").Inc()

	src, dst, sess := result.SourceTable, result.DestinationTable, result.Session
	details := entity.Metadata{
		"from_table_id":     src.ID,
		"to_table_id":       dst.ID,
		"from_table_number": src.TableNumber,
		"to_table_number":   dst.TableNumber,
	}
	var w warnings
	s.effects.audit(ctx, &entity.AuditLog{
		Action:     "table_transfer",
		EntityType: "session",
		EntityID:   sess.ID,
		Actor:      req.Actor,
		Details:    details,
		CreatedAt:  now,
	}, &w)
	s.effects.notify(ctx, &entity.Notification{
		SessionID: strPtr(sess.ID),
		TableID:   strPtr(dst.ID),
		Type:      entity.NotificationTableTransfer,
		Message:   fmt.Sprintf("Guests moved from table %d to table %d", src.TableNumber, dst.TableNumber),
		Metadata:  details,
		CreatedAt: now,
		UpdatedAt: now,
	}, &w)
	s.effects.publish(ctx, entity.Event{
		Type:       entity.EventTableTransferred,
		SessionID:  sess.ID,
		TableID:    dst.ID,
		Payload:    details,
		OccurredAt: now,
	}, &w)
	result.Warnings = w

	logger.Info().Str("session_id", sess.ID).Int("from", src.TableNumber).Int("to", dst.TableNumber).Msg("table transferred")
	return result, nil
}

// lockTables locks the given tables in id order so that opposing transfers cannot
// deadlock. Missing tables are absent from the result.
func lockTables(ctx context.Context, tx repository.Store, ids ...string) (map[string]*entity.Table, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	locked := make(map[string]*entity.Table, len(sorted))
	for _, id := range sorted {
		tbl, err := tx.GetTableForUpdate(ctx, id)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		locked[id] = tbl
	}
	return locked, nil
}

// StaffTables lists tables whose running session is served by staffID.
func (s *TableService) StaffTables(ctx context.Context, staffID string) ([]entity.Table, error) {
	tables, err := s.deps.Store.ListTablesServedBy(ctx, staffID)
	return tables, storeErr(err, "")
}
