package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"table-ordering-service/internal/apperr"
	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/repository"
)

const minPasswordLen = 8

var compareHash = bcrypt.CompareHashAndPassword

// Unknown emails are checked against this hash so they cost as much as a wrong password.
var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

func unknownStaffHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-staff-password"), bcrypt.DefaultCost)
	})
	return dummyHash
}

// StaffClaims is the payload of a staff token. Subject carries the staff id.
type StaffClaims struct {
	Name  string           `json:"name"`
	Email string           `json:"email"`
	Role  entity.StaffRole `json:"role"`
	jwt.RegisteredClaims
}

type StaffService struct {
	deps   Deps
	secret []byte
	ttl    time.Duration
}

func NewStaffService(deps Deps, secret string, ttl time.Duration) *StaffService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &StaffService{deps: deps, secret: []byte(secret), ttl: ttl}
}

type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Staff     *entity.Staff `json:"staff"`
}

// Login checks the password and issues a signed token.
func (s *StaffService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	member, err := s.deps.Store.GetStaffByEmail(ctx, email)
	if isNotFound(err) {
		_ = compareHash(unknownStaffHash(), []byte(password))
		return nil, apperr.Auth("invalid email or password")
	}
	if err != nil {
		return nil, storeErr(err, "")
	}
	if err := compareHash([]byte(member.PasswordHash), []byte(password)); err != nil {
		logger.Warn().Str("email", email).Msg("staff login rejected")
		return nil, apperr.Auth("invalid email or password")
	}
	if !member.IsActive {
		return nil, apperr.Auth("account is disabled")
	}

	now := s.deps.now()
	exp := now.Add(s.ttl)
	claims := &StaffClaims{
		Name:  member.Name,
		Email: member.Email,
		Role:  member.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   member.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t, err := tkn.SignedString(s.secret)
	if err != nil {
		return nil, apperr.Internal(err, "could not sign token")
	}
	logger.Info().Str("staff_id", member.ID).Str("role", string(member.Role)).Msg("staff logged in")
	return &LoginResult{Token: t, ExpiresAt: exp, Staff: member}, nil
}

type CreateStaffRequest struct {
	Email    string           `json:"email"`
	Name     string           `json:"name"`
	Role     entity.StaffRole `json:"role"`
	Password string           `json:"password"`
}

func (s *StaffService) Create(ctx context.Context, req CreateStaffRequest) (*entity.Staff, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("invalid email address")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if req.Role == "" {
		req.Role = entity.RoleWaiter
	}
	if !req.Role.Valid() {
		return nil, apperr.Validation("unknown role %q", req.Role)
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal(err, "could not hash password")
	}

	member := &entity.Staff{
		ID:           newID(),
		Email:        email,
		Name:         name,
		Role:         req.Role,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    s.deps.now(),
	}
	if err := s.deps.Store.CreateStaff(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("staff member %s already exists", email)
		}
		return nil, storeErr(err, "")
	}
	return member, nil
}

func (s *StaffService) Get(ctx context.Context, id string) (*entity.Staff, error) {
	member, err := s.deps.Store.GetStaff(ctx, id)
	if err != nil {
		return nil, storeErr(err, "staff member not found")
	}
	return member, nil
}

func (s *StaffService) List(ctx context.Context) ([]entity.Staff, error) {
	list, err := s.deps.Store.ListStaff(ctx)
	return list, storeErr(err, "")
}
