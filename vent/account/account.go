// Package account registers users and signs them in with a password or a
// Google identity.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ventwave/ventboard/audit"
	dbadapter "github.com/ventwave/ventboard/db"
	"github.com/ventwave/ventboard/model"
)

const (
	MinUsernameLen = 2
	MaxUsernameLen = 24
	MinPasswordLen = 6
	// bcrypt only looks at the first 72 bytes.
	MaxPasswordLen = 72

	fallbackUsername = "Ranter"
)

var (
	ErrMissingFields      = errors.New("Missing fields")
	ErrUsernameLength     = errors.New("Username must be 2-24 characters")
	ErrInvalidEmail       = errors.New("Invalid email")
	ErrPasswordTooShort   = errors.New("Password too short")
	ErrPasswordTooLong    = errors.New("Password too long")
	ErrEmailTaken         = errors.New("Email already in use")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrBanned             = errors.New("Account banned")
	ErrUserNotFound       = errors.New("Not found")
)

// RegisterInput is a password sign-up.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// GoogleProfile is the part of a Google identity used for sign-in.
type GoogleProfile struct {
	ID    string
	Email string
	Name  string
}

// Service manages accounts.
type Service struct {
	db       *gorm.DB
	starter  int64
	journal  *audit.Service
	logger   *zap.Logger
	hashCost int
}

// New creates a Service. New accounts start with starter Vent Energy.
func New(db *gorm.DB, starter int64, journal *audit.Service, logger *zap.Logger) *Service {
	return &Service{db: db, starter: starter, journal: journal, logger: logger, hashCost: bcrypt.DefaultCost}
}

// SetHashCost overrides the bcrypt cost.
func (s *Service) SetHashCost(cost int) { s.hashCost = cost }

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n") && len(email) <= 254
}

// Register creates a password account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := NormalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if n := utf8.RuneCountInString(username); n < MinUsernameLen || n > MaxUsernameLen {
		return nil, ErrUsernameLength
	}
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < MinPasswordLen {
		return nil, ErrPasswordTooShort
	}
	if len(in.Password) > MaxPasswordLen {
		return nil, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("account: hash: %w", err)
	}
	h := string(hash)
	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: &h,
		Status:       model.UserStatusNormal,
		VentEnergy:   s.starter,
		Equipped:     model.DefaultLoadout(),
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if dbadapter.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("account: create: %w", err)
	}
	s.logRegister(ctx, u, "password")
	return u, nil
}

// Authenticate checks an email and password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("account: load: %w", err)
	}
	if u.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if u.Status == model.UserStatusBanned {
		return nil, ErrBanned
	}
	return &u, nil
}

// SignInGoogle finds the account for a Google identity: by Google id first,
// then by email (linking the identity), else it creates a new account.
func (s *Service) SignInGoogle(ctx context.Context, p GoogleProfile) (*model.User, error) {
	if p.ID == "" {
		return nil, ErrMissingFields
	}
	email := NormalizeEmail(p.Email)
	db := s.db.WithContext(ctx)

	// A concurrent first sign-in may create the row between lookup and insert.
	for attempt := 0; attempt < 2; attempt++ {
		var u model.User
		err := db.Where("google_id = ?", p.ID).Take(&u).Error
		if err == nil {
			return s.active(&u)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account: load: %w", err)
		}

		if email != "" {
			err = db.Where("email = ?", email).Take(&u).Error
			if err == nil {
				if u.GoogleID == nil {
					id := p.ID
					if err := db.Model(&u).Update("google_id", id).Error; err != nil {
						return nil, fmt.Errorf("account: link google: %w", err)
					}
					u.GoogleID = &id
				}
				return s.active(&u)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("account: load: %w", err)
			}
		}

		if email == "" {
			email = "noemail-" + p.ID + "@google.local"
		}
		id := p.ID
		nu := &model.User{
			Username:   googleUsername(p.Name),
			Email:      email,
			GoogleID:   &id,
			Status:     model.UserStatusNormal,
			VentEnergy: s.starter,
			Equipped:   model.DefaultLoadout(),
		}
		err = db.Create(nu).Error
		if err == nil {
			s.logRegister(ctx, nu, "google")
			return nu, nil
		}
		if !dbadapter.IsUniqueViolation(err) {
			return nil, fmt.Errorf("account: create: %w", err)
		}
	}
	return nil, ErrEmailTaken
}

func googleUsername(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		name = strings.TrimSpace(string([]rune(name)[:MaxUsernameLen]))
	}
	if utf8.RuneCountInString(name) < MinUsernameLen {
		return fallbackUsername
	}
	return name
}

func (s *Service) active(u *model.User) (*model.User, error) {
	if u.Status == model.UserStatusBanned {
		return nil, ErrBanned
	}
	return u, nil
}

func (s *Service) logRegister(ctx context.Context, u *model.User, method string) {
	balance := u.VentEnergy
	s.journal.Log(ctx, audit.Entry{
		UserID:  u.ID,
		Action:  model.ActionRegister,
		Amount:  s.starter,
		Balance: &balance,
		Detail:  map[string]string{"method": method},
	})
	s.logger.Info("account created", zap.String("user_id", u.ID), zap.String("method", method))
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: load: %w", err)
	}
	u.Equipped = u.Equipped.WithDefaults()
	return &u, nil
}

// Active loads a user by id and fails with ErrBanned for banned accounts.
func (s *Service) Active(ctx context.Context, id string) (*model.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.active(u)
}

// Count returns the number of accounts.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error
	return n, err
}
