// Package service implements the credential store and the tab store on top
// of a storage backend: input validation, PIN hashing and the error taxonomy
// the HTTP layer maps onto statuses.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/scratchpad/internal/models"
	"github.com/patric-chuzhbe/scratchpad/internal/user"
)

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) (string, error)
	GetUserByUsername(ctx context.Context, username string) (*user.User, bool, error)
}

type tabsKeeper interface {
	GetTabs(ctx context.Context, userID string) (models.Tabs, error)
	UpsertTab(ctx context.Context, userID string, tab models.Tab) error
	DeleteTab(ctx context.Context, userID, tabID string) error
	DeleteAllTabs(ctx context.Context, userID string) error
}

type statsKeeper interface {
	GetNumberOfUsers(ctx context.Context) (int64, error)
	GetNumberOfTabs(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	userKeeper
	tabsKeeper
	statsKeeper
	pinger
}

const (
	msgBadUsername          = "Username must be 4-16 characters (letters and numbers only)"
	msgBadPin               = "PIN must be 4-16 characters"
	msgBadCredentialsFormat = "Invalid credentials format"
	msgMissingTabFields     = "Missing required fields"
	msgTabIDTooLong         = "Tab ID must be at most 50 characters"
	msgInvalidUserID        = "Invalid user ID"

	pinAlphabetValidationTag = "pinalphabet"
	usernameValidationRules  = "required,min=4,max=16,alphanum"
	pinValidationRules       = "required,min=4,max=16," + pinAlphabetValidationTag

	defaultPinHashCost = bcrypt.DefaultCost
)

var pinPattern = regexp.MustCompile(`^[a-zA-Z0-9!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]+$`)

type Service struct {
	db          storage
	validate    *validator.Validate
	pinHashCost int
}

func New(db storage, pinHashCost int) *Service {
	if pinHashCost < bcrypt.MinCost || pinHashCost > bcrypt.MaxCost {
		pinHashCost = defaultPinHashCost
	}

	validate := validator.New()
	// Registering a validation only fails for an empty tag or a nil function.
	_ = validate.RegisterValidation(pinAlphabetValidationTag, func(fieldLevel validator.FieldLevel) bool {
		return pinPattern.MatchString(fieldLevel.Field().String())
	})

	return &Service{
		db:          db,
		validate:    validate,
		pinHashCost: pinHashCost,
	}
}

// Register creates an account. The username is case-folded before storing.
func (s *Service) Register(ctx context.Context, username, pin string) (*user.User, error) {
	if !s.isValidUsername(username) {
		return nil, models.NewValidationError(msgBadUsername)
	}
	if !s.isValidPin(pin) {
		return nil, models.NewValidationError(msgBadPin)
	}

	pinHash, err := bcrypt.GenerateFromPassword([]byte(pin), s.pinHashCost)
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/Register(): error while `bcrypt.GenerateFromPassword()` calling: %w", err)
	}

	usr := &user.User{
		Username: strings.ToLower(username),
		PinHash:  string(pinHash),
	}
	usr.ID, err = s.db.CreateUser(ctx, usr)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	return usr, nil
}

// Authenticate checks the username/PIN pair. An unknown username and a wrong
// PIN both yield models.ErrAuth.
func (s *Service) Authenticate(ctx context.Context, username, pin string) (*user.User, error) {
	if !s.isValidUsername(username) || !s.isValidPin(pin) {
		return nil, models.NewValidationError(msgBadCredentialsFormat)
	}

	usr, found, err := s.db.GetUserByUsername(ctx, strings.ToLower(username))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}
	if !found {
		return nil, models.ErrAuth
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PinHash), []byte(pin)); err != nil {
		return nil, models.ErrAuth
	}

	return usr, nil
}

// ListTabs returns the user's tabs ordered by tab ID. A user ID that cannot
// belong to any account simply owns no tabs.
func (s *Service) ListTabs(ctx context.Context, userID string) (models.Tabs, error) {
	if uuid.Validate(userID) != nil {
		return models.Tabs{}, nil
	}

	tabs, err := s.db.GetTabs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}
	if tabs == nil {
		tabs = models.Tabs{}
	}

	return tabs, nil
}

// UpsertTab creates the tab or overwrites its name and content.
func (s *Service) UpsertTab(ctx context.Context, userID, tabID, name, content string) error {
	if userID == "" || tabID == "" {
		return models.NewValidationError(msgMissingTabFields)
	}
	if len([]rune(tabID)) > models.MaxTabIDLength {
		return models.NewValidationError(msgTabIDTooLong)
	}
	if uuid.Validate(userID) != nil {
		return models.NewValidationError(msgInvalidUserID)
	}

	err := s.db.UpsertTab(ctx, userID, models.Tab{
		TabID:   tabID,
		TabName: name,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	return nil
}

// DeleteTab removes the tab if present.
func (s *Service) DeleteTab(ctx context.Context, userID, tabID string) error {
	if uuid.Validate(userID) != nil {
		return nil
	}

	if err := s.db.DeleteTab(ctx, userID, tabID); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	return nil
}

// DeleteAllTabs removes every tab the user owns.
func (s *Service) DeleteAllTabs(ctx context.Context, userID string) error {
	if uuid.Validate(userID) != nil {
		return nil
	}

	if err := s.db.DeleteAllTabs(ctx, userID); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	return nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetInternalStats returns the number of accounts and stored tabs.
func (s *Service) GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	tabs, err := s.db.GetNumberOfTabs(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	return models.InternalStatsResponse{
		Users: users,
		Tabs:  tabs,
	}, nil
}

func (s *Service) isValidUsername(username string) bool {
	return s.validate.Var(username, usernameValidationRules) == nil
}

func (s *Service) isValidPin(pin string) bool {
	return s.validate.Var(pin, pinValidationRules) == nil
}
