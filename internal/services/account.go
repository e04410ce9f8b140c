package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sbilibin2017/watertemp-auth/internal/logger"
	"github.com/sbilibin2017/watertemp-auth/internal/models"
	"github.com/sbilibin2017/watertemp-auth/internal/passwords"
	"github.com/segmentio/kafka-go"
)

//go:generate mockgen -source=account.go -destination=account_mock.go -package=services

const (
	minUsernameLength = 3
	maxUsernameLength = 50
	maxEmailLength    = 100
	maxNameLength     = 50
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Error variables
var (
	ErrAccountAlreadyExists = errors.New("only one account may exist")
	ErrEmailAlreadyInUse    = errors.New("email already in use")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
)

// ValidationError reports input that breaks an account rule. Message is safe to show to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AccountReader defines read-only operations for accounts.
// Lookups return a nil account without error when nothing matches.
type AccountReader interface {
	Count(ctx context.Context) (int64, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error)
}

// AccountWriter defines write operations for accounts.
type AccountWriter interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// AccountsExistCache remembers that an account has been registered.
type AccountsExistCache interface {
	GetAccountsExist(ctx context.Context) (bool, error)
	SetAccountsExist(ctx context.Context) error
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AccountService guards the single account: registration, credential checks and profile changes.
type AccountService struct {
	reader            AccountReader
	writer            AccountWriter
	hasher            PasswordHasher
	cache             AccountsExistCache
	kafkaWriter       KafkaWriter
	minPasswordLength int
	timingHash        string
}

// NewAccountService creates a new AccountService. cache and kafkaWriter may be nil.
func NewAccountService(
	reader AccountReader,
	writer AccountWriter,
	hasher PasswordHasher,
	cache AccountsExistCache,
	kafkaWriter KafkaWriter,
	minPasswordLength int,
) (*AccountService, error) {
	// Verified against when the username is unknown so both login failures cost one bcrypt comparison.
	timingHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	return &AccountService{
		reader:            reader,
		writer:            writer,
		hasher:            hasher,
		cache:             cache,
		kafkaWriter:       kafkaWriter,
		minPasswordLength: minPasswordLength,
		timingHash:        timingHash,
	}, nil
}

// AccountsExist reports whether any account has been registered.
func (s *AccountService) AccountsExist(ctx context.Context) (bool, error) {
	if s.cache != nil {
		exists, err := s.cache.GetAccountsExist(ctx)
		if err != nil {
			logger.Log.Warnw("failed to read accounts-exist cache", "error", err)
		} else if exists {
			return true, nil
		}
	}

	count, err := s.reader.Count(ctx)
	if err != nil {
		logger.Log.Errorw("failed to count accounts", "error", err)
		return false, err
	}

	if count > 0 {
		s.rememberAccountsExist(ctx)
	}
	return count > 0, nil
}

// Register creates the account. It fails with ErrAccountAlreadyExists once any account exists.
func (s *AccountService) Register(ctx context.Context, in models.RegisterInput) (*models.Account, error) {
	exists, err := s.AccountsExist(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Log.Warnw("registration rejected, account already exists", "username", in.Username)
		return nil, ErrAccountAlreadyExists
	}

	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Password) == "" {
		return nil, invalid("Username and password required")
	}
	if err := s.validatePassword(in.Password); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return nil, invalid("Username must be between %d-%d characters", minUsernameLength, maxUsernameLength)
	}
	if err := validateProfile(in.Email, in.FirstName, in.LastName); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "error", err)
		return nil, err
	}

	account, err := s.writer.Create(ctx, &models.Account{
		Username:     username,
		PasswordHash: hash,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsAdmin:      true,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateAccount):
			logger.Log.Warnw("registration lost race, account already exists", "username", username)
			return nil, ErrAccountAlreadyExists
		case errors.Is(err, models.ErrDuplicateEmail):
			return nil, ErrEmailAlreadyInUse
		default:
			logger.Log.Errorw("failed to save account", "error", err)
			return nil, err
		}
	}

	s.rememberAccountsExist(ctx)
	s.publishEvent(ctx, models.EventAccountRegistered, account)

	return account, nil
}

// Authenticate checks a username and password.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	account, err := s.reader.GetByUsername(ctx, username)
	if err != nil {
		logger.Log.Errorw("failed to get account", "error", err)
		return nil, err
	}

	if account == nil {
		s.hasher.Verify(password, s.timingHash)
		logger.Log.Infow("login failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		logger.Log.Infow("login failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	return account, nil
}

// GetProfile returns the account with the given id.
func (s *AccountService) GetProfile(ctx context.Context, id int64) (*models.Account, error) {
	account, err := s.reader.GetByID(ctx, id)
	if err != nil {
		logger.Log.Errorw("failed to get account", "accountID", id, "error", err)
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// UpdateProfile replaces the optional profile fields of the account.
func (s *AccountService) UpdateProfile(ctx context.Context, id int64, upd models.ProfileUpdate) (*models.Account, error) {
	account, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := validateProfile(upd.Email, upd.FirstName, upd.LastName); err != nil {
		return nil, err
	}

	account.Email = upd.Email
	account.FirstName = upd.FirstName
	account.LastName = upd.LastName
	account.ProfilePicture = upd.ProfilePicture

	if err := s.writer.Update(ctx, account); err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyInUse
		}
		logger.Log.Errorw("failed to update account", "accountID", id, "error", err)
		return nil, err
	}

	s.publishEvent(ctx, models.EventAccountProfileUpdated, account)
	return account, nil
}

// ChangePassword replaces the password after re-verifying the current one.
func (s *AccountService) ChangePassword(ctx context.Context, id int64, currentPassword, newPassword string) error {
	account, err := s.reader.GetByIDForUpdate(ctx, id)
	if err != nil {
		logger.Log.Errorw("failed to get account", "accountID", id, "error", err)
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	if !s.hasher.Verify(currentPassword, account.PasswordHash) {
		logger.Log.Infow("password change rejected, wrong current password", "accountID", id)
		return ErrWrongCurrentPassword
	}

	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "error", err)
		return err
	}

	if err := s.writer.UpdatePasswordHash(ctx, id, hash); err != nil {
		logger.Log.Errorw("failed to update password", "accountID", id, "error", err)
		return err
	}

	s.publishEvent(ctx, models.EventAccountPasswordChange, account)
	return nil
}

func (s *AccountService) validatePassword(password string) error {
	if utf8.RuneCountInString(password) < s.minPasswordLength {
		return invalid("Password must be at least %d characters long", s.minPasswordLength)
	}
	if len(password) > passwords.MaxPasswordBytes {
		return invalid("Password must be at most %d bytes long", passwords.MaxPasswordBytes)
	}
	return nil
}

func validateProfile(email, firstName, lastName *string) error {
	if email != nil {
		if !emailPattern.MatchString(*email) {
			return invalid("Invalid email format")
		}
		if utf8.RuneCountInString(*email) > maxEmailLength {
			return invalid("Email must be at most %d characters", maxEmailLength)
		}
	}
	if firstName != nil && utf8.RuneCountInString(*firstName) > maxNameLength {
		return invalid("First name must be at most %d characters", maxNameLength)
	}
	if lastName != nil && utf8.RuneCountInString(*lastName) > maxNameLength {
		return invalid("Last name must be at most %d characters", maxNameLength)
	}
	return nil
}

func (s *AccountService) rememberAccountsExist(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetAccountsExist(ctx); err != nil {
		logger.Log.Warnw("failed to write accounts-exist cache", "error", err)
	}
}

// publishEvent publishes an account event to Kafka.
func (s *AccountService) publishEvent(ctx context.Context, eventType string, account *models.Account) {
	if s.kafkaWriter == nil {
		logger.Log.Debugw("Kafka writer not configured, skipping publishing", "type", eventType)
		return
	}

	event := models.AccountEvent{
		EventID:   uuid.NewString(),
		Type:      eventType,
		AccountID: account.ID,
		Username:  account.Username,
		Timestamp: time.Now().Unix(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("Failed to marshal account event for Kafka", "event_id", event.EventID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(account.ID, 10)),
		Value: data,
	}

	if err := s.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("Failed to publish account event to Kafka", "event_id", event.EventID, "type", eventType, "error", err)
	} else {
		logger.Log.Infow("Account event published to Kafka", "event_id", event.EventID, "type", eventType)
	}
}
