package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/watertemp-auth/internal/models"
	"github.com/sbilibin2017/watertemp-auth/internal/passwords"
	"github.com/sbilibin2017/watertemp-auth/internal/services"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

func strPtr(s string) *string { return &s }

func newHasher(t *testing.T) *passwords.Hasher {
	t.Helper()
	h, err := passwords.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

type accountDeps struct {
	reader *services.MockAccountReader
	writer *services.MockAccountWriter
	cache  *services.MockAccountsExistCache
	kafka  *services.MockKafkaWriter
	hasher *passwords.Hasher
}

func newAccountService(t *testing.T, withCache, withKafka bool) (*services.AccountService, accountDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)

	deps := accountDeps{
		reader: services.NewMockAccountReader(ctrl),
		writer: services.NewMockAccountWriter(ctrl),
		cache:  services.NewMockAccountsExistCache(ctrl),
		kafka:  services.NewMockKafkaWriter(ctrl),
		hasher: newHasher(t),
	}

	var cache services.AccountsExistCache
	if withCache {
		cache = deps.cache
	}
	var writer services.KafkaWriter
	if withKafka {
		writer = deps.kafka
	}

	svc, err := services.NewAccountService(deps.reader, deps.writer, deps.hasher, cache, writer, minPasswordLength)
	require.NoError(t, err)
	return svc, deps
}

func TestAccountService_AccountsExist(t *testing.T) {
	t.Run("no cache", func(t *testing.T) {
		svc, deps := newAccountService(t, false, false)
		deps.reader.EXPECT().Count(gomock.Any()).Return(int64(0), nil)

		exists, err := svc.AccountsExist(context.Background())
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("cache hit skips database", func(t *testing.T) {
		svc, deps := newAccountService(t, true, false)
		deps.cache.EXPECT().GetAccountsExist(gomock.Any()).Return(true, nil)

		exists, err := svc.AccountsExist(context.Background())
		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("cache miss fills cache", func(t *testing.T) {
		svc, deps := newAccountService(t, true, false)
		deps.cache.EXPECT().GetAccountsExist(gomock.Any()).Return(false, nil)
		deps.reader.EXPECT().Count(gomock.Any()).Return(int64(1), nil)
		deps.cache.EXPECT().SetAccountsExist(gomock.Any()).Return(nil)

		exists, err := svc.AccountsExist(context.Background())
		assert.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("cache error falls back to database", func(t *testing.T) {
		svc, deps := newAccountService(t, true, false)
		deps.cache.EXPECT().GetAccountsExist(gomock.Any()).Return(false, errors.New("redis down"))
		deps.reader.EXPECT().Count(gomock.Any()).Return(int64(0), nil)

		exists, err := svc.AccountsExist(context.Background())
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("database error", func(t *testing.T) {
		svc, deps := newAccountService(t, false, false)
		deps.reader.EXPECT().Count(gomock.Any()).Return(int64(0), errors.New("db error"))

		_, err := svc.AccountsExist(context.Background())
		assert.EqualError(t, err, "db error")
	})
}

func TestAccountService_Register(t *testing.T) {
	tests := []struct {
		name        string
		input       models.RegisterInput
		count       int64
		expectSave  bool
		saveErr     error
		wantErr     error
		wantMessage string
	}{
		{
			name:       "successful registration",
			input:      models.RegisterInput{Username: "  alice  ", Password: "Secret123!", Email: strPtr("alice@example.com")},
			expectSave: true,
		},
		{
			name:    "account already exists",
			input:   models.RegisterInput{Username: "alice", Password: "Secret123!"},
			count:   1,
			wantErr: services.ErrAccountAlreadyExists,
		},
		{
			name:        "blank username",
			input:       models.RegisterInput{Username: "", Password: "anypassword"},
			wantMessage: "Username and password required",
		},
		{
			name:        "blank password",
			input:       models.RegisterInput{Username: "alice", Password: "   "},
			wantMessage: "Username and password required",
		},
		{
			name:        "password too short",
			input:       models.RegisterInput{Username: "validname", Password: "123"},
			wantMessage: "Password must be at least 8 characters long",
		},
		{
			name:        "password too long for bcrypt",
			input:       models.RegisterInput{Username: "validname", Password: strings.Repeat("p", 73)},
			wantMessage: "Password must be at most 72 bytes long",
		},
		{
			name:        "username too short",
			input:       models.RegisterInput{Username: "ab", Password: "validpass123"},
			wantMessage: "Username must be between 3-50 characters",
		},
		{
			name:        "username too short after trim",
			input:       models.RegisterInput{Username: "  ab  ", Password: "validpass123"},
			wantMessage: "Username must be between 3-50 characters",
		},
		{
			name:        "username too long",
			input:       models.RegisterInput{Username: strings.Repeat("u", 51), Password: "validpass123"},
			wantMessage: "Username must be between 3-50 characters",
		},
		{
			name:        "invalid email",
			input:       models.RegisterInput{Username: "alice", Password: "Secret123!", Email: strPtr("not-an-email")},
			wantMessage: "Invalid email format",
		},
		{
			name:        "first name too long",
			input:       models.RegisterInput{Username: "alice", Password: "Secret123!", FirstName: strPtr(strings.Repeat("f", 51))},
			wantMessage: "First name must be at most 50 characters",
		},
		{
			name:       "lost race against concurrent registration",
			input:      models.RegisterInput{Username: "alice", Password: "Secret123!"},
			expectSave: true,
			saveErr:    models.ErrDuplicateAccount,
			wantErr:    services.ErrAccountAlreadyExists,
		},
		{
			name:       "writer error",
			input:      models.RegisterInput{Username: "alice", Password: "Secret123!"},
			expectSave: true,
			saveErr:    errors.New("save error"),
			wantErr:    errors.New("save error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newAccountService(t, false, false)

			deps.reader.EXPECT().Count(gomock.Any()).Return(tt.count, nil)

			if tt.expectSave {
				deps.writer.EXPECT().
					Create(gomock.Any(), gomock.Any()).
					DoAndReturn(func(ctx context.Context, account *models.Account) (*models.Account, error) {
						assert.Equal(t, strings.TrimSpace(tt.input.Username), account.Username)
						assert.True(t, account.IsAdmin)
						assert.NotEqual(t, tt.input.Password, account.PasswordHash)
						assert.True(t, deps.hasher.Verify(tt.input.Password, account.PasswordHash))
						if tt.saveErr != nil {
							return nil, tt.saveErr
						}
						created := *account
						created.ID = 1
						return &created, nil
					})
			}

			account, err := svc.Register(context.Background(), tt.input)

			switch {
			case tt.wantMessage != "":
				var verr *services.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantMessage, verr.Message)
				assert.Nil(t, account)
			case tt.wantErr != nil:
				assert.EqualError(t, err, tt.wantErr.Error())
				assert.Nil(t, account)
			default:
				require.NoError(t, err)
				assert.Equal(t, int64(1), account.ID)
				assert.Equal(t, "alice", account.Username)
			}
		})
	}
}

func TestAccountService_Register_CacheAndEvents(t *testing.T) {
	t.Run("cached existence rejects without database", func(t *testing.T) {
		svc, deps := newAccountService(t, true, true)
		deps.cache.EXPECT().GetAccountsExist(gomock.Any()).Return(true, nil)

		_, err := svc.Register(context.Background(), models.RegisterInput{Username: "alice", Password: "Secret123!"})
		assert.ErrorIs(t, err, services.ErrAccountAlreadyExists)
	})

	t.Run("success sets cache and publishes event", func(t *testing.T) {
		svc, deps := newAccountService(t, true, true)

		gomock.InOrder(
			deps.cache.EXPECT().GetAccountsExist(gomock.Any()).Return(false, nil),
			deps.reader.EXPECT().Count(gomock.Any()).Return(int64(0), nil),
			deps.writer.EXPECT().Create(gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, account *models.Account) (*models.Account, error) {
					created := *account
					created.ID = 1
					return &created, nil
				}),
			deps.cache.EXPECT().SetAccountsExist(gomock.Any()).Return(nil),
			deps.kafka.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, msgs ...kafka.Message) error {
					require.Len(t, msgs, 1)
					assert.Equal(t, "1", string(msgs[0].Key))
					assert.NotContains(t, string(msgs[0].Value), "Secret123!")
					assert.NotContains(t, string(msgs[0].Value), "$2a$")

					var event models.AccountEvent
					require.NoError(t, json.Unmarshal(msgs[0].Value, &event))
					assert.Equal(t, models.EventAccountRegistered, event.Type)
					assert.Equal(t, int64(1), event.AccountID)
					assert.Equal(t, "alice", event.Username)
					assert.NotEmpty(t, event.EventID)
					return nil
				}),
		)

		account, err := svc.Register(context.Background(), models.RegisterInput{Username: "alice", Password: "Secret123!"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), account.ID)
	})

	t.Run("publish failure does not fail registration", func(t *testing.T) {
		svc, deps := newAccountService(t, false, true)

		deps.reader.EXPECT().Count(gomock.Any()).Return(int64(0), nil)
		deps.writer.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, account *models.Account) (*models.Account, error) {
				return account, nil
			})
		deps.kafka.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("kafka down"))

		_, err := svc.Register(context.Background(), models.RegisterInput{Username: "alice", Password: "Secret123!"})
		assert.NoError(t, err)
	})
}

func TestAccountService_Authenticate(t *testing.T) {
	hasher := newHasher(t)
	hash, err := hasher.Hash("Secret123!")
	require.NoError(t, err)
	stored := &models.Account{ID: 1, Username: "alice", PasswordHash: hash}

	tests := []struct {
		name      string
		username  string
		password  string
		account   *models.Account
		readerErr error
		wantErr   error
	}{
		{"success", "alice", "Secret123!", stored, nil, nil},
		{"wrong password", "alice", "wrong-password", stored, nil, services.ErrInvalidCredentials},
		{"unknown username", "bob", "Secret123!", nil, nil, services.ErrInvalidCredentials},
		{"reader error", "alice", "Secret123!", nil, errors.New("db error"), errors.New("db error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newAccountService(t, false, false)
			deps.reader.EXPECT().GetByUsername(gomock.Any(), tt.username).Return(tt.account, tt.readerErr)

			account, err := svc.Authenticate(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
				assert.Nil(t, account)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, stored, account)
		})
	}
}

func TestAccountService_RejectsPasswordsExtendingStoredOne(t *testing.T) {
	hasher := newHasher(t)
	password := strings.Repeat("a", passwords.MaxPasswordBytes)
	hash, err := hasher.Hash(password)
	require.NoError(t, err)
	stored := &models.Account{ID: 1, Username: "alice", PasswordHash: hash}
	longer := password + "-suffix"

	t.Run("login", func(t *testing.T) {
		svc, deps := newAccountService(t, false, false)
		deps.reader.EXPECT().GetByUsername(gomock.Any(), "alice").Return(stored, nil)

		account, err := svc.Authenticate(context.Background(), "alice", longer)
		assert.ErrorIs(t, err, services.ErrInvalidCredentials)
		assert.Nil(t, account)
	})

	t.Run("change password", func(t *testing.T) {
		svc, deps := newAccountService(t, false, false)
		deps.reader.EXPECT().GetByIDForUpdate(gomock.Any(), int64(1)).Return(stored, nil)

		err := svc.ChangePassword(context.Background(), 1, longer, "NewSecret456!")
		assert.ErrorIs(t, err, services.ErrWrongCurrentPassword)
	})
}

func TestAccountService_GetProfile(t *testing.T) {
	svc, deps := newAccountService(t, false, false)
	stored := &models.Account{ID: 1, Username: "alice"}

	deps.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(stored, nil)
	account, err := svc.GetProfile(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, stored, account)

	deps.reader.EXPECT().GetByID(gomock.Any(), int64(2)).Return(nil, nil)
	_, err = svc.GetProfile(context.Background(), 2)
	assert.ErrorIs(t, err, services.ErrAccountNotFound)
}

func TestAccountService_UpdateProfile(t *testing.T) {
	tests := []struct {
		name        string
		found       bool
		update      models.ProfileUpdate
		expectSave  bool
		saveErr     error
		wantErr     error
		wantMessage string
	}{
		{
			name:       "sets and clears fields",
			found:      true,
			update:     models.ProfileUpdate{Email: strPtr("new@example.com"), FirstName: nil, LastName: strPtr("Smith"), ProfilePicture: strPtr("data:image/png;base64,AAAA")},
			expectSave: true,
		},
		{
			name:        "invalid email",
			found:       true,
			update:      models.ProfileUpdate{Email: strPtr("broken@")},
			wantMessage: "Invalid email format",
		},
		{
			name:    "missing account",
			found:   false,
			update:  models.ProfileUpdate{},
			wantErr: services.ErrAccountNotFound,
		},
		{
			name:       "email taken",
			found:      true,
			update:     models.ProfileUpdate{Email: strPtr("taken@example.com")},
			expectSave: true,
			saveErr:    models.ErrDuplicateEmail,
			wantErr:    services.ErrEmailAlreadyInUse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newAccountService(t, false, false)

			var stored *models.Account
			if tt.found {
				stored = &models.Account{ID: 1, Username: "alice", Email: strPtr("old@example.com"), FirstName: strPtr("Alice")}
			}
			deps.reader.EXPECT().GetByID(gomock.Any(), int64(1)).Return(stored, nil)

			if tt.expectSave {
				deps.writer.EXPECT().Update(gomock.Any(), gomock.Any()).
					DoAndReturn(func(ctx context.Context, account *models.Account) error {
						assert.Equal(t, tt.update.Email, account.Email)
						assert.Equal(t, tt.update.FirstName, account.FirstName)
						assert.Equal(t, tt.update.LastName, account.LastName)
						assert.Equal(t, tt.update.ProfilePicture, account.ProfilePicture)
						return tt.saveErr
					})
			}

			account, err := svc.UpdateProfile(context.Background(), 1, tt.update)
			switch {
			case tt.wantMessage != "":
				var verr *services.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantMessage, verr.Message)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, account)
			default:
				require.NoError(t, err)
				assert.Equal(t, "alice", account.Username)
				assert.Nil(t, account.FirstName)
				assert.Equal(t, "Smith", *account.LastName)
			}
		})
	}
}

func TestAccountService_ChangePassword(t *testing.T) {
	hasher := newHasher(t)
	hash, err := hasher.Hash("Secret123!")
	require.NoError(t, err)

	tests := []struct {
		name        string
		found       bool
		current     string
		next        string
		expectSave  bool
		wantErr     error
		wantMessage string
	}{
		{"success", true, "Secret123!", "NewSecret456!", true, nil, ""},
		{"wrong current password", true, "wrong-password", "NewSecret456!", false, services.ErrWrongCurrentPassword, ""},
		{"weak new password", true, "Secret123!", "short", false, nil, "Password must be at least 8 characters long"},
		{"missing account", false, "Secret123!", "NewSecret456!", false, services.ErrAccountNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newAccountService(t, false, false)

			var stored *models.Account
			if tt.found {
				stored = &models.Account{ID: 1, Username: "alice", PasswordHash: hash}
			}
			deps.reader.EXPECT().GetByIDForUpdate(gomock.Any(), int64(1)).Return(stored, nil)

			if tt.expectSave {
				deps.writer.EXPECT().UpdatePasswordHash(gomock.Any(), int64(1), gomock.Any()).
					DoAndReturn(func(ctx context.Context, id int64, newHash string) error {
						assert.True(t, hasher.Verify(tt.next, newHash))
						assert.False(t, hasher.Verify(tt.current, newHash))
						return nil
					})
			}

			err := svc.ChangePassword(context.Background(), 1, tt.current, tt.next)
			switch {
			case tt.wantMessage != "":
				var verr *services.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.wantMessage, verr.Message)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}
