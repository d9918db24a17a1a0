package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"fusionbi/internal/auth"
	"fusionbi/internal/infrastructure"
	"fusionbi/internal/shared/testutil"
	"fusionbi/internal/store"
	"fusionbi/pkg/contracts/domain"
)

var (
	hashOnce sync.Once
	testHash string
)

// passwordHash hashes "s3cret" once; bcrypt is slow on purpose.
func passwordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := auth.HashPassword("s3cret")
		require.NoError(t, err)
		testHash = h
	})
	return testHash
}

func testMetrics(t *testing.T) *infrastructure.BusinessMetrics {
	t.Helper()
	m, err := infrastructure.CreateBusinessMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return m
}

func TestAuthService_Login(t *testing.T) {
	hash := passwordHash(t)
	active := func() *domain.User {
		return &domain.User{ID: 7, Username: "jdoe", Email: "jdoe@example.com", PasswordHash: hash, Role: "Admin", IsActive: true}
	}

	tests := []struct {
		name     string
		login    string
		password string
		setup    func(*MockUserStore, *MockTokenIssuer)
		wantErr  error
	}{
		{
			name:     "missing login",
			login:    "   ",
			password: "s3cret",
			setup:    func(*MockUserStore, *MockTokenIssuer) {},
			wantErr:  ErrMissingCredentials,
		},
		{
			name:     "missing password",
			login:    "jdoe",
			password: "",
			setup:    func(*MockUserStore, *MockTokenIssuer) {},
			wantErr:  ErrMissingCredentials,
		},
		{
			name:     "database down",
			login:    "jdoe",
			password: "s3cret",
			setup: func(us *MockUserStore, _ *MockTokenIssuer) {
				us.On("UserByLogin", mock.Anything, "jdoe").Return(nil, errors.New("dial tcp: refused"))
			},
			wantErr: ErrLoginUnavailable,
		},
		{
			name:     "unknown user",
			login:    "ghost",
			password: "s3cret",
			setup: func(us *MockUserStore, _ *MockTokenIssuer) {
				us.On("UserByLogin", mock.Anything, "ghost").Return(nil, store.ErrUserNotFound)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:     "inactive wins over wrong password",
			login:    "jdoe",
			password: "wrong",
			setup: func(us *MockUserStore, _ *MockTokenIssuer) {
				u := active()
				u.IsActive = false
				us.On("UserByLogin", mock.Anything, "jdoe").Return(u, nil)
			},
			wantErr: ErrAccountInactive,
		},
		{
			name:     "wrong password",
			login:    "jdoe@example.com",
			password: "wrong",
			setup: func(us *MockUserStore, _ *MockTokenIssuer) {
				us.On("UserByLogin", mock.Anything, "jdoe@example.com").Return(active(), nil)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:     "success trims login",
			login:    "  jdoe ",
			password: "s3cret",
			setup: func(us *MockUserStore, ti *MockTokenIssuer) {
				us.On("UserByLogin", mock.Anything, "jdoe").Return(active(), nil)
				us.On("UpdateLastLogin", mock.Anything, int64(7), mock.AnythingOfType("time.Time")).Return(nil)
				ti.On("Issue", mock.Anything).Return("token-1", nil)
			},
		},
		{
			name:     "last login failure does not block sign in",
			login:    "jdoe",
			password: "s3cret",
			setup: func(us *MockUserStore, ti *MockTokenIssuer) {
				us.On("UserByLogin", mock.Anything, "jdoe").Return(active(), nil)
				us.On("UpdateLastLogin", mock.Anything, int64(7), mock.Anything).Return(errors.New("deadlock"))
				ti.On("Issue", mock.Anything).Return("token-1", nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserStore)
			tokens := new(MockTokenIssuer)
			tt.setup(users, tokens)
			logger, _ := testutil.NewTestLogger(t)

			svc := NewAuthService(users, tokens, testMetrics(t), logger)
			res, err := svc.Login(context.Background(), tt.login, tt.password)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				tokens.AssertNotCalled(t, "Issue", mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "token-1", res.Token)
				assert.Equal(t, int64(7), res.User.ID)
			}
			users.AssertExpectations(t)
			tokens.AssertExpectations(t)
		})
	}
}

func TestAuthService_LoginSetsLastLogin(t *testing.T) {
	users := new(MockUserStore)
	tokens := new(MockTokenIssuer)
	logger, logs := testutil.NewTestLogger(t)

	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	svc := NewAuthService(users, tokens, nil, logger)
	svc.now = func() time.Time { return fixed }

	users.On("UserByLogin", mock.Anything, "jdoe").
		Return(&domain.User{ID: 7, Username: "jdoe", PasswordHash: passwordHash(t), IsActive: true}, nil)
	users.On("UpdateLastLogin", mock.Anything, int64(7), fixed).Return(nil)
	tokens.On("Issue", mock.Anything).Return("tok", nil)

	res, err := svc.Login(context.Background(), "jdoe", "s3cret")
	require.NoError(t, err)
	require.NotNil(t, res.User.LastLogin)
	assert.Equal(t, fixed, *res.User.LastLogin)
	testutil.AssertLogAttr(t, logs, "component", "auth_service")
	assert.True(t, logs.ContainsMessage("user signed in"))
}

func TestAuthService_LoginLookupFailure(t *testing.T) {
	users := new(MockUserStore)
	logger, logs := testutil.NewTestLogger(t)
	svc := NewAuthService(users, new(MockTokenIssuer), nil, logger)

	users.On("UserByLogin", mock.Anything, "jdoe").Return(nil, errors.New("login failed for user 'sa'"))
	_, err := svc.Login(context.Background(), "jdoe", "x")

	require.ErrorIs(t, err, ErrLoginUnavailable)
	assert.True(t, logs.ContainsMessage("user lookup failed"))
}

func TestAuthService_CurrentUser(t *testing.T) {
	tests := []struct {
		name    string
		claims  *auth.Claims
		setup   func(*MockUserStore)
		wantErr error
	}{
		{
			name:    "no claims",
			setup:   func(*MockUserStore) {},
			wantErr: ErrSessionInvalid,
		},
		{
			name:   "deleted user",
			claims: &auth.Claims{UserID: 3},
			setup: func(us *MockUserStore) {
				us.On("UserByID", mock.Anything, int64(3)).Return(nil, store.ErrUserNotFound)
			},
			wantErr: ErrSessionInvalid,
		},
		{
			name:   "deactivated user",
			claims: &auth.Claims{UserID: 3},
			setup: func(us *MockUserStore) {
				us.On("UserByID", mock.Anything, int64(3)).Return(&domain.User{ID: 3}, nil)
			},
			wantErr: ErrSessionInvalid,
		},
		{
			name:   "database down",
			claims: &auth.Claims{UserID: 3},
			setup: func(us *MockUserStore) {
				us.On("UserByID", mock.Anything, int64(3)).Return(nil, errors.New("timeout"))
			},
			wantErr: ErrLoginUnavailable,
		},
		{
			name:   "active user",
			claims: &auth.Claims{UserID: 3},
			setup: func(us *MockUserStore) {
				us.On("UserByID", mock.Anything, int64(3)).Return(&domain.User{ID: 3, Username: "amy", IsActive: true}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserStore)
			tt.setup(users)
			logger, _ := testutil.NewTestLogger(t)
			svc := NewAuthService(users, new(MockTokenIssuer), nil, logger)

			u, err := svc.CurrentUser(context.Background(), tt.claims)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "amy", u.Username)
		})
	}
}
