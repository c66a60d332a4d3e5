package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/altrivo/auth-service/internal/domain"
)

// --- mocks ---

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error {
	return m.Called(ctx, sessionID, newToken, newExpiry).Error(0)
}
func (m *mockSessionStore) Update(ctx context.Context, sessionID string, updates map[string]interface{}) error {
	return m.Called(ctx, sessionID, updates).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID, role, sessionID string) (string, error) {
	args := m.Called(userID, role, sessionID)
	return args.String(0), args.Error(1)
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(hash)
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").Return(&domain.User{
		UserID: "u1", Email: "jane@example.com", Role: domain.RoleUser,
		Enable: 1, PasswordHash: hashOf(t, "password123"),
	}, nil)
	ss := &mockSessionStore{}
	var stored *domain.Session
	ss.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.Session)
	}).Return(nil)
	jwt := &mockJWTSigner{}
	jwt.On("Sign", "u1", domain.RoleUser, mock.Anything).Return("bearer-token", nil)

	svc := NewService(ss, us, jwt, 7*24*time.Hour)
	result, err := svc.Login(context.Background(), LoginRequest{Email: "jane@example.com", Password: "password123"})

	require.NoError(t, err)
	assert.Equal(t, "bearer-token", result.Bearer)
	assert.NotEmpty(t, result.RefreshToken)
	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.UserID)
	assert.True(t, stored.Enable)
	assert.Equal(t, result.RefreshToken, stored.RefreshToken)
	assert.Greater(t, stored.RefreshExpiresAt, time.Now().Unix())
	require.NotNil(t, result.Session.User)
	assert.Equal(t, "u1", result.Session.User.UserID)
}

func TestLogin_WrongPassword(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").Return(&domain.User{
		UserID: "u1", Enable: 1, PasswordHash: hashOf(t, "password123"),
	}, nil)
	ss := &mockSessionStore{}

	svc := NewService(ss, us, nil, 7*24*time.Hour)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "jane@example.com", Password: "wrong"})

	require.ErrorIs(t, err, domain.ErrUnauthorized)
	ss.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestLogin_UnknownEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

	svc := NewService(&mockSessionStore{}, us, nil, 7*24*time.Hour)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "password123"})

	// Unknown email and wrong password are indistinguishable to the caller.
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.NotContains(t, err.Error(), "not found")
}

func TestLogin_DisabledAccount(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").Return(&domain.User{
		UserID: "u1", Enable: 0, PasswordHash: hashOf(t, "password123"),
	}, nil)

	svc := NewService(&mockSessionStore{}, us, nil, 7*24*time.Hour)
	_, err := svc.Login(context.Background(), LoginRequest{Email: "jane@example.com", Password: "password123"})

	require.ErrorIs(t, err, domain.ErrForbidden)
}

// --- GetCurrent / Logout ---

func TestGetCurrent_AttachesUser(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", UserID: "u1", Enable: true}, nil)
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Name: "Jane"}, nil)

	svc := NewService(ss, us, nil, 7*24*time.Hour)
	sess, err := svc.GetCurrent(context.Background(), "s1")

	require.NoError(t, err)
	require.NotNil(t, sess.User)
	assert.Equal(t, "Jane", sess.User.Name)
}

func TestGetCurrent_DisabledSession(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", UserID: "u1", Enable: false}, nil)

	svc := NewService(ss, &mockUserStore{}, nil, 7*24*time.Hour)
	_, err := svc.GetCurrent(context.Background(), "s1")

	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogout_DisablesSession(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Update", mock.Anything, "s1", map[string]interface{}{"enable": false}).Return(nil)

	svc := NewService(ss, &mockUserStore{}, nil, 7*24*time.Hour)
	require.NoError(t, svc.Logout(context.Background(), "s1"))
	ss.AssertExpectations(t)
}

// --- Refresh ---

func TestRefresh_RotatesToken(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("GetByRefreshToken", mock.Anything, "old-token").Return(&domain.Session{
		SessionID: "s1", UserID: "u1", Enable: true,
		RefreshToken: "old-token", RefreshExpiresAt: time.Now().Add(time.Hour).Unix(),
	}, nil)
	var rotatedTo string
	ss.On("RotateRefreshToken", mock.Anything, "s1", mock.AnythingOfType("string"), mock.AnythingOfType("int64")).
		Run(func(args mock.Arguments) { rotatedTo = args.String(2) }).Return(nil)
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Role: domain.RoleUser}, nil)
	jwt := &mockJWTSigner{}
	jwt.On("Sign", "u1", domain.RoleUser, "s1").Return("new-bearer", nil)

	svc := NewService(ss, us, jwt, 7*24*time.Hour)
	bearer, newToken, err := svc.Refresh(context.Background(), "old-token")

	require.NoError(t, err)
	assert.Equal(t, "new-bearer", bearer)
	assert.NotEmpty(t, newToken)
	assert.NotEqual(t, "old-token", newToken)
	assert.Equal(t, newToken, rotatedTo)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("GetByRefreshToken", mock.Anything, "old-token").Return(&domain.Session{
		SessionID: "s1", UserID: "u1", Enable: true,
		RefreshToken: "old-token", RefreshExpiresAt: time.Now().Add(-time.Minute).Unix(),
	}, nil)

	svc := NewService(ss, &mockUserStore{}, nil, 7*24*time.Hour)
	_, _, err := svc.Refresh(context.Background(), "old-token")

	require.ErrorIs(t, err, domain.ErrUnauthorized)
	ss.AssertNotCalled(t, "RotateRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_UnknownToken(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("GetByRefreshToken", mock.Anything, "bogus").Return(nil, domain.ErrNotFound)

	svc := NewService(ss, &mockUserStore{}, nil, 7*24*time.Hour)
	_, _, err := svc.Refresh(context.Background(), "bogus")

	require.ErrorIs(t, err, domain.ErrUnauthorized)
}
