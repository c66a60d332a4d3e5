package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/altrivo/auth-service/internal/domain"
	googleinfra "github.com/altrivo/auth-service/internal/infrastructure/google"
)

// --- mocks ---

type mockOTPService struct{ mock.Mock }

func (m *mockOTPService) Request(ctx context.Context, name, email, templateKey string) error {
	return m.Called(ctx, name, email, templateKey).Error(0)
}
func (m *mockOTPService) CheckRestrictions(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockOTPService) TrackRequest(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}
func (m *mockOTPService) Issue(ctx context.Context, name, email, templateKey string) error {
	return m.Called(ctx, name, email, templateKey).Error(0)
}
func (m *mockOTPService) Verify(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}

type mockGoogleVerifier struct{ mock.Mock }

func (m *mockGoogleVerifier) Verify(ctx context.Context, token string) (*googleinfra.Payload, error) {
	args := m.Called(ctx, token)
	if p, _ := args.Get(0).(*googleinfra.Payload); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID, role, sessionID string) (string, error) {
	args := m.Called(userID, role, sessionID)
	return args.String(0), args.Error(1)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, phone, msg string) error {
	return m.Called(ctx, phone, msg).Error(0)
}

// --- builder ---

func newService(otp *mockOTPService, us *mockUserStore, ss *mockSessionStore, gv *mockGoogleVerifier, jwt *mockJWTSigner, sms *mockSMSSender) Service {
	deps := ServiceDeps{
		OTPService:      otp,
		UserRepo:        us,
		SessionRepo:     ss,
		JWTProvider:     jwt,
		RefreshTokenDur: 7 * 24 * time.Hour,
	}
	if gv != nil {
		deps.GoogleVerifier = gv
	}
	if sms != nil {
		deps.SMSSender = sms
	}
	return NewService(deps)
}

// --- Register ---

func TestRegister_DuplicateEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").Return(&domain.User{UserID: "u1"}, nil)

	svc := newService(nil, us, nil, nil, nil, nil)
	err := svc.Register(context.Background(), domain.RegisterRequest{
		Name: "Jane", Email: "jane@example.com", Password: "password123",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegister_SendsActivationCode(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").Return(nil, domain.ErrNotFound)
	otpSvc := &mockOTPService{}
	otpSvc.On("Request", mock.Anything, "Jane", "jane@example.com", "user-activation-mail").Return(nil)

	svc := newService(otpSvc, us, nil, nil, nil, nil)
	err := svc.Register(context.Background(), domain.RegisterRequest{
		Name: "Jane", Email: "jane@example.com", Password: "password123",
	})

	require.NoError(t, err)
	otpSvc.AssertExpectations(t)
}

// --- VerifyRegistration ---

func TestVerifyRegistration_CreatesUser(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").Return(nil, domain.ErrNotFound)
	var created *domain.User
	us.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.User)
	}).Return(nil)
	otpSvc := &mockOTPService{}
	otpSvc.On("Verify", mock.Anything, "jane@example.com", "1234").Return(nil)

	svc := newService(otpSvc, us, nil, nil, nil, nil)
	u, err := svc.VerifyRegistration(context.Background(), domain.VerifyRegistrationRequest{
		Name: "Jane", Email: "jane@example.com", Password: "password123", OTP: "1234",
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, created, u)
	assert.NotEmpty(t, u.UserID)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.Equal(t, "local", u.AuthProvider)
	assert.Equal(t, 1, u.Enable)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123")))
}

func TestVerifyRegistration_BadCode(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").Return(nil, domain.ErrNotFound)
	otpSvc := &mockOTPService{}
	wrongCode := errors.New("incorrect OTP, you have 2 attempt(s) left")
	otpSvc.On("Verify", mock.Anything, "jane@example.com", "0000").Return(wrongCode)

	svc := newService(otpSvc, us, nil, nil, nil, nil)
	_, err := svc.VerifyRegistration(context.Background(), domain.VerifyRegistrationRequest{
		Name: "Jane", Email: "jane@example.com", Password: "password123", OTP: "0000",
	})

	require.ErrorIs(t, err, wrongCode)
	us.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestVerifyRegistration_DuplicateEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").Return(&domain.User{UserID: "u1"}, nil)
	otpSvc := &mockOTPService{}

	svc := newService(otpSvc, us, nil, nil, nil, nil)
	_, err := svc.VerifyRegistration(context.Background(), domain.VerifyRegistrationRequest{
		Name: "Jane", Email: "jane@example.com", Password: "password123", OTP: "1234",
	})

	require.ErrorIs(t, err, domain.ErrConflict)
	otpSvc.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

// --- ForgotPassword / ResetPassword ---

func TestForgotPassword_UnknownEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "x@x.com").Return(nil, domain.ErrNotFound)

	svc := newService(nil, us, nil, nil, nil, nil)
	err := svc.ForgotPassword(context.Background(), ForgotPasswordRequest{Email: "x@x.com"})

	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestForgotPassword_SendsResetCode(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").
		Return(&domain.User{UserID: "u1", Name: "Jane", Email: "jane@example.com"}, nil)
	otpSvc := &mockOTPService{}
	otpSvc.On("Request", mock.Anything, "Jane", "jane@example.com", "forgot-password").Return(nil)

	svc := newService(otpSvc, us, nil, nil, nil, nil)
	require.NoError(t, svc.ForgotPassword(context.Background(), ForgotPasswordRequest{Email: "jane@example.com"}))
	otpSvc.AssertExpectations(t)
}

func TestResetPassword_RejectsSamePassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	require.NoError(t, err)
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").
		Return(&domain.User{UserID: "u1", Email: "jane@example.com", PasswordHash: string(hash)}, nil)

	svc := newService(nil, us, nil, nil, nil, nil)
	err = svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Email: "jane@example.com", NewPassword: "password123",
	})

	require.ErrorIs(t, err, domain.ErrBadRequest)
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestResetPassword_UpdatesHashAndNotifies(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("oldpassword1"), bcrypt.DefaultCost)
	require.NoError(t, err)
	phone := "+15550123"
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").
		Return(&domain.User{UserID: "u1", Email: "jane@example.com", Phone: &phone, PasswordHash: string(hash)}, nil)
	var updates map[string]interface{}
	us.On("Update", mock.Anything, "u1", mock.Anything).Run(func(args mock.Arguments) {
		updates = args.Get(2).(map[string]interface{})
	}).Return(nil)
	sms := &mockSMSSender{}
	sms.On("SendSMS", mock.Anything, phone, mock.AnythingOfType("string")).Return(nil)

	svc := newService(nil, us, nil, nil, nil, sms)
	err = svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Email: "jane@example.com", NewPassword: "newpassword1",
	})

	require.NoError(t, err)
	require.Contains(t, updates, "password_hash")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updates["password_hash"].(string)), []byte("newpassword1")))
	sms.AssertExpectations(t)
}

func TestResetPassword_SMSFailureDoesNotFailReset(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("oldpassword1"), bcrypt.DefaultCost)
	require.NoError(t, err)
	phone := "+15550123"
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").
		Return(&domain.User{UserID: "u1", Email: "jane@example.com", Phone: &phone, PasswordHash: string(hash)}, nil)
	us.On("Update", mock.Anything, "u1", mock.Anything).Return(nil)
	sms := &mockSMSSender{}
	sms.On("SendSMS", mock.Anything, phone, mock.AnythingOfType("string")).Return(errors.New("sns unavailable"))

	svc := newService(nil, us, nil, nil, nil, sms)
	require.NoError(t, svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Email: "jane@example.com", NewPassword: "newpassword1",
	}))
}

// --- LoginWithGoogle ---

func TestLoginWithGoogle_NotConfigured(t *testing.T) {
	svc := newService(nil, nil, nil, nil, nil, nil)
	_, err := svc.LoginWithGoogle(context.Background(), GoogleLoginRequest{IDToken: "tok"})
	require.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestLoginWithGoogle_UnverifiedEmail(t *testing.T) {
	gv := &mockGoogleVerifier{}
	gv.On("Verify", mock.Anything, "tok").
		Return(&googleinfra.Payload{Sub: "g1", Email: "jane@example.com", EmailVerified: false}, nil)

	svc := newService(nil, nil, nil, gv, nil, nil)
	_, err := svc.LoginWithGoogle(context.Background(), GoogleLoginRequest{IDToken: "tok"})
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLoginWithGoogle_CreatesUserOnFirstLogin(t *testing.T) {
	gv := &mockGoogleVerifier{}
	gv.On("Verify", mock.Anything, "tok").
		Return(&googleinfra.Payload{Sub: "g1", Email: "jane@example.com", EmailVerified: true, Name: "Jane"}, nil)
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").Return(nil, domain.ErrNotFound)
	var created *domain.User
	us.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).Run(func(args mock.Arguments) {
		created = args.Get(1).(*domain.User)
	}).Return(nil)
	ss := &mockSessionStore{}
	ss.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	jwt := &mockJWTSigner{}
	jwt.On("Sign", mock.Anything, domain.RoleUser, mock.Anything).Return("bearer-token", nil)

	svc := newService(nil, us, ss, gv, jwt, nil)
	result, err := svc.LoginWithGoogle(context.Background(), GoogleLoginRequest{IDToken: "tok"})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "google", created.AuthProvider)
	assert.Equal(t, "g1", created.GoogleSub)
	assert.Equal(t, "bearer-token", result.Bearer)
	assert.NotEmpty(t, result.RefreshToken)
	require.NotNil(t, result.Session)
	assert.Equal(t, created.UserID, result.Session.UserID)
	assert.Equal(t, created, result.Session.User)
}

func TestLoginWithGoogle_ExistingUser(t *testing.T) {
	gv := &mockGoogleVerifier{}
	gv.On("Verify", mock.Anything, "tok").
		Return(&googleinfra.Payload{Sub: "g1", Email: "jane@example.com", EmailVerified: true, Name: "Jane"}, nil)
	existing := &domain.User{UserID: "u1", Email: "jane@example.com", Role: domain.RoleUser}
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "jane@example.com").Return(existing, nil)
	ss := &mockSessionStore{}
	ss.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	jwt := &mockJWTSigner{}
	jwt.On("Sign", "u1", domain.RoleUser, mock.Anything).Return("bearer-token", nil)

	svc := newService(nil, us, ss, gv, jwt, nil)
	result, err := svc.LoginWithGoogle(context.Background(), GoogleLoginRequest{IDToken: "tok"})

	require.NoError(t, err)
	us.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	assert.Equal(t, "u1", result.Session.UserID)
}
