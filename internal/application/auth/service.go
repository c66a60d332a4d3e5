package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/altrivo/auth-service/internal/application/otp"
	"github.com/altrivo/auth-service/internal/domain"
	googleinfra "github.com/altrivo/auth-service/internal/infrastructure/google"
	"github.com/altrivo/auth-service/internal/infrastructure/smtp"
	"github.com/altrivo/auth-service/internal/pkg/id"
	pkgtoken "github.com/altrivo/auth-service/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

const fieldPasswordHash = "password_hash"

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=4,numeric"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

type LoginResult struct {
	Bearer       string
	RefreshToken string
	Session      *domain.Session
}

// Service drives the OTP-gated registration and password recovery flows, plus
// Google sign-in. Credential login lives in the session service.
type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) error
	VerifyRegistration(ctx context.Context, req domain.VerifyRegistrationRequest) (*domain.User, error)
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error
	VerifyForgotPassword(ctx context.Context, req VerifyOTPRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	LoginWithGoogle(ctx context.Context, req GoogleLoginRequest) (*LoginResult, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*googleinfra.Payload, error)
}

type jwtSigner interface {
	Sign(userID, role, sessionID string) (string, error)
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	otpSvc          otp.Service
	userRepo        userStore
	sessionRepo     sessionStore
	google          googleVerifier
	jwtProvider     jwtSigner
	smsSender       smsSender
	refreshTokenDur time.Duration
}

type ServiceDeps struct {
	OTPService      otp.Service
	UserRepo        userStore
	SessionRepo     sessionStore
	GoogleVerifier  googleVerifier
	JWTProvider     jwtSigner
	SMSSender       smsSender
	RefreshTokenDur time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		otpSvc:          deps.OTPService,
		userRepo:        deps.UserRepo,
		sessionRepo:     deps.SessionRepo,
		google:          deps.GoogleVerifier,
		jwtProvider:     deps.JWTProvider,
		smsSender:       deps.SMSSender,
		refreshTokenDur: deps.RefreshTokenDur,
	}
}

// Register starts the signup flow: the account is not created until the
// emailed code comes back through VerifyRegistration.
func (s *service) Register(ctx context.Context, req domain.RegisterRequest) error {
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return fmt.Errorf("user already exists with this email: %w", domain.ErrConflict)
	}
	return s.otpSvc.Request(ctx, req.Name, req.Email, smtp.TemplateUserActivation)
}

func (s *service) VerifyRegistration(ctx context.Context, req domain.VerifyRegistrationRequest) (*domain.User, error) {
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("user already exists with this email: %w", domain.ErrConflict)
	}
	if err := s.otpSvc.Verify(ctx, req.Email, req.OTP); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		AuthProvider: "local",
		Enable:       1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	u, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("no user found with this email: %w", domain.ErrNotFound)
	}
	return s.otpSvc.Request(ctx, u.Name, u.Email, smtp.TemplateForgotPassword)
}

func (s *service) VerifyForgotPassword(ctx context.Context, req VerifyOTPRequest) error {
	return s.otpSvc.Verify(ctx, req.Email, req.OTP)
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	u, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("no user found with this email: %w", domain.ErrNotFound)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.NewPassword)) == nil {
		return fmt.Errorf("new password cannot be the same as the old password: %w", domain.ErrBadRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{fieldPasswordHash: string(hash)}); err != nil {
		return err
	}
	// Best-effort security notice; the reset itself already succeeded.
	if s.smsSender != nil && u.Phone != nil {
		if err := s.smsSender.SendSMS(ctx, *u.Phone, "Your Altrivo password was just changed. If this wasn't you, contact support."); err != nil {
			slog.Warn("failed to send password-change SMS notice", "user_id", u.UserID, "err", err)
		}
	}
	return nil
}

func (s *service) LoginWithGoogle(ctx context.Context, req GoogleLoginRequest) (*LoginResult, error) {
	if s.google == nil {
		return nil, fmt.Errorf("google sign-in is not configured: %w", domain.ErrBadRequest)
	}
	payload, err := s.google.Verify(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}
	if !payload.EmailVerified {
		return nil, fmt.Errorf("google account email not verified: %w", domain.ErrUnauthorized)
	}

	u, err := s.userRepo.GetByEmail(ctx, payload.Email)
	if errors.Is(err, domain.ErrNotFound) {
		now := time.Now().UTC()
		u = &domain.User{
			UserID:       id.New(),
			Name:         payload.Name,
			Email:        payload.Email,
			Role:         domain.RoleUser,
			AuthProvider: "google",
			GoogleSub:    payload.Sub,
			Enable:       1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.userRepo.Put(ctx, u); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           u.UserID,
		Enable:           true,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.refreshTokenDur).Unix(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return &LoginResult{Bearer: bearer, RefreshToken: refreshToken, Session: sess}, nil
}
