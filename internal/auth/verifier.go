package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/talkincode/wadesk/internal/app"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrInvalidCredentials covers unknown users, wrong passwords and
	// disabled accounts alike
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidCode        = errors.New("invalid two-factor code")
	ErrTwoFactorState     = errors.New("two-factor is not in the expected state")
)

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Code     string `json:"code"`
	RemoteIP string `json:"-"`
}

// LoginResult either carries a token or asks for the second factor
type LoginResult struct {
	Token     string  `json:"token,omitempty"`
	Challenge bool    `json:"requires2FA,omitempty"`
	UserID    int64   `json:"userId,string"`
	Claims    *Claims `json:"user,omitempty"`
}

// dummyHash is compared against when no source knows the username, so
// unknown and known users cost the same bcrypt round.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("wadesk-unknown-user"), bcrypt.DefaultCost)

func compareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// Verifier authenticates operators against the ordered credential sources
type Verifier struct {
	secret   string
	sources  []CredentialSource
	services *app.Services
	now      func() time.Time
	// unknownUser burns the password check for usernames no source knows
	unknownUser func(password string)
}

func NewVerifier(secret string, services *app.Services, sources ...CredentialSource) *Verifier {
	if services == nil {
		services = &app.Services{}
	}
	return &Verifier{secret: secret, sources: sources, services: services, now: time.Now, unknownUser: compareDummy}
}

func (v *Verifier) lookup(ctx context.Context, username string) (CredentialSource, *Account, error) {
	for _, src := range v.sources {
		acct, err := src.Lookup(ctx, username)
		if errors.Is(err, ErrUnknownUser) {
			continue
		}
		if err != nil {
			return nil, nil, pkgerrors.Wrapf(err, "lookup %s source", src.Name())
		}
		return src, acct, nil
	}
	return nil, nil, ErrUnknownUser
}

func (v *Verifier) loadByID(ctx context.Context, id int64) (CredentialSource, *Account, error) {
	for _, src := range v.sources {
		acct, err := src.LoadByID(ctx, id)
		if errors.Is(err, ErrUnknownUser) {
			continue
		}
		if err != nil {
			return nil, nil, pkgerrors.Wrapf(err, "load %s source", src.Name())
		}
		return src, acct, nil
	}
	return nil, nil, ErrUnknownUser
}

func (v *Verifier) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}

	src, acct, err := v.lookup(ctx, in.Username)
	if errors.Is(err, ErrUnknownUser) {
		v.unknownUser(in.Password)
		zap.L().Info("login rejected", zap.String("username", in.Username), zap.String("reason", "unknown user"), zap.String("ip", in.RemoteIP))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !src.CheckPassword(acct, in.Password) || !acct.Enabled {
		zap.L().Info("login rejected",
			zap.String("username", in.Username),
			zap.String("source", src.Name()),
			zap.Bool("enabled", acct.Enabled),
			zap.String("ip", in.RemoteIP))
		return nil, ErrInvalidCredentials
	}

	if acct.TwoFactorEnabled {
		if in.Code == "" {
			return &LoginResult{Challenge: true, UserID: acct.ID}, nil
		}
		if v.services.TwoFactor == nil {
			return nil, app.ErrServiceUnavailable
		}
		if !v.services.TwoFactor.Validate(in.Code, acct.TwoFactorSecret) {
			zap.L().Info("login rejected", zap.String("username", in.Username), zap.String("reason", "bad 2fa code"))
			return nil, ErrInvalidCode
		}
	}

	now := v.now()
	if err := src.TouchLogin(ctx, acct.ID, now); err != nil {
		zap.L().Warn("update last login failed", zap.Int64("user_id", acct.ID), zap.Error(err))
	}
	v.services.RecordAudit(acct.TenantID, acct.ID, acct.Username, "login", in.RemoteIP, src.Name())

	claims := Claims{
		UserID:           acct.ID,
		TenantID:         acct.TenantID,
		Username:         acct.Username,
		Role:             acct.Role,
		AllowedInstances: acct.AllowedInstances,
	}
	token, err := IssueToken(v.secret, claims, now)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "sign token")
	}
	parsed, _ := ParseToken(v.secret, token)
	zap.L().Info("login ok",
		zap.String("username", acct.Username),
		zap.Int64("tenant_id", acct.TenantID),
		zap.String("source", src.Name()))
	return &LoginResult{Token: token, UserID: acct.ID, Claims: parsed}, nil
}

// TwoFactorStatus reports whether the account has a confirmed second factor
func (v *Verifier) TwoFactorStatus(ctx context.Context, userID int64) (bool, error) {
	_, acct, err := v.loadByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return acct.TwoFactorEnabled, nil
}

// SetupTwoFactor issues a pending secret; it only takes effect after
// EnableTwoFactor confirms a code generated from it.
func (v *Verifier) SetupTwoFactor(ctx context.Context, userID int64) (secret string, url string, err error) {
	if v.services.TwoFactor == nil {
		return "", "", app.ErrServiceUnavailable
	}
	src, acct, err := v.loadByID(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if acct.TwoFactorEnabled {
		return "", "", ErrTwoFactorState
	}
	secret, url, err = v.services.TwoFactor.GenerateSecret(acct.Username)
	if err != nil {
		return "", "", pkgerrors.Wrap(err, "generate secret")
	}
	if err := src.SaveTwoFactor(ctx, acct.ID, false, "", secret); err != nil {
		return "", "", pkgerrors.Wrap(err, "store pending secret")
	}
	return secret, url, nil
}

func (v *Verifier) EnableTwoFactor(ctx context.Context, userID int64, code, ip string) error {
	if v.services.TwoFactor == nil {
		return app.ErrServiceUnavailable
	}
	src, acct, err := v.loadByID(ctx, userID)
	if err != nil {
		return err
	}
	if acct.TwoFactorEnabled || acct.TwoFactorPending == "" {
		return ErrTwoFactorState
	}
	if !v.services.TwoFactor.Validate(code, acct.TwoFactorPending) {
		return ErrInvalidCode
	}
	if err := src.SaveTwoFactor(ctx, acct.ID, true, acct.TwoFactorPending, ""); err != nil {
		return pkgerrors.Wrap(err, "enable two-factor")
	}
	v.services.RecordAudit(acct.TenantID, acct.ID, acct.Username, "2fa_enable", ip, "")
	return nil
}

func (v *Verifier) DisableTwoFactor(ctx context.Context, userID int64, code, ip string) error {
	if v.services.TwoFactor == nil {
		return app.ErrServiceUnavailable
	}
	src, acct, err := v.loadByID(ctx, userID)
	if err != nil {
		return err
	}
	if !acct.TwoFactorEnabled {
		return ErrTwoFactorState
	}
	if !v.services.TwoFactor.Validate(code, acct.TwoFactorSecret) {
		return ErrInvalidCode
	}
	if err := src.SaveTwoFactor(ctx, acct.ID, false, "", ""); err != nil {
		return pkgerrors.Wrap(err, "disable two-factor")
	}
	v.services.RecordAudit(acct.TenantID, acct.ID, acct.Username, "2fa_disable", ip, "")
	return nil
}
