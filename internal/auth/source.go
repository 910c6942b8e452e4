package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/pkg/common"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrUnknownUser is returned by a source that has no such account
var ErrUnknownUser = errors.New("unknown user")

// Account is a credential record as seen by the verifier
type Account struct {
	ID               int64
	TenantID         int64
	Username         string
	Name             string
	Role             string
	AllowedInstances []int64
	Enabled          bool
	TwoFactorEnabled bool
	TwoFactorSecret  string
	TwoFactorPending string

	hash string
}

// CredentialSource is one place accounts live. The verifier asks sources
// in order and the first that knows the username owns the login.
type CredentialSource interface {
	Name() string
	Lookup(ctx context.Context, username string) (*Account, error)
	LoadByID(ctx context.Context, id int64) (*Account, error)
	CheckPassword(acct *Account, password string) bool
	TouchLogin(ctx context.Context, id int64, at time.Time) error
	SaveTwoFactor(ctx context.Context, id int64, enabled bool, secret, pending string) error
}

// UserSource tenant bound panel users with bcrypt hashes
type UserSource struct {
	DB *gorm.DB
}

func (s *UserSource) Name() string { return "user" }

func (s *UserSource) Lookup(ctx context.Context, username string) (*Account, error) {
	return s.load(ctx, "username = ?", username)
}

func (s *UserSource) LoadByID(ctx context.Context, id int64) (*Account, error) {
	return s.load(ctx, "id = ?", id)
}

func (s *UserSource) load(ctx context.Context, query string, arg interface{}) (*Account, error) {
	var u domain.SysUser
	err := s.DB.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	tenantID := u.TenantID
	if tenantID == 0 {
		tenantID = domain.SystemTenantID
	}
	return &Account{
		ID:               u.ID,
		TenantID:         tenantID,
		Username:         u.Username,
		Name:             u.Name,
		Role:             u.Role,
		AllowedInstances: common.SplitIDs(u.AllowedInstances),
		Enabled:          strings.EqualFold(u.Status, common.ENABLED),
		TwoFactorEnabled: u.TwoFactorEnabled,
		TwoFactorSecret:  u.TwoFactorSecret,
		TwoFactorPending: u.TwoFactorPending,
		hash:             u.Password,
	}, nil
}

func (s *UserSource) CheckPassword(acct *Account, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(acct.hash), []byte(password)) == nil
}

func (s *UserSource) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	return s.DB.WithContext(ctx).Model(&domain.SysUser{}).Where("id = ?", id).Update("last_login", at).Error
}

func (s *UserSource) SaveTwoFactor(ctx context.Context, id int64, enabled bool, secret, pending string) error {
	return s.DB.WithContext(ctx).Model(&domain.SysUser{}).Where("id = ?", id).Updates(map[string]interface{}{
		"two_factor_enabled": enabled,
		"two_factor_secret":  secret,
		"two_factor_pending": pending,
		"updated_at":         time.Now(),
	}).Error
}

// LegacySource operators from the pre-tenant era. They hash with
// sha256+salt and always belong to the system tenant.
type LegacySource struct {
	DB   *gorm.DB
	Salt string
}

func (s *LegacySource) Name() string { return "legacy" }

func (s *LegacySource) Lookup(ctx context.Context, username string) (*Account, error) {
	return s.load(ctx, "username = ?", username)
}

func (s *LegacySource) LoadByID(ctx context.Context, id int64) (*Account, error) {
	return s.load(ctx, "id = ?", id)
}

func (s *LegacySource) load(ctx context.Context, query string, arg interface{}) (*Account, error) {
	var opr domain.SysOpr
	err := s.DB.WithContext(ctx).Where(query, arg).First(&opr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	return &Account{
		ID:               opr.ID,
		TenantID:         domain.SystemTenantID,
		Username:         opr.Username,
		Name:             opr.Realname,
		Role:             legacyRole(opr.Level),
		Enabled:          strings.EqualFold(opr.Status, common.ENABLED),
		TwoFactorEnabled: opr.TwoFactorEnabled,
		TwoFactorSecret:  opr.TwoFactorSecret,
		TwoFactorPending: opr.TwoFactorPending,
		hash:             opr.Password,
	}, nil
}

func legacyRole(level string) string {
	switch strings.ToLower(level) {
	case "super":
		return domain.RoleSuper
	case "admin", "opr":
		return domain.RoleAdmin
	}
	return domain.RoleAgent
}

func (s *LegacySource) CheckPassword(acct *Account, password string) bool {
	salt := s.Salt
	if salt == "" {
		salt = common.GetSecretSalt()
	}
	return acct.hash != "" && common.Sha256HashWithSalt(password, salt) == acct.hash
}

func (s *LegacySource) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	return s.DB.WithContext(ctx).Model(&domain.SysOpr{}).Where("id = ?", id).Update("last_login", at).Error
}

func (s *LegacySource) SaveTwoFactor(ctx context.Context, id int64, enabled bool, secret, pending string) error {
	return s.DB.WithContext(ctx).Model(&domain.SysOpr{}).Where("id = ?", id).Updates(map[string]interface{}{
		"two_factor_enabled": enabled,
		"two_factor_secret":  secret,
		"two_factor_pending": pending,
		"updated_at":         time.Now(),
	}).Error
}

// DefaultSources is the standard lookup order
func DefaultSources(db *gorm.DB) []CredentialSource {
	return []CredentialSource{
		&UserSource{DB: db},
		&LegacySource{DB: db, Salt: common.GetSecretSalt()},
	}
}
