package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wadesk/internal/app"
	"github.com/talkincode/wadesk/internal/audit"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/testutil"
	"github.com/talkincode/wadesk/pkg/common"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type fakeTwoFactor struct {
	valid string
}

func (f *fakeTwoFactor) GenerateSecret(account string) (string, string, error) {
	return "PENDINGSECRET", "otpauth://totp/wadesk:" + account, nil
}

func (f *fakeTwoFactor) Validate(code, secret string) bool {
	return code == f.valid && secret != ""
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (f *fakeAudit) Record(e audit.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func createUser(t *testing.T, db *gorm.DB, u domain.SysUser, password string) domain.SysUser {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u.Password = string(hash)
	if u.ID == 0 {
		u.ID = common.UUIDint64()
	}
	if u.Status == "" {
		u.Status = common.ENABLED
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func newVerifier(db *gorm.DB, services *app.Services) *Verifier {
	return NewVerifier(testSecret, services, DefaultSources(db)...)
}

func TestLoginIssuesToken(t *testing.T) {
	db := testutil.NewDB(t)
	u := createUser(t, db, domain.SysUser{TenantID: 9, Username: "ana", Role: domain.RoleAgent, AllowedInstances: "4,5"}, "pw123")
	aud := &fakeAudit{}

	res, err := newVerifier(db, &app.Services{Audit: aud}).Login(context.Background(), LoginInput{Username: "ana", Password: "pw123", RemoteIP: "1.2.3.4"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.False(t, res.Challenge)

	claims, err := ParseToken(testSecret, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.EqualValues(t, 9, claims.TenantID)
	assert.Equal(t, []int64{4, 5}, claims.AllowedInstances)

	require.Len(t, aud.entries, 1)
	assert.Equal(t, "login", aud.entries[0].Action)
	assert.EqualValues(t, 9, aud.entries[0].TenantID)
	assert.Equal(t, "1.2.3.4", aud.entries[0].IP)
}

func TestLoginGenericFailures(t *testing.T) {
	db := testutil.NewDB(t)
	createUser(t, db, domain.SysUser{TenantID: 9, Username: "ana"}, "pw123")
	createUser(t, db, domain.SysUser{TenantID: 9, Username: "off", Status: common.DISABLED}, "pw123")
	v := newVerifier(db, nil)
	ctx := context.Background()

	_, err := v.Login(ctx, LoginInput{Username: "ana", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = v.Login(ctx, LoginInput{Username: "nobody", Password: "pw123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = v.Login(ctx, LoginInput{Username: "off", Password: "pw123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = v.Login(ctx, LoginInput{Username: "ana"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLoginLegacyOperator(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Create(&domain.SysOpr{
		ID:       common.UUIDint64(),
		Username: "old",
		Password: common.Sha256HashWithSalt("legacy", common.GetSecretSalt()),
		Level:    "super",
		Status:   common.ENABLED,
	}).Error)

	res, err := newVerifier(db, nil).Login(context.Background(), LoginInput{Username: "old", Password: "legacy"})
	require.NoError(t, err)
	assert.Equal(t, domain.SystemTenantID, res.Claims.TenantID)
	assert.Equal(t, domain.RoleSuper, res.Claims.Role)
}

func TestFirstSourceWins(t *testing.T) {
	db := testutil.NewDB(t)
	createUser(t, db, domain.SysUser{TenantID: 9, Username: "dup"}, "new-pass")
	require.NoError(t, db.Create(&domain.SysOpr{
		ID:       common.UUIDint64(),
		Username: "dup",
		Password: common.Sha256HashWithSalt("old-pass", common.GetSecretSalt()),
		Status:   common.ENABLED,
	}).Error)
	v := newVerifier(db, nil)

	_, err := v.Login(context.Background(), LoginInput{Username: "dup", Password: "old-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := v.Login(context.Background(), LoginInput{Username: "dup", Password: "new-pass"})
	require.NoError(t, err)
	assert.EqualValues(t, 9, res.Claims.TenantID)
}

func TestLoginTwoFactor(t *testing.T) {
	db := testutil.NewDB(t)
	u := createUser(t, db, domain.SysUser{TenantID: 9, Username: "ana", TwoFactorEnabled: true, TwoFactorSecret: "SECRET"}, "pw123")
	v := newVerifier(db, &app.Services{TwoFactor: &fakeTwoFactor{valid: "123456"}})
	ctx := context.Background()

	res, err := v.Login(ctx, LoginInput{Username: "ana", Password: "pw123"})
	require.NoError(t, err)
	assert.True(t, res.Challenge)
	assert.Equal(t, u.ID, res.UserID)
	assert.Empty(t, res.Token)

	_, err = v.Login(ctx, LoginInput{Username: "ana", Password: "pw123", Code: "000000"})
	assert.ErrorIs(t, err, ErrInvalidCode)

	res, err = v.Login(ctx, LoginInput{Username: "ana", Password: "pw123", Code: "123456"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	// no two-factor service configured
	_, err = newVerifier(db, nil).Login(ctx, LoginInput{Username: "ana", Password: "pw123", Code: "123456"})
	assert.ErrorIs(t, err, app.ErrServiceUnavailable)
}

func TestTwoFactorLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	u := createUser(t, db, domain.SysUser{TenantID: 9, Username: "ana"}, "pw123")
	v := newVerifier(db, &app.Services{TwoFactor: &fakeTwoFactor{valid: "111111"}})
	ctx := context.Background()

	assert.ErrorIs(t, v.EnableTwoFactor(ctx, u.ID, "111111", ""), ErrTwoFactorState)

	secret, url, err := v.SetupTwoFactor(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDINGSECRET", secret)
	assert.Contains(t, url, "ana")

	enabled, err := v.TwoFactorStatus(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, enabled)

	assert.ErrorIs(t, v.EnableTwoFactor(ctx, u.ID, "999999", ""), ErrInvalidCode)
	require.NoError(t, v.EnableTwoFactor(ctx, u.ID, "111111", ""))

	enabled, err = v.TwoFactorStatus(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, v.DisableTwoFactor(ctx, u.ID, "111111", ""))
	enabled, _ = v.TwoFactorStatus(ctx, u.ID)
	assert.False(t, enabled)
}

func TestTOTPService(t *testing.T) {
	svc := NewTOTPService("")
	secret, url, err := svc.GenerateSecret("ana@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Contains(t, url, "otpauth://totp/")
	assert.False(t, svc.Validate("", secret))
	assert.False(t, svc.Validate("000000", ""))
}

func TestLoginWithoutTenantUsesSystemTenant(t *testing.T) {
	db := testutil.NewDB(t)
	createUser(t, db, domain.SysUser{Username: "orphan", Role: domain.RoleAdmin}, "pw123")
	aud := &fakeAudit{}

	res, err := newVerifier(db, &app.Services{Audit: aud}).Login(context.Background(), LoginInput{Username: "orphan", Password: "pw123"})
	require.NoError(t, err)
	assert.Equal(t, domain.SystemTenantID, res.Claims.TenantID)

	claims, err := ParseToken(testSecret, res.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.SystemTenantID, claims.TenantID)

	require.Len(t, aud.entries, 1)
	assert.Equal(t, domain.SystemTenantID, aud.entries[0].TenantID)
}

func TestUnknownUserStillChecksPassword(t *testing.T) {
	db := testutil.NewDB(t)
	createUser(t, db, domain.SysUser{TenantID: 9, Username: "ana"}, "pw123")
	v := newVerifier(db, nil)
	var burned []string
	v.unknownUser = func(password string) { burned = append(burned, password) }

	_, err := v.Login(context.Background(), LoginInput{Username: "nobody", Password: "guess"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, []string{"guess"}, burned)

	_, err = v.Login(context.Background(), LoginInput{Username: "ana", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Len(t, burned, 1)
}

func TestDummyHashIsValidBcrypt(t *testing.T) {
	_, err := bcrypt.Cost(dummyHash)
	require.NoError(t, err)
}
