// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wadesk/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory sqlite database private to the test,
// seeded with the system tenant.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(domain.Tables...))
	CreateTenant(t, db, domain.SystemTenantID, "system")
	return db
}

// CreateTenant inserts a tenant row
func CreateTenant(t testing.TB, db *gorm.DB, id int64, slug string) *domain.Tenant {
	t.Helper()
	tenant := &domain.Tenant{
		ID:        id,
		Name:      slug,
		Slug:      slug,
		Status:    "enabled",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}
