package repository

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrNotTenantOwned  = errors.New("model has no TenantID field")
	ErrMissingTenantID = errors.New("tenant id is required")
	ErrAlreadyClosed   = errors.New("conversation already closed")
)

// TenantDB is a gorm handle bound to one tenant. Every query it builds is
// filtered by tenant_id and every row it creates is stamped with it.
type TenantDB struct {
	db       *gorm.DB
	tenantID int64
}

// ForTenant binds db to tenantID. The id must come from verified session
// claims, never from request input.
func ForTenant(db *gorm.DB, tenantID int64) *TenantDB {
	return &TenantDB{db: db, tenantID: tenantID}
}

func (t *TenantDB) TenantID() int64 {
	return t.tenantID
}

func (t *TenantDB) WithContext(ctx context.Context) *TenantDB {
	return &TenantDB{db: t.db.WithContext(ctx), tenantID: t.tenantID}
}

// Model starts a query on m filtered by the bound tenant
func (t *TenantDB) Model(m interface{}) *gorm.DB {
	return t.db.Model(m).Where("tenant_id = ?", t.tenantID)
}

// Create stamps TenantID on m (a pointer to a model or a slice of models)
// and inserts it.
func (t *TenantDB) Create(m interface{}) error {
	if t.tenantID == 0 {
		return ErrMissingTenantID
	}
	if err := stampTenant(m, t.tenantID); err != nil {
		return err
	}
	return t.db.Create(m).Error
}

// Delete removes rows of m matching the conditions inside the tenant
func (t *TenantDB) Delete(m interface{}, query interface{}, args ...interface{}) (int64, error) {
	res := t.db.Where("tenant_id = ?", t.tenantID).Where(query, args...).Delete(m)
	return res.RowsAffected, res.Error
}

// First loads one row inside the tenant, mapping a miss to ErrNotFound
func (t *TenantDB) First(dst interface{}, query interface{}, args ...interface{}) error {
	err := t.db.Where("tenant_id = ?", t.tenantID).Where(query, args...).First(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func stampTenant(m interface{}, tenantID int64) error {
	v := reflect.ValueOf(m)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		return setTenantField(v, tenantID)
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			item := v.Index(i)
			for item.Kind() == reflect.Ptr {
				item = item.Elem()
			}
			if err := setTenantField(item, tenantID); err != nil {
				return err
			}
		}
		return nil
	}
	return ErrNotTenantOwned
}

func setTenantField(v reflect.Value, tenantID int64) error {
	if v.Kind() != reflect.Struct {
		return ErrNotTenantOwned
	}
	f := v.FieldByName("TenantID")
	if !f.IsValid() || !f.CanSet() || f.Kind() != reflect.Int64 {
		return ErrNotTenantOwned
	}
	f.SetInt(tenantID)
	return nil
}

// SortClause builds an ORDER BY clause from whitelisted columns only
func SortClause(field, order string, allowed map[string]string, fallback string) string {
	col, ok := allowed[strings.TrimSpace(field)]
	if !ok || col == "" {
		col = fallback
	}
	order = strings.ToUpper(strings.TrimSpace(order))
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return col + " " + order
}
