package domain

import (
	"time"
)

// SystemTenantID owns records that predate multi-tenancy
const SystemTenantID int64 = 1

const (
	RoleSuper = "super"
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

// Tenant an isolated customer organization
type Tenant struct {
	ID         int64     `json:"id,string" form:"id"`
	Name       string    `json:"name" form:"name"`
	Slug       string    `gorm:"uniqueIndex;size:100" json:"slug" form:"slug"`
	LogoPath   string    `json:"logo_path"`
	Status     string    `gorm:"size:20" json:"status"`
	Plan       string    `gorm:"size:50" json:"plan"`
	PlanStatus string    `gorm:"size:30" json:"plan_status"` // updated by payment events
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Tenant) TableName() string {
	return "tenant"
}

// SysUser is a tenant-bound panel account (admins and agents)
type SysUser struct {
	ID               int64     `json:"id,string" form:"id"`
	TenantID         int64     `gorm:"index" json:"tenant_id,string"`
	Username         string    `gorm:"uniqueIndex;size:100" json:"username"`
	Password         string    `json:"-"` // bcrypt
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             string    `gorm:"size:20" json:"role"`
	AllowedInstances string    `json:"allowed_instances"` // comma separated instance ids, empty = all
	Status           string    `gorm:"size:20" json:"status"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	TwoFactorSecret  string    `json:"-"`
	TwoFactorPending string    `json:"-"` // secret issued by setup, not yet confirmed
	LastLogin        time.Time `json:"last_login"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysUser) TableName() string {
	return "sys_user"
}

// SysOpr legacy operator accounts, authenticated as a fallback and
// bound to the system tenant
type SysOpr struct {
	ID               int64     `json:"id,string" form:"id"`
	Realname         string    `json:"realname" form:"realname"`
	Mobile           string    `json:"mobile" form:"mobile"`
	Email            string    `json:"email" form:"email"`
	Username         string    `json:"username" form:"username"`
	Password         string    `json:"-" form:"password"`
	Level            string    `json:"level" form:"level"`
	Status           string    `json:"status" form:"status"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	TwoFactorSecret  string    `json:"-"`
	TwoFactorPending string    `json:"-"`
	Remark           string    `json:"remark" form:"remark"`
	LastLogin        time.Time `json:"last_login" form:"last_login"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysOpr) TableName() string {
	return "sys_opr"
}

// AuditLog operator action trail
type AuditLog struct {
	ID        int64     `json:"id,string"`
	TenantID  int64     `gorm:"index" json:"tenant_id,string"`
	UserID    int64     `gorm:"index" json:"user_id,string"`
	Username  string    `json:"username"`
	Action    string    `gorm:"size:64;index" json:"action"`
	IP        string    `gorm:"size:64" json:"ip"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName Specify table name
func (AuditLog) TableName() string {
	return "audit_log"
}

// BotConfig per-tenant key/value bot settings
type BotConfig struct {
	ID        int64     `json:"id,string"`
	TenantID  int64     `gorm:"uniqueIndex:idx_bot_config_key" json:"tenant_id,string"`
	Name      string    `gorm:"size:100;uniqueIndex:idx_bot_config_key" json:"name"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (BotConfig) TableName() string {
	return "bot_config"
}
