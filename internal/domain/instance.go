package domain

import "time"

// Instance is one WhatsApp number connected for a tenant; it is also the
// unit of real-time broadcast grouping.
type Instance struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	TenantID  int64     `json:"tenant_id,string" gorm:"index"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Jid       string    `json:"jid"`    // populated after pairing
	Status    string    `json:"status"` // created, provisioned, connected, provision_failed
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Instance) TableName() string {
	return "instance"
}
