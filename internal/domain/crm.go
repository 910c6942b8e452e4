package domain

import "time"

type Lead struct {
	ID             int64     `gorm:"primaryKey" json:"id,string"`
	TenantID       int64     `gorm:"index" json:"tenant_id,string"`
	ConversationID *int64    `json:"conversation_id,string"`
	Name           string    `json:"name"`
	Phone          string    `gorm:"size:50;index" json:"phone"`
	Email          string    `json:"email"`
	CourseInterest string    `json:"course_interest"`
	Status         string    `gorm:"size:30" json:"status"` // new, contacted, enrolled, lost
	Source         string    `gorm:"size:50" json:"source"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Lead) TableName() string {
	return "lead"
}

type Appointment struct {
	ID          int64     `gorm:"primaryKey" json:"id,string"`
	TenantID    int64     `gorm:"index" json:"tenant_id,string"`
	LeadID      *int64    `json:"lead_id,string"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	ScheduledAt time.Time `gorm:"index" json:"scheduled_at"`
	Status      string    `gorm:"size:30" json:"status"` // scheduled, done, cancelled
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointment"
}

// PaymentEvent normalized provider callback, unique per provider/external id/type
type PaymentEvent struct {
	ID         int64     `gorm:"primaryKey" json:"id,string"`
	TenantID   int64     `gorm:"index" json:"tenant_id,string"`
	Provider   string    `gorm:"size:30;uniqueIndex:idx_payment_event" json:"provider"`
	ExternalID string    `gorm:"size:128;uniqueIndex:idx_payment_event" json:"external_id"`
	Type       string    `gorm:"size:64;uniqueIndex:idx_payment_event" json:"type"`
	Status     string    `gorm:"size:30" json:"status"`
	Amount     float64   `json:"amount"`
	Reference  string    `gorm:"size:128" json:"reference"`
	Payload    string    `gorm:"type:text" json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

func (PaymentEvent) TableName() string {
	return "payment_event"
}
