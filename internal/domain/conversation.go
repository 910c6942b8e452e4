package domain

import "time"

const (
	ConversationOpen   = "open"
	ConversationClosed = "closed"
)

// Conversation a customer chat on one instance
type Conversation struct {
	ID              int64      `json:"id,string" gorm:"primaryKey"`
	TenantID        int64      `json:"tenant_id,string" gorm:"index"`
	InstanceID      int64      `json:"instance_id,string" gorm:"index"`
	ChatID          string     `json:"chat_id" gorm:"size:128;index"` // remote jid
	ContactName     string     `json:"contact_name"`
	ContactPhone    string     `json:"contact_phone"`
	Status          string     `json:"status" gorm:"size:20;index"`
	AssignedAgentID *int64     `json:"assigned_agent_id,string"`
	UnreadCount     int        `json:"unread_count" gorm:"default:0"`
	ClosedAt        *time.Time `json:"closed_at"`
	ClosedBy        *int64     `json:"closed_by,string"`
	CreatedAt       time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversation"
}

// Message is written once per send and never mutated afterwards
type Message struct {
	ID             int64     `json:"id,string" gorm:"primaryKey"`
	TenantID       int64     `json:"tenant_id,string" gorm:"index"`
	ConversationID int64     `json:"conversation_id,string" gorm:"index"`
	ExternalID     *string   `json:"external_id" gorm:"size:128"` // transport id, nil for internal notes
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Type           string    `json:"type" gorm:"size:20"`
	Content        string    `json:"content" gorm:"type:text"`
	MediaID        *string   `json:"media_id"`
	ReplyTo        *string   `json:"reply_to"`
	Sent           bool      `json:"sent"`
	Delivered      bool      `json:"delivered"`
	Read           bool      `json:"read"`
	IsFromMe       bool      `json:"is_from_me"`
	IsInternal     bool      `json:"is_internal"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
}

func (Message) TableName() string {
	return "message"
}

// Rating a customer satisfaction score for a closed conversation
type Rating struct {
	ID             int64      `json:"id,string" gorm:"primaryKey"`
	TenantID       int64      `json:"tenant_id,string" gorm:"index"`
	ConversationID int64      `json:"conversation_id,string" gorm:"index"`
	AgentID        *int64     `json:"agent_id,string"`
	Token          string     `json:"-" gorm:"size:64;uniqueIndex"`
	Score          int        `json:"score"` // 0 until answered
	Comment        string     `json:"comment"`
	AnsweredAt     *time.Time `json:"answered_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
}

func (Rating) TableName() string {
	return "rating"
}
