package domain

import "time"

// Course offered by a tenant and advertised by the bot
type Course struct {
	ID          int64     `gorm:"primaryKey" json:"id,string"`
	TenantID    int64     `gorm:"index" json:"tenant_id,string"`
	Name        string    `gorm:"size:200;index" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Price       float64   `json:"price"`
	Duration    string    `gorm:"size:100" json:"duration"`
	Modality    string    `gorm:"size:50" json:"modality"` // online, presencial, hibrido
	Active      bool      `gorm:"default:true" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Course) TableName() string {
	return "course"
}

// FaqEntry curated question/answer pair
type FaqEntry struct {
	ID        int64     `gorm:"primaryKey" json:"id,string"`
	TenantID  int64     `gorm:"index" json:"tenant_id,string"`
	Question  string    `gorm:"type:text" json:"question"`
	Answer    string    `gorm:"type:text" json:"answer"`
	Category  string    `gorm:"size:100" json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (FaqEntry) TableName() string {
	return "faq_entry"
}

// FaqQuestion customer question log, aggregated by frequency
type FaqQuestion struct {
	ID        int64     `gorm:"primaryKey" json:"id,string"`
	TenantID  int64     `gorm:"index;uniqueIndex:idx_faq_question" json:"tenant_id,string"`
	Question  string    `gorm:"size:500;uniqueIndex:idx_faq_question" json:"question"`
	Hits      int64     `json:"hits"`
	Answered  bool      `json:"answered"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (FaqQuestion) TableName() string {
	return "faq_question"
}

type KnowledgeEntry struct {
	ID        int64     `gorm:"primaryKey" json:"id,string"`
	TenantID  int64     `gorm:"index" json:"tenant_id,string"`
	Title     string    `gorm:"size:200" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	Tags      string    `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (KnowledgeEntry) TableName() string {
	return "knowledge_entry"
}

// Keyword triggers a canned response; Keyword is stored normalized
type Keyword struct {
	ID        int64     `gorm:"primaryKey" json:"id,string"`
	TenantID  int64     `gorm:"uniqueIndex:idx_keyword" json:"tenant_id,string"`
	Keyword   string    `gorm:"size:100;uniqueIndex:idx_keyword" json:"keyword"`
	Response  string    `gorm:"type:text" json:"response"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Keyword) TableName() string {
	return "keyword"
}
