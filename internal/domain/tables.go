package domain

var Tables = []interface{}{
	// System
	&Tenant{},
	&SysUser{},
	&SysOpr{},
	&AuditLog{},
	&BotConfig{},
	// Catalog
	&Course{},
	&FaqEntry{},
	&FaqQuestion{},
	&KnowledgeEntry{},
	&Keyword{},
	// Chat
	&Instance{},
	&Conversation{},
	&Message{},
	&Rating{},
	// CRM
	&Lead{},
	&Appointment{},
	&PaymentEvent{},
}
