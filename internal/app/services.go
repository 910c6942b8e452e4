package app

import "errors"

// ErrServiceUnavailable is returned when an optional collaborator is not configured
var ErrServiceUnavailable = errors.New("service unavailable")

// Services is the set of optional collaborators. Any handle may be nil and
// callers must check before use.
type Services struct {
	Payment   PaymentService
	Audit     AuditService
	TwoFactor TwoFactorService
	Transport TransportManager
	Metrics   MetricsReader
	Cache     CacheService
	Mailer    MailerService
}

// RecordAudit is a nil-safe shortcut for Audit.Record
func (s *Services) RecordAudit(tenantID, userID int64, username, action, ip, detail string) {
	if s == nil || s.Audit == nil {
		return
	}
	s.Audit.Record(auditEntry(tenantID, userID, username, action, ip, detail))
}
