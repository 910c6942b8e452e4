package payment

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ProviderAsaas       = "asaas"
	ProviderMercadoPago = "mercadopago"
)

var ErrInvalidEvent = errors.New("invalid payment event")

// Event provider callback normalized to one shape
type Event struct {
	Provider   string
	Type       string
	ExternalID string
	Status     string
	Amount     float64
	// Reference is the merchant reference we attached to the charge,
	// "tenant:<id>", a bare tenant id or a tenant slug.
	Reference string
	Raw       []byte
}

// LedgerService stores provider events once and keeps tenant plan status in step
type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// HandleEvent persists the event. Redelivered events (same provider,
// external id and type) are accepted and ignored.
func (s *LedgerService) HandleEvent(ctx context.Context, evt Event) error {
	evt.Provider = strings.ToLower(strings.TrimSpace(evt.Provider))
	evt.ExternalID = strings.TrimSpace(evt.ExternalID)
	if evt.Provider == "" || evt.ExternalID == "" {
		return ErrInvalidEvent
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&domain.PaymentEvent{}).
		Where("provider = ? AND external_id = ? AND type = ?", evt.Provider, evt.ExternalID, evt.Type).
		Count(&count).Error; err != nil {
		return pkgerrors.Wrap(err, "lookup payment event")
	}
	if count > 0 {
		zap.L().Debug("duplicate payment event ignored",
			zap.String("provider", evt.Provider),
			zap.String("external_id", evt.ExternalID),
			zap.String("type", evt.Type))
		return nil
	}

	tenantID := s.resolveTenant(db, evt.Reference)
	planStatus := PlanStatus(evt.Type, evt.Status)

	return db.Transaction(func(tx *gorm.DB) error {
		row := domain.PaymentEvent{
			ID:         common.UUIDint64(),
			TenantID:   tenantID,
			Provider:   evt.Provider,
			ExternalID: evt.ExternalID,
			Type:       evt.Type,
			Status:     evt.Status,
			Amount:     evt.Amount,
			Reference:  evt.Reference,
			Payload:    string(evt.Raw),
			CreatedAt:  time.Now(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return pkgerrors.Wrap(err, "store payment event")
		}
		if tenantID == 0 || planStatus == "" {
			return nil
		}
		if err := tx.Model(&domain.Tenant{}).Where("id = ?", tenantID).
			Updates(map[string]interface{}{"plan_status": planStatus, "updated_at": time.Now()}).Error; err != nil {
			return pkgerrors.Wrap(err, "update tenant plan status")
		}
		zap.L().Info("tenant plan status updated",
			zap.Int64("tenant_id", tenantID),
			zap.String("plan_status", planStatus),
			zap.String("provider", evt.Provider))
		return nil
	})
}

func (s *LedgerService) resolveTenant(db *gorm.DB, ref string) int64 {
	ref = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ref), "tenant:"))
	if ref == "" {
		return 0
	}
	var tenant domain.Tenant
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if db.Where("id = ?", id).First(&tenant).Error == nil {
			return tenant.ID
		}
		return 0
	}
	if db.Where("slug = ?", ref).First(&tenant).Error == nil {
		return tenant.ID
	}
	return 0
}

// PlanStatus maps a provider event type or payment status onto a tenant
// plan status. Unknown values leave the tenant untouched.
func PlanStatus(eventType, status string) string {
	switch strings.ToUpper(eventType) {
	case "PAYMENT_RECEIVED", "PAYMENT_CONFIRMED":
		return "active"
	case "PAYMENT_OVERDUE":
		return "overdue"
	case "PAYMENT_REFUNDED", "PAYMENT_DELETED", "PAYMENT_CHARGEBACK_REQUESTED":
		return "suspended"
	}
	switch strings.ToLower(status) {
	case "approved", "authorized", "received", "confirmed":
		return "active"
	case "pending", "in_process", "in_mediation":
		return "pending"
	case "rejected", "cancelled", "refunded", "charged_back":
		return "suspended"
	}
	return ""
}
