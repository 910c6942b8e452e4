package adminapi

import (
	"context"
	"crypto/subtle"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/c-robinson/iplib"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"github.com/talkincode/wadesk/internal/payment"
	"github.com/talkincode/wadesk/internal/webserver"
	"go.uber.org/zap"
)

const (
	asaasTokenHeader = "asaas-access-token"
	webhookBodyLimit = 1 << 20
	webhookTimeout   = 10 * time.Second
)

var webhookJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Webhooks never carry a session token; they sit outside /api.
func registerWebhookRoutes() {
	webserver.RootPOST("/webhooks/payments/asaas", asaasWebhook, webhookSourceFilter)
	webserver.RootPOST("/webhooks/payments/mercadopago", mercadoPagoWebhook, webhookSourceFilter)
}

// received is the only answer providers get once a request is accepted;
// they retry on anything else and duplicates are absorbed by the ledger.
func received(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

// webhookSourceFilter enforces webhook.allowed_cidrs when configured
func webhookSourceFilter(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cidrs := GetAppContext(c).Config().Webhook.AllowedCIDRs
		if len(cidrs) == 0 {
			return next(c)
		}
		if !ipAllowed(c.RealIP(), cidrs) {
			zap.L().Warn("webhook source rejected", zap.String("ip", c.RealIP()), zap.String("path", c.Path()))
			return fail(c, http.StatusForbidden, "FORBIDDEN", "Source not allowed", nil)
		}
		return next(c)
	}
}

func ipAllowed(raw string, cidrs []string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	for _, cidr := range cidrs {
		_, ipnet, err := iplib.ParseCIDR(cidr)
		if err != nil {
			zap.L().Warn("invalid webhook cidr", zap.String("cidr", cidr), zap.Error(err))
			continue
		}
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

func readWebhookBody(c echo.Context) []byte {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookBodyLimit))
	if err != nil {
		zap.L().Warn("webhook body read failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return body
}

// dispatchPayment forwards the normalized event; failures are only logged
func dispatchPayment(c echo.Context, evt payment.Event) {
	svc := GetAppContext(c).Services().Payment
	if svc == nil {
		zap.L().Warn("payment service unavailable, webhook dropped",
			zap.String("provider", evt.Provider),
			zap.String("external_id", evt.ExternalID))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()
	if err := svc.HandleEvent(ctx, evt); err != nil {
		zap.L().Error("payment webhook processing failed",
			zap.String("provider", evt.Provider),
			zap.String("external_id", evt.ExternalID),
			zap.String("type", evt.Type),
			zap.Error(err))
	}
}

type asaasPayload struct {
	Event   string `json:"event"`
	Payment struct {
		ID                string      `json:"id"`
		Status            string      `json:"status"`
		Value             interface{} `json:"value"`
		ExternalReference string      `json:"externalReference"`
		Customer          string      `json:"customer"`
	} `json:"payment"`
}

func asaasWebhook(c echo.Context) error {
	if expected := GetAppContext(c).Config().Webhook.AsaasToken; expected != "" {
		got := c.Request().Header.Get(asaasTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			zap.L().Warn("asaas webhook token mismatch", zap.String("ip", c.RealIP()))
			return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid webhook token", nil)
		}
	}

	body := readWebhookBody(c)
	var p asaasPayload
	if err := webhookJSON.Unmarshal(body, &p); err != nil {
		zap.L().Warn("asaas webhook undecodable", zap.Error(err))
		return received(c)
	}
	dispatchPayment(c, payment.Event{
		Provider:   payment.ProviderAsaas,
		Type:       p.Event,
		ExternalID: p.Payment.ID,
		Status:     p.Payment.Status,
		Amount:     cast.ToFloat64(p.Payment.Value),
		Reference:  p.Payment.ExternalReference,
		Raw:        body,
	})
	return received(c)
}

type mercadoPagoPayload struct {
	ID     interface{} `json:"id"`
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   struct {
		ID interface{} `json:"id"`
	} `json:"data"`
	Status            string      `json:"status"`
	TransactionAmount interface{} `json:"transaction_amount"`
	ExternalReference string      `json:"external_reference"`
}

// mercadoPagoWebhook has no authenticity check; see DESIGN.md
func mercadoPagoWebhook(c echo.Context) error {
	body := readWebhookBody(c)
	var p mercadoPagoPayload
	if err := webhookJSON.Unmarshal(body, &p); err != nil {
		zap.L().Warn("mercadopago webhook undecodable", zap.Error(err))
		return received(c)
	}
	externalID := cast.ToString(p.Data.ID)
	if externalID == "" {
		externalID = cast.ToString(p.ID)
	}
	evtType := p.Action
	if evtType == "" {
		evtType = p.Type
	}
	dispatchPayment(c, payment.Event{
		Provider:   payment.ProviderMercadoPago,
		Type:       evtType,
		ExternalID: externalID,
		Status:     p.Status,
		Amount:     cast.ToFloat64(p.TransactionAmount),
		Reference:  p.ExternalReference,
		Raw:        body,
	})
	return received(c)
}
