package adminapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wadesk/internal/domain"
)

func postWebhook(env *testEnv, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestAsaasWebhookToken(t *testing.T) {
	env := newTestEnv(t)
	body := `{"event":"PAYMENT_RECEIVED","payment":{"id":"pay_1","status":"RECEIVED","value":"99.90","externalReference":"tenant:10"}}`

	rec := postWebhook(env, "/webhooks/payments/asaas", body, map[string]string{asaasTokenHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(env, "/webhooks/payments/asaas", body, map[string]string{asaasTokenHeader: testAsaasToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	// redelivery is absorbed
	rec = postWebhook(env, "/webhooks/payments/asaas", body, map[string]string{asaasTokenHeader: testAsaasToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var events []domain.PaymentEvent
	require.NoError(t, env.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "pay_1", events[0].ExternalID)
	assert.Equal(t, tenantA, events[0].TenantID)
	assert.InDelta(t, 99.90, events[0].Amount, 0.001)
}

func TestWebhooksAcknowledgeUndecodableBodies(t *testing.T) {
	env := newTestEnv(t)

	rec := postWebhook(env, "/webhooks/payments/asaas", "{not json", map[string]string{asaasTokenHeader: testAsaasToken})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postWebhook(env, "/webhooks/payments/mercadopago", "{not json", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	var count int64
	env.db.Model(&domain.PaymentEvent{}).Count(&count)
	assert.Zero(t, count)
}

func TestMercadoPagoWebhook(t *testing.T) {
	env := newTestEnv(t)
	body := `{"type":"payment","action":"payment.updated","data":{"id":123456}}`

	rec := postWebhook(env, "/webhooks/payments/mercadopago", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var evt domain.PaymentEvent
	require.NoError(t, env.db.First(&evt).Error)
	assert.Equal(t, "mercadopago", evt.Provider)
	assert.Equal(t, "123456", evt.ExternalID)
	assert.Equal(t, "payment.updated", evt.Type)
}

func TestIPAllowed(t *testing.T) {
	cidrs := []string{"10.0.0.0/8", "garbage", "2001:db8::/32"}
	assert.True(t, ipAllowed("10.1.2.3", cidrs))
	assert.True(t, ipAllowed("2001:db8::1", cidrs))
	assert.False(t, ipAllowed("192.168.0.1", cidrs))
	assert.False(t, ipAllowed("not-an-ip", cidrs))
}

func TestPublicRatingSubmission(t *testing.T) {
	env := newTestEnv(t)
	rating := domain.Rating{
		ID:             1,
		TenantID:       tenantA,
		ConversationID: 500,
		Token:          "abc123",
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	require.NoError(t, env.db.Create(&rating).Error)

	rec := env.do(http.MethodGet, "/api/public/ratings/abc123", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode(t, rec)["data"].(map[string]interface{})["answered"])

	rec = env.do(http.MethodPost, "/api/public/ratings/abc123", `{"score":9}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/public/ratings/abc123", `{"score":4,"comment":"bom"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/public/ratings/abc123", `{"score":5}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/api/public/ratings/missing", `{"score":5}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var stored domain.Rating
	require.NoError(t, env.db.First(&stored, 1).Error)
	assert.Equal(t, 4, stored.Score)
	assert.Equal(t, "bom", stored.Comment)
	assert.NotNil(t, stored.AnsweredAt)
}
