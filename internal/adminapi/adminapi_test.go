package adminapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wadesk/config"
	"github.com/talkincode/wadesk/internal/app"
	"github.com/talkincode/wadesk/internal/auth"
	"github.com/talkincode/wadesk/internal/chat"
	"github.com/talkincode/wadesk/internal/dashboard"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/payment"
	"github.com/talkincode/wadesk/internal/realtime"
	"github.com/talkincode/wadesk/internal/repository"
	"github.com/talkincode/wadesk/internal/testutil"
	"github.com/talkincode/wadesk/internal/webserver"
	"github.com/talkincode/wadesk/pkg/common"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testSecret     = "adminapi-test-secret"
	testAsaasToken = "asaas-secret"
	tenantA        = int64(10)
	tenantB        = int64(20)
)

type testEnv struct {
	e     *echo.Echo
	db    *gorm.DB
	admin string
	agent string
}

func newTestEnv(t *testing.T, tweaks ...func(*config.AppConfig)) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.CreateTenant(t, db, tenantA, "acme")
	testutil.CreateTenant(t, db, tenantB, "globex")

	cfg := *config.DefaultAppConfig
	cfg.System.Workdir = t.TempDir()
	cfg.System.Location = "UTC"
	cfg.Web.Secret = testSecret
	cfg.Web.LoginRateLimit = 100
	cfg.Webhook = config.WebhookConfig{AsaasToken: testAsaasToken}
	for _, tweak := range tweaks {
		tweak(&cfg)
	}

	application := app.NewApplication(&cfg)
	application.OverrideDB(db)
	application.SetServices(app.Services{Payment: payment.NewLedgerService(db)})

	srv := webserver.Init(application)
	services := application.Services()
	Init(Deps{
		Verifier: auth.NewVerifier(testSecret, services, auth.DefaultSources(db)...),
		Chat: chat.NewService(chat.Repositories{
			Conversations: repository.NewGormConversationRepository(db),
			Messages:      repository.NewGormMessageRepository(db),
			Instances:     repository.NewGormInstanceRepository(db),
			Ratings:       repository.NewGormRatingRepository(db),
		}, realtime.NewHub(), services, chat.Options{PublicURL: "https://desk.example.com"}),
		Dashboard: dashboard.NewService(db, services),
	})

	return &testEnv{
		e:     srv.Echo(),
		db:    db,
		admin: issue(t, auth.Claims{UserID: 7, TenantID: tenantA, Username: "ana", Role: domain.RoleAdmin}),
		agent: issue(t, auth.Claims{UserID: 8, TenantID: tenantA, Username: "bruno", Role: domain.RoleAgent}),
	}
}

func issue(t *testing.T, claims auth.Claims) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, claims, time.Now())
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, webhookJSON.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/courses", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["error"])

	rec = env.do(http.MethodGet, "/api/courses", "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, env.db.Create(&domain.SysUser{
		ID:       common.UUIDint64(),
		TenantID: tenantA,
		Username: "carla",
		Password: string(hash),
		Role:     domain.RoleAgent,
		Status:   common.ENABLED,
	}).Error)

	rec := env.do(http.MethodPost, "/api/login", `{"username":"carla","password":"s3cret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]interface{})
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)

	claims, err := auth.ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, tenantA, claims.TenantID)

	rec = env.do(http.MethodGet, "/api/me", "", token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/login", `{"username":"carla","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode(t, rec)["error"])

	rec = env.do(http.MethodPost, "/api/login", `{"username":"carla"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["error"])
	assert.Contains(t, body["details"], "password")
}

func TestCoursesAreTenantScoped(t *testing.T) {
	env := newTestEnv(t)
	foreign := domain.Course{ID: common.UUIDint64(), TenantID: tenantB, Name: "Foreign", Active: true}
	require.NoError(t, env.db.Create(&foreign).Error)

	rec := env.do(http.MethodPost, "/api/courses", `{"name":"Enfermagem","price":199.9,"modality":"online"}`, env.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "Enfermagem", created["name"])
	assert.Equal(t, true, created["active"])

	rec = env.do(http.MethodGet, "/api/courses", "", env.agent)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)
	assert.EqualValues(t, 1, list["total"])

	rec = env.do(http.MethodGet, "/api/courses/"+idString(foreign.ID), "", env.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPut, "/api/courses/"+created["id"].(string), `{"name":"Enfermagem EAD","price":150,"active":false}`, env.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "Enfermagem EAD", updated["name"])
	assert.Equal(t, false, updated["active"])
}

func TestCourseValidationAndRoles(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/courses", `{"name":"Agente"}`, env.agent)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/courses", `{"name":"X","modality":"space"}`, env.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["details"], "modality")
}

func TestBotConfigUpsert(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/api/config", `{"welcome":"Oi"}`, env.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodPut, "/api/config", `{"welcome":"Olá","hours":"9-18"}`, env.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/config", "", env.agent)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"welcome": "Olá", "hours": "9-18"}, data)

	var count int64
	env.db.Model(&domain.BotConfig{}).Where("tenant_id = ?", tenantA).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestNormalizeKeyword(t *testing.T) {
	assert.Equal(t, "matricula", NormalizeKeyword("  Matrícula "))
	assert.Equal(t, "acao social", NormalizeKeyword("AÇÃO   Social"))
	assert.Equal(t, "", NormalizeKeyword("   "))
}

func TestKeywordLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/keywords", `{"keyword":"Matrícula","response":"Veja o site"}`, env.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "matricula", decode(t, rec)["data"].(map[string]interface{})["keyword"])

	rec = env.do(http.MethodPost, "/api/keywords", `{"keyword":"MATRICULA","response":"Novo texto"}`, env.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Novo texto", decode(t, rec)["data"].(map[string]interface{})["response"])

	rec = env.do(http.MethodDelete, "/api/keywords/Matr%C3%ADcula", "", env.admin)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodDelete, "/api/keywords/matricula", "", env.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKeywordImport(t *testing.T) {
	env := newTestEnv(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "keywords.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("keyword,response\nPreço,Consulte a tabela\nhorário,8h às 18h\n,sem chave\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/keywords/import", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+env.admin)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decode(t, rec)["data"].(map[string]interface{})
	assert.EqualValues(t, 2, data["inserted"])
	assert.EqualValues(t, 0, data["skipped"])

	var kw domain.Keyword
	require.NoError(t, env.db.Where("tenant_id = ? AND keyword = ?", tenantA, "preco").First(&kw).Error)
	assert.Equal(t, "Consulte a tabela", kw.Response)
}

func TestFaqQuestionsAggregate(t *testing.T) {
	env := newTestEnv(t)
	for _, q := range []string{"Qual o valor?", "qual o  VALOR?", "Tem bolsa?"} {
		rec := env.do(http.MethodPost, "/api/faq/questions", `{"question":"`+q+`"}`, env.agent)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec := env.do(http.MethodGet, "/api/faq/questions", "", env.agent)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["total"])
	first := body["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "qual o valor?", first["question"])
	assert.EqualValues(t, 2, first["hits"])
}

func TestKnowledgeDeleteIsTenantScoped(t *testing.T) {
	env := newTestEnv(t)
	foreign := domain.KnowledgeEntry{ID: common.UUIDint64(), TenantID: tenantB, Title: "t", Content: "c"}
	require.NoError(t, env.db.Create(&foreign).Error)

	rec := env.do(http.MethodDelete, "/api/knowledge/"+idString(foreign.ID), "", env.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var count int64
	env.db.Model(&domain.KnowledgeEntry{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestDashboardEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/dashboard", "", env.agent)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/dashboard/detail/open_conversations", "", env.agent)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/dashboard/detail/drop_table", "", env.agent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_DETAIL_TYPE", decode(t, rec)["error"])

	rec = env.do(http.MethodGet, "/api/dashboard/detail/leads_today?from=not-a-date", "", env.agent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportLeadsCSV(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Create(&domain.Lead{ID: 1, TenantID: tenantA, Name: `Maria "Mel"`, Phone: "5511"}).Error)
	require.NoError(t, env.db.Create(&domain.Lead{ID: 2, TenantID: tenantB, Name: "Outro"}).Error)

	rec := env.do(http.MethodGet, "/api/export/leads", "", env.agent)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "leads-")
	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `"id","name","phone"`))
	assert.Contains(t, lines[1], `"Maria ""Mel"""`)

	rec = env.do(http.MethodGet, "/api/export/leads?format=xlsx", "", env.agent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeXLSX, rec.Header().Get(echo.HeaderContentType))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = env.do(http.MethodGet, "/api/export/users", "", env.agent)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstancesWithoutTransport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/instances", `{"name":"Recepção","phone":"5511999990000"}`, env.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["data"].(map[string]interface{})["id"].(string)

	rec = env.do(http.MethodGet, "/api/instances/"+id+"/qr", "", env.agent)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["data"].(map[string]interface{})["has_qr"])

	rec = env.do(http.MethodPost, "/api/instances/"+id+"/provision", "", env.admin)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(http.MethodDelete, "/api/instances/"+id, "", env.agent)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodDelete, "/api/instances/"+id, "", env.admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuditLogsListing(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Create(&domain.AuditLog{ID: 1, TenantID: tenantA, Action: "login", CreatedAt: time.Now()}).Error)
	require.NoError(t, env.db.Create(&domain.AuditLog{ID: 2, TenantID: tenantB, Action: "login", CreatedAt: time.Now()}).Error)

	rec := env.do(http.MethodGet, "/api/audit-logs", "", env.agent)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/audit-logs?action=login", "", env.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])
}

func uploadLogo(env *testEnv, t *testing.T, content []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("logo", "logo.bin")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tenants/me/logo", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+env.admin)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func TestTenantLogoUpload(t *testing.T) {
	env := newTestEnv(t)

	rec := uploadLogo(env, t, []byte("just some text"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_FILE_TYPE", decode(t, rec)["error"])

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	rec = uploadLogo(env, t, png)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tenant domain.Tenant
	require.NoError(t, env.db.First(&tenant, tenantA).Error)
	assert.True(t, strings.HasPrefix(tenant.LogoPath, "/uploads/logos/10-"))
	assert.True(t, strings.HasSuffix(tenant.LogoPath, ".png"))
}

func idString(id int64) string {
	return common.JoinIDs([]int64{id})
}

func TestSystemJobsRequireSuper(t *testing.T) {
	env := newTestEnv(t)
	super := issue(t, auth.Claims{UserID: 1, TenantID: domain.SystemTenantID, Username: "admin", Role: domain.RoleSuper})

	rec := env.do(http.MethodGet, "/api/system/jobs", "", env.admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/system/jobs", "", super)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/system/jobs/nope/run", "", super)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
