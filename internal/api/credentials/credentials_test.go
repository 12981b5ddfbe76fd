package credentials

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/botvault/botvault/internal/audit"
	"github.com/botvault/botvault/internal/auth"
	"github.com/botvault/botvault/internal/crypto"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/db/repositories"
	"github.com/botvault/botvault/internal/middleware"
	"github.com/botvault/botvault/internal/vault"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// Test setup helpers
// ---------------------------------------------------------------------------

var credentialSQLCols = []string{
	"id", "user_id", "type", "label", "encrypted_data", "encrypted_dek",
	"iv", "auth_tag", "created_at", "updated_at",
}

type harness struct {
	mock   sqlmock.Sqlmock
	router *gin.Engine
	cipher *crypto.EnvelopeCipher
}

// newHarness builds the credential and card routes over a mocked database,
// with the owner identity pre-set the way SessionAuth would.
func newHarness(t *testing.T, ownerID string) *harness {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cipher, err := crypto.NewEnvelopeCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewEnvelopeCipher: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 4}))
	auditRepo := repositories.NewAuditRepository(db)

	svc := vault.New(vault.Options{
		Users:       repositories.NewUserRepository(db),
		Credentials: repositories.NewCredentialRepository(db),
		Bots:        repositories.NewBotRepository(db),
		BotTokens:   repositories.NewBotTokenRepository(db),
		Permissions: repositories.NewPermissionRepository(db),
		LinkTokens:  repositories.NewLinkTokenRepository(db),
		AuditRepo:   auditRepo,
		Cipher:      cipher,
		Sessions:    auth.NewSessionService([]byte("test-signing-secret-0123456789ab")),
		BotAuth:     auth.NewBotTokenService([]byte("test-signing-secret-0123456789ab")),
		Recorder:    audit.NewRecorder(auditRepo, nil, logger),
		Logger:      logger,
	})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, ownerID)
		c.Next()
	})
	r.GET("/api/credentials", ListHandler(svc))
	r.POST("/api/credentials", CreateHandler(svc))
	r.GET("/api/credentials/:id", GetHandler(svc))
	r.PUT("/api/credentials/:id", UpdateHandler(svc))
	r.DELETE("/api/credentials/:id", DeleteHandler(svc))
	r.GET("/api/cards", ListCardsHandler(svc))
	r.POST("/api/cards", CreateCardHandler(svc))
	r.GET("/api/cards/:id", GetCardHandler(svc))
	r.DELETE("/api/cards/:id", DeleteCardHandler(svc))

	return &harness{mock: mock, router: r, cipher: cipher}
}

// encryptedRow seals plaintext for ownerID and returns it in select order.
func (h *harness) encryptedRow(t *testing.T, id, ownerID string, typ models.CredentialType, label, plaintext string) *sqlmock.Rows {
	t.Helper()
	env, err := h.cipher.Encrypt(ownerID, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	now := time.Now()
	return sqlmock.NewRows(credentialSQLCols).
		AddRow(id, ownerID, string(typ), label, env.Ciphertext, env.WrappedKey,
			env.IV, env.Tag, now, now)
}

func (h *harness) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewBuffer(b)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	h.router.ServeHTTP(w, req)
	return w
}

func getJSON(w *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &m)
	return m
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

func TestListHandler_EmptyIsAList(t *testing.T) {
	h := newHarness(t, "u1")

	h.mock.ExpectQuery(`SELECT .+ FROM credentials WHERE user_id`).
		WillReturnRows(sqlmock.NewRows(credentialSQLCols))

	w := h.do("GET", "/api/credentials", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	creds, ok := getJSON(w)["credentials"].([]interface{})
	if !ok {
		t.Fatal("credentials key missing or not a list")
	}
	if len(creds) != 0 {
		t.Errorf("len = %d, want 0", len(creds))
	}
}

func TestCreateHandler_ReturnsMetadataOnly(t *testing.T) {
	h := newHarness(t, "u1")

	h.mock.ExpectExec(`INSERT INTO credentials`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := h.do("POST", "/api/credentials", map[string]string{
		"type":   "api_key",
		"label":  "prod key",
		"secret": "sk-live-123",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	resp := getJSON(w)
	if resp["label"] != "prod key" {
		t.Errorf("label = %v, want prod key", resp["label"])
	}
	if _, present := resp["secret"]; present {
		t.Error("create response must not echo the secret")
	}
	if err := h.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateHandler_UnknownType(t *testing.T) {
	h := newHarness(t, "u1")

	w := h.do("POST", "/api/credentials", map[string]string{
		"type":   "passport",
		"label":  "x",
		"secret": "y",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetHandler_DecryptsSecret(t *testing.T) {
	h := newHarness(t, "u1")

	h.mock.ExpectQuery(`SELECT .+ FROM credentials WHERE id = \$1 AND user_id = \$2`).
		WithArgs("c1", "u1").
		WillReturnRows(h.encryptedRow(t, "c1", "u1", models.TypeAPIKey, "prod key", "sk-live-123"))
	h.mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := h.do("GET", "/api/credentials/c1", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := getJSON(w)["secret"]; got != "sk-live-123" {
		t.Errorf("secret = %v, want sk-live-123", got)
	}
}

func TestGetHandler_NotFound(t *testing.T) {
	h := newHarness(t, "u1")

	h.mock.ExpectQuery(`SELECT .+ FROM credentials WHERE id = \$1 AND user_id = \$2`).
		WillReturnRows(sqlmock.NewRows(credentialSQLCols))

	w := h.do("GET", "/api/credentials/other", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetHandler_TamperedRowIs500(t *testing.T) {
	h := newHarness(t, "u1")

	// The row claims to belong to u1 but was sealed under another owner's
	// key, so opening it fails the envelope's integrity check.
	env, err := h.cipher.Encrypt("other-owner", "sk-live-123")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	now := time.Now()
	h.mock.ExpectQuery(`SELECT .+ FROM credentials WHERE id = \$1 AND user_id = \$2`).
		WillReturnRows(sqlmock.NewRows(credentialSQLCols).
			AddRow("c1", "u1", string(models.TypeAPIKey), "prod key",
				env.Ciphertext, env.WrappedKey, env.IV, env.Tag, now, now))

	w := h.do("GET", "/api/credentials/c1", nil)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := getJSON(w)["error"]; got != "internal error" {
		t.Errorf("error = %v, integrity detail must be withheld", got)
	}
}

func TestDeleteHandler_Success(t *testing.T) {
	h := newHarness(t, "u1")

	h.mock.ExpectBegin()
	h.mock.ExpectExec(`DELETE FROM permissions`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	h.mock.ExpectExec(`DELETE FROM credentials`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()
	h.mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := h.do("DELETE", "/api/credentials/c1", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if err := h.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Cards
// ---------------------------------------------------------------------------

func TestCreateCardHandler_RejectsBadNumber(t *testing.T) {
	h := newHarness(t, "u1")

	w := h.do("POST", "/api/cards", map[string]string{
		"label":           "personal visa",
		"cardholder_name": "Alice Example",
		"card_number":     "4111111111111112",
		"expiry_month":    "12",
		"expiry_year":     "2030",
		"cvv":             "123",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateCardHandler_ReturnsMaskedMeta(t *testing.T) {
	h := newHarness(t, "u1")

	h.mock.ExpectExec(`INSERT INTO credentials`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := h.do("POST", "/api/cards", map[string]string{
		"label":           "personal visa",
		"cardholder_name": "Alice Example",
		"card_number":     "4111 1111 1111 1111",
		"expiry_month":    "12",
		"expiry_year":     "2030",
		"cvv":             "123",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	resp := getJSON(w)
	if resp["brand"] != "Visa" {
		t.Errorf("brand = %v, want Visa", resp["brand"])
	}
	if resp["last4"] != "1111" {
		t.Errorf("last4 = %v, want 1111", resp["last4"])
	}
	if _, present := resp["card_number"]; present {
		t.Error("create response must not include the card number")
	}
}
