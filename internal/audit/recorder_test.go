package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/botvault/botvault/internal/config"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/db/repositories"
)

func newRecorderForTest(t *testing.T, mirror Mirror) (*Recorder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 4}))
	return NewRecorder(repositories.NewAuditRepository(db), mirror, logger), mock
}

func TestRecorder_Record_Persists(t *testing.T) {
	rec, mock := newRecorderForTest(t, nil)

	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))

	rec.Record(context.Background(), Owner("u1", models.ActionCredentialCreate, "credential", "c1", nil))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRecorder_Record_FailureDoesNotPanic(t *testing.T) {
	rec, mock := newRecorderForTest(t, nil)

	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnError(errors.New("disk full"))

	// Record swallows the failure; the mutation it documents already happened.
	rec.Record(context.Background(), Owner("u1", models.ActionCredentialDelete, "credential", "c1", nil))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestOwnerEntry_SetsActorAndTarget(t *testing.T) {
	entry := Owner("u1", models.ActionBotCreate, "bot", "b1", map[string]interface{}{"name": "deployer"})
	if entry.UserID == nil || *entry.UserID != "u1" {
		t.Error("UserID not set")
	}
	if entry.BotID != nil {
		t.Error("BotID set on owner entry")
	}
	if entry.TargetType == nil || *entry.TargetType != "bot" {
		t.Error("TargetType not set")
	}
}

func TestBotEntry_CarriesBothActorIDs(t *testing.T) {
	entry := Bot("b1", "u1", models.ActionBotCredentialAccess, "credential", "c1", nil)
	if entry.BotID == nil || *entry.BotID != "b1" {
		t.Error("BotID not set")
	}
	if entry.UserID == nil || *entry.UserID != "u1" {
		t.Error("owner UserID not set on bot entry")
	}
}

func TestFileMirror_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	mirror, err := NewMirror(config.AuditMirrorConfig{Enabled: true, Type: "file", Path: path})
	if err != nil {
		t.Fatalf("NewMirror: %v", err)
	}
	defer mirror.Close()

	entry := Owner("u1", models.ActionUserLogin, "user", "u1", nil)
	if err := mirror.Ship(context.Background(), entry); err != nil {
		t.Fatalf("Ship: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("mirror line is not JSON: %v", err)
	}
	if decoded["action"] != models.ActionUserLogin {
		t.Errorf("action = %v, want %s", decoded["action"], models.ActionUserLogin)
	}
}

func TestWebhookMirror_PostsEntry(t *testing.T) {
	received := make(chan mirrorEntry, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var entry mirrorEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		received <- entry
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	mirror, err := NewMirror(config.AuditMirrorConfig{Enabled: true, Type: "webhook", URL: srv.URL})
	if err != nil {
		t.Fatalf("NewMirror: %v", err)
	}
	defer mirror.Close()

	if err := mirror.Ship(context.Background(), Bot("b1", "u1", models.ActionBotCredentialAccess, "credential", "c1", nil)); err != nil {
		t.Fatalf("Ship: %v", err)
	}

	entry := <-received
	if entry.BotID != "b1" || entry.UserID != "u1" {
		t.Errorf("webhook entry actor = (%s, %s), want (b1, u1)", entry.BotID, entry.UserID)
	}
}

func TestWebhookMirror_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mirror := newWebhookMirror(srv.URL, 0)
	if err := mirror.Ship(context.Background(), Owner("u1", models.ActionUserLogin, "", "", nil)); err == nil {
		t.Error("Ship succeeded despite 500 response")
	}
}

func TestNewMirror_DisabledReturnsNil(t *testing.T) {
	mirror, err := NewMirror(config.AuditMirrorConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMirror: %v", err)
	}
	if mirror != nil {
		t.Error("disabled mirror should be nil")
	}
}
