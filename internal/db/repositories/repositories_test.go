package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/botvault/botvault/internal/db/models"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// UserRepository
// ---------------------------------------------------------------------------

func TestUserRepository_Create_AssignsIDAndTimestamps(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID == "" {
		t.Error("Create did not assign an ID")
	}
	if user.CreatedAt.IsZero() || !user.UpdatedAt.Equal(user.CreatedAt) {
		t.Error("Create did not assign matching timestamps")
	}
	expectationsMet(t, mock)
}

func TestUserRepository_GetByEmail_NoRows_ReturnsNilNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	user, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if user != nil {
		t.Errorf("GetByEmail = %+v, want nil for missing row", user)
	}
	expectationsMet(t, mock)
}

func TestUserRepository_GetByID_ScansRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "created_at", "updated_at"}).
		AddRow("u1", "alice", "alice@example.com", "hash", now, now)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id`).
		WithArgs("u1").
		WillReturnRows(rows)

	user, err := repo.GetByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if user == nil || user.Username != "alice" {
		t.Fatalf("GetByID = %+v, want alice", user)
	}
	expectationsMet(t, mock)
}

func TestUserRepository_DeleteCascade_DeletesInDependencyOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	for _, table := range []string{
		`DELETE FROM audit_log`,
		`DELETE FROM bot_tokens`,
		`DELETE FROM permissions`,
		`DELETE FROM bots`,
		`DELETE FROM credentials`,
		`DELETE FROM link_tokens`,
		`DELETE FROM users`,
	} {
		mock.ExpectExec(table).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := repo.DeleteCascade(context.Background(), "u1"); err != nil {
		t.Fatalf("DeleteCascade: %v", err)
	}
	expectationsMet(t, mock)
}

func TestUserRepository_DeleteCascade_RollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM audit_log`).WithArgs("u1").
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	if err := repo.DeleteCascade(context.Background(), "u1"); err == nil {
		t.Fatal("DeleteCascade succeeded despite exec failure")
	}
	expectationsMet(t, mock)
}

// ---------------------------------------------------------------------------
// CredentialRepository
// ---------------------------------------------------------------------------

func TestCredentialRepository_GetByIDAndUser_WrongOwner_ReturnsNilNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCredentialRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM credentials WHERE id`).
		WithArgs("c1", "intruder").
		WillReturnError(sql.ErrNoRows)

	cred, err := repo.GetByIDAndUser(context.Background(), "c1", "intruder")
	if err != nil {
		t.Fatalf("GetByIDAndUser: %v", err)
	}
	if cred != nil {
		t.Error("row leaked across owner boundary")
	}
	expectationsMet(t, mock)
}

func TestCredentialRepository_Delete_RemovesPermissionsFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCredentialRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM permissions WHERE credential_id`).
		WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM credentials WHERE id`).
		WithArgs("c1", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := repo.Delete(context.Background(), "c1", "u1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("Delete = false, want true")
	}
	expectationsMet(t, mock)
}

func TestCredentialRepository_Delete_NotOwner_RollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCredentialRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM permissions WHERE credential_id`).
		WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM credentials WHERE id`).
		WithArgs("c1", "intruder").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	deleted, err := repo.Delete(context.Background(), "c1", "intruder")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted {
		t.Error("Delete reported success for a non-owner")
	}
	expectationsMet(t, mock)
}

func TestCredentialRepository_ListByUser_Empty_ReturnsEmptySlice(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCredentialRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM credentials WHERE user_id`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "type", "label", "encrypted_data", "encrypted_dek",
			"iv", "auth_tag", "created_at", "updated_at"}))

	creds, err := repo.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if creds == nil || len(creds) != 0 {
		t.Errorf("ListByUser = %v, want empty non-nil slice", creds)
	}
	expectationsMet(t, mock)
}

func TestCredentialRepository_UpdateMeta_ReportsRowsAffected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCredentialRepository(db)

	t.Run("owner row updated", func(t *testing.T) {
		mock.ExpectExec(`UPDATE credentials SET type`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		ok, err := repo.UpdateMeta(context.Background(), "c1", "u1", models.TypeAPIKey, "prod key")
		if err != nil {
			t.Fatalf("UpdateMeta: %v", err)
		}
		if !ok {
			t.Error("UpdateMeta = false, want true")
		}
	})

	t.Run("foreign row untouched", func(t *testing.T) {
		mock.ExpectExec(`UPDATE credentials SET type`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		ok, err := repo.UpdateMeta(context.Background(), "c1", "intruder", models.TypeAPIKey, "prod key")
		if err != nil {
			t.Fatalf("UpdateMeta: %v", err)
		}
		if ok {
			t.Error("UpdateMeta reported success for a non-owner")
		}
	})
	expectationsMet(t, mock)
}

// ---------------------------------------------------------------------------
// BotRepository
// ---------------------------------------------------------------------------

func TestBotRepository_ListByUser_IncludesPermissionCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBotRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "name", "description", "secret_hash", "is_active", "created_at", "permission_count"}).
		AddRow("b1", "u1", "deployer", nil, "hash", true, now, 3)
	mock.ExpectQuery(`SELECT b\.id`).WithArgs("u1").WillReturnRows(rows)

	bots, err := repo.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(bots) != 1 || bots[0].PermissionCount != 3 {
		t.Errorf("ListByUser = %+v, want one bot with 3 grants", bots)
	}
	expectationsMet(t, mock)
}

func TestBotRepository_Delete_RevokesTokensAndGrants(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBotRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM bot_tokens WHERE bot_id`).
		WithArgs("b1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM permissions WHERE bot_id`).
		WithArgs("b1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM bots WHERE id`).
		WithArgs("b1", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := repo.Delete(context.Background(), "b1", "u1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("Delete = false, want true")
	}
	expectationsMet(t, mock)
}

// ---------------------------------------------------------------------------
// BotTokenRepository
// ---------------------------------------------------------------------------

func TestBotTokenRepository_GetByHash_Revoked_ReturnsNilNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBotTokenRepository(db)

	mock.ExpectQuery(`FROM bot_tokens WHERE token_hash`).
		WithArgs("deadbeef").
		WillReturnError(sql.ErrNoRows)

	token, err := repo.GetByHash(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if token != nil {
		t.Error("GetByHash returned a record for a revoked token")
	}
	expectationsMet(t, mock)
}

func TestBotTokenRepository_Delete_ScopedToBot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBotTokenRepository(db)

	mock.ExpectExec(`DELETE FROM bot_tokens WHERE id`).
		WithArgs("t1", "other-bot").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), "t1", "other-bot")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted {
		t.Error("Delete reported success for a token of another bot")
	}
	expectationsMet(t, mock)
}

// ---------------------------------------------------------------------------
// PermissionRepository
// ---------------------------------------------------------------------------

func TestPermissionRepository_ReplaceForBot_DeletesThenInserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM permissions WHERE bot_id`).
		WithArgs("b1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO permissions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO permissions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceForBot(context.Background(), "b1", []string{"c1", "c2"})
	if err != nil {
		t.Fatalf("ReplaceForBot: %v", err)
	}
	expectationsMet(t, mock)
}

func TestPermissionRepository_ReplaceForBot_EmptySetClearsGrants(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM permissions WHERE bot_id`).
		WithArgs("b1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	if err := repo.ReplaceForBot(context.Background(), "b1", nil); err != nil {
		t.Fatalf("ReplaceForBot: %v", err)
	}
	expectationsMet(t, mock)
}

func TestPermissionRepository_Exists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPermissionRepository(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("b1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.Exists(context.Background(), "b1", "c1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Error("Exists = false, want true")
	}
	expectationsMet(t, mock)
}

// ---------------------------------------------------------------------------
// LinkTokenRepository
// ---------------------------------------------------------------------------

func TestLinkTokenRepository_Redeem_ReturnsUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLinkTokenRepository(db)

	mock.ExpectQuery(`UPDATE link_tokens SET used = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))

	userID, err := repo.Redeem(context.Background(), "hash", models.PurposeMagicLink)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if userID != "u1" {
		t.Errorf("Redeem = %q, want u1", userID)
	}
	expectationsMet(t, mock)
}

func TestLinkTokenRepository_Redeem_UsedOrExpired_ReturnsEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLinkTokenRepository(db)

	mock.ExpectQuery(`UPDATE link_tokens SET used = TRUE`).
		WillReturnError(sql.ErrNoRows)

	userID, err := repo.Redeem(context.Background(), "hash", models.PurposeRecovery)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if userID != "" {
		t.Errorf("Redeem = %q, want empty for spent token", userID)
	}
	expectationsMet(t, mock)
}

// ---------------------------------------------------------------------------
// AuditRepository
// ---------------------------------------------------------------------------

func TestAuditRepository_Create_EncodesMetadata(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	userID := "u1"
	entry := &models.AuditLog{
		UserID:   &userID,
		Action:   models.ActionCredentialCreate,
		Metadata: map[string]interface{}{"label": "prod key"},
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Error("Create did not assign ID and timestamp")
	}
	expectationsMet(t, mock)
}

func TestAuditRepository_List_AppliesFiltersAndPagination(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	userID := "u1"
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(userID, models.ActionCredentialRead, "%deploy%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "bot_id", "action", "target_type", "target_id",
		"metadata", "created_at", "username", "bot_name"}).
		AddRow("a1", userID, nil, models.ActionCredentialRead, "credential", "c1",
			[]byte(`{"label":"prod key"}`), time.Now(), "alice", nil)
	mock.ExpectQuery(`SELECT a\.id`).
		WithArgs(userID, models.ActionCredentialRead, "%deploy%", AuditPageSize, AuditPageSize).
		WillReturnRows(rows)

	entries, total, err := repo.List(context.Background(), userID,
		AuditFilters{Action: models.ActionCredentialRead, Actor: "deploy"}, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 120 {
		t.Errorf("total = %d, want 120", total)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Metadata["label"] != "prod key" {
		t.Errorf("metadata not decoded: %+v", entries[0].Metadata)
	}
	if entries[0].Username == nil || *entries[0].Username != "alice" {
		t.Error("joined username missing")
	}
	expectationsMet(t, mock)
}

func TestAuditRepository_List_NullMetadata(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	userID := "u1"
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	// Deletion entries carry no metadata and are stored as SQL NULL.
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "bot_id", "action", "target_type", "target_id",
		"metadata", "created_at", "username", "bot_name"}).
		AddRow("a1", userID, nil, models.ActionCredentialDelete, "credential", "c1",
			nil, time.Now(), "alice", nil)
	mock.ExpectQuery(`SELECT a\.id`).
		WillReturnRows(rows)

	entries, _, err := repo.List(context.Background(), userID, AuditFilters{}, 1, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Metadata != nil {
		t.Errorf("metadata = %+v, want nil", entries[0].Metadata)
	}
	expectationsMet(t, mock)
}
