package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var toolTypeCols = []string{
	"id", "name", "base_url", "tool_domain", "lti_version", "state",
	"consumer_key", "shared_secret", "secret_hash",
	"client_id", "public_key", "keyset_url", "key_type", "login_url", "deployment_id",
	"enabled_capabilities", "custom_parameters",
	"course_visible", "course_id", "proxy_id", "created_at", "updated_at",
}

func toolTypeRow(id int64, created int64) *sqlmock.Rows {
	return sqlmock.NewRows(toolTypeCols).AddRow(
		id, "Quiz Tool", "https://tool.example.com", "tool.example.com", VersionLTI13, StateConfigured,
		"", "", "",
		"client-1", "", "https://tool.example.com/jwks", KeyTypeJWKS, "https://tool.example.com/login", "deploy-1",
		"", "chapter=9",
		true, int64(0), int64(0), created, created,
	)
}

func TestSQLStoreGetToolType(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewSQLStore(db)

	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Unix()
	mock.ExpectQuery(`FROM lti_tool_types WHERE id=\$1`).
		WithArgs(int64(7)).
		WillReturnRows(toolTypeRow(7, created))

	got, err := store.GetToolType(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetToolType: %v", err)
	}
	if got.ID != 7 || got.ClientID != "client-1" || got.KeyType != KeyTypeJWKS {
		t.Fatalf("tool = %+v", got)
	}
	if got.LoginURL != "https://tool.example.com/login" || got.DeploymentID != "deploy-1" {
		t.Fatalf("1.3 fields: %+v", got)
	}
	if !got.CreatedAt.Equal(time.Unix(created, 0).UTC()) {
		t.Fatalf("CreatedAt = %v", got.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSQLStoreGetToolTypeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewSQLStore(db)

	mock.ExpectQuery(`FROM lti_tool_types WHERE id=\$1`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(toolTypeCols))

	if _, err := store.GetToolType(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSQLStoreSaveToolTypeInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewSQLStore(db)

	mock.ExpectQuery(`INSERT INTO lti_tool_types`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	tt := ToolType{Name: "New Tool", BaseURL: "https://new.example.com", LTIVersion: VersionLTI1}
	if err := store.SaveToolType(context.Background(), &tt); err != nil {
		t.Fatalf("SaveToolType: %v", err)
	}
	if tt.ID != 11 {
		t.Fatalf("assigned id = %d", tt.ID)
	}
	if tt.CreatedAt.IsZero() || tt.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set on insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSQLStoreDeleteToolTypeCascade(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT proxy_id FROM lti_tool_types WHERE id=\$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"proxy_id"}).AddRow(int64(9)))
	mock.ExpectExec(`DELETE FROM lti_access_tokens WHERE tool_type_id=\$1`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM lti_tool_types WHERE id=\$1`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM lti_tool_types WHERE proxy_id=\$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectExec(`DELETE FROM lti_tool_proxies WHERE id=\$1`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DeleteToolType(context.Background(), 3); err != nil {
		t.Fatalf("DeleteToolType: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSQLStoreFindTokenDecodesScope(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewSQLStore(db)

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM lti_access_tokens`).
		WithArgs("tok-1", int64(0)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "tool_type_id", "token", "scope", "created_at", "valid_until", "last_access"}).
			AddRow(int64(5), int64(7), "tok-1", `["basicoutcome","toolsettings"]`, now.Unix(), now.Add(time.Hour).Unix(), nil))

	got, err := store.FindToken(context.Background(), "tok-1", 0)
	if err != nil {
		t.Fatalf("FindToken: %v", err)
	}
	if got.ToolTypeID != 7 || len(got.Scope) != 2 || got.Scope[0] != "basicoutcome" {
		t.Fatalf("token = %+v", got)
	}
	if got.LastAccess != nil {
		t.Fatalf("LastAccess = %v", got.LastAccess)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
