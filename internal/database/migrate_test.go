package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
)

func TestPendingSkipsApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001_init"))

	pending, err := Pending(context.Background(), db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, m := range pending {
		if m.Version == "0001_init" {
			t.Fatalf("applied migration reported as pending")
		}
	}
	if len(pending) == 0 || pending[0].Version != "0002_resume_uploads" {
		t.Fatalf("unexpected pending migrations: %+v", pending)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	migrations := []Migration{
		{Version: "0001_ok", SQL: "CREATE TABLE a (id INT)"},
		{Version: "0002_bad", SQL: "CREATE TABLE b (id INT"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).WithArgs("0001_ok").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT")).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = Apply(context.Background(), db, migrations, zap.NewNop())
	if err == nil {
		t.Fatal("expected error from broken migration")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
