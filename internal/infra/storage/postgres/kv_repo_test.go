package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/vietddude/supervisor/internal/infra/storage"
)

func newMockRepo(t *testing.T) (*KVRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewKVRepo(&DB{DB: sqlx.NewDb(db, "pgx")}), mock
}

func TestKVRepo_Put(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO kv_store").
		WithArgs("snapshots/1", []byte("state")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Put(context.Background(), "snapshots/1", []byte("state")); err != nil {
		t.Errorf("error was not expected while putting: %s", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %s", err)
	}
}

func TestKVRepo_Get(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT value FROM kv_store").
		WithArgs("tickets/1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"status":"open"}`)))

	got, err := repo.Get(context.Background(), "tickets/1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"status":"open"}` {
		t.Errorf("unexpected value %s", got)
	}
}

func TestKVRepo_GetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT value FROM kv_store").
		WithArgs("tickets/missing").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := repo.Get(context.Background(), "tickets/missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestKVRepo_List(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT key\\s+FROM kv_store").
		WithArgs("history/").
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("history/a").AddRow("history/b"))

	keys, err := repo.List(context.Background(), "history/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "history/a" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestKVRepo_PutErrorPropagates(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO kv_store").
		WithArgs("k", []byte("v")).
		WillReturnError(errors.New("connection refused"))

	if err := repo.Put(context.Background(), "k", []byte("v")); err == nil {
		t.Error("expected error")
	}
}

func TestKVRepo_Delete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM kv_store").
		WithArgs("snapshots/1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "snapshots/1"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %s", err)
	}
}

func TestKVRepo_Count(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM kv_store").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 7 {
		t.Errorf("expected 7, got %d", count)
	}
}

func TestKVRepo_Ping(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectPing()
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("expected healthy ping, got %v", err)
	}

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	if err := repo.Ping(context.Background()); err == nil {
		t.Error("expected ping error when database is down")
	}
}

func TestKVRepo_PingThroughInstrumentedBackend(t *testing.T) {
	repo, mock := newMockRepo(t)
	backend := storage.Instrument(repo, "postgres")

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	pinger, ok := backend.(storage.Pinger)
	if !ok {
		t.Fatal("instrumented backend should be a Pinger")
	}
	if err := pinger.Ping(context.Background()); err == nil {
		t.Error("expected database outage to reach the health check")
	}
}
