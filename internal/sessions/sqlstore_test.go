package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/haasonsaas/researchagent/pkg/models"
)

func TestSQLStoreUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewSQLStoreFromDB(db)

	mock.ExpectExec("INSERT INTO session_summaries").
		WithArgs("sess_1", "Title", "first msg", 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Upsert(context.Background(), models.SessionSummary{
		SessionID:     "sess_1",
		DisplayName:   "Title",
		FirstMessage:  "first msg",
		ResponseCount: 3,
		UpdatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLStoreList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewSQLStoreFromDB(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"session_id", "display_name", "first_message", "response_count", "created_at", "updated_at"}).
		AddRow("sess_a", "A", "hello", 2, now, now).
		AddRow("sess_b", "B", "world", 1, now, now)
	mock.ExpectQuery("SELECT session_id, display_name").WillReturnRows(rows)

	out, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 || out[0].SessionID != "sess_a" || out[1].DisplayName != "B" {
		t.Fatalf("list = %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLStoreDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewSQLStoreFromDB(db)

	mock.ExpectExec("DELETE FROM session_summaries").
		WithArgs("sess_x").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Delete(context.Background(), "sess_x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
