package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestFindOrCreateConversation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery("INSERT INTO sms_conversations").
		WithArgs("+919876543210").
		WillReturnRows(pgxmock.NewRows([]string{"id", "phone_number", "created_at", "updated_at"}).
			AddRow(id, "+919876543210", now, now))

	conv, err := store.FindOrCreateConversation(context.Background(), "+919876543210")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	if conv.ID != id {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
}

func TestAppendMessage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	convID := uuid.New()
	mock.ExpectQuery("INSERT INTO sms_messages").
		WithArgs(pgxmock.AnyArg(), convID, DirectionOutbound, "missed you!", "SM123").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	msg, err := store.AppendMessage(context.Background(), convID, DirectionOutbound, "missed you!", "SM123")
	if err != nil {
		t.Fatalf("append message: %v", err)
	}
	if msg.Direction != DirectionOutbound || msg.Body != "missed you!" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}
