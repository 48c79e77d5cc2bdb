package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/healme/healme-chat/internal/chat"
	"gorm.io/gorm"
)

func openLedger(t *testing.T, name string) *chat.Repo {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	repo := chat.NewRepo(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return repo
}

// workerSink delivers echoes the way chatd's outbox and cmd/worker do together.
type workerSink struct {
	repo *chat.Repo
}

func (w workerSink) RecordEcho(ctx context.Context, m chat.Message) error {
	ev, err := NewEchoEvent(m)
	if err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	got, err := DecodeEchoEvent(body)
	if err != nil {
		return err
	}
	return w.repo.InsertEcho(ctx, got.Record())
}

func TestEchoEvent_RoundTripToRecord(t *testing.T) {
	m := chat.Message{
		ID:          1740819600000,
		Content:     "offline hello",
		Date:        time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		SenderRole:  chat.RoleTherapist,
		PatientID:   7,
		TherapistID: 3,
		Pending:     true,
	}
	ev, err := NewEchoEvent(m)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := DecodeEchoEvent(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rec := got.Record()
	if rec.ID != ev.EventID || rec.PlaceholderID != m.ID {
		t.Fatalf("ids: %+v", rec)
	}
	if rec.PatientID != 7 || rec.TherapistID != 3 || rec.SenderRole != chat.RoleTherapist {
		t.Fatalf("pair: %+v", rec)
	}
	if rec.Content != m.Content || !rec.SentAt.Equal(m.Date) {
		t.Fatalf("payload: %+v", rec)
	}
}

func TestDecodeEchoEvent_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":     `{`,
		"no event id":  `{"patient_id": 7, "therapist_id": 3}`,
		"no therapist": `{"event_id": "x", "patient_id": 7}`,
	}
	for name, body := range cases {
		if _, err := DecodeEchoEvent([]byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEchoEvent_SharesLedgerRowWithDirectWrite(t *testing.T) {
	repo := openLedger(t, "outbox_and_ledger")
	ctx := context.Background()
	m := chat.Message{
		ID:          1740819600000,
		Content:     "offline hello",
		Date:        time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		SenderRole:  chat.RolePatient,
		PatientID:   7,
		TherapistID: 3,
		Pending:     true,
	}

	// chatd with DB_DSN and RABBIT_URL set records to both sinks
	for _, sink := range []chat.EchoSink{repo, workerSink{repo: repo}} {
		if err := sink.RecordEcho(ctx, m); err != nil {
			t.Fatalf("record echo: %v", err)
		}
	}
	// a redelivered event changes nothing either
	if err := (workerSink{repo: repo}).RecordEcho(ctx, m); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	recs, err := repo.ListEchoes(ctx, chat.ConversationKey{PatientID: 7, TherapistID: 3}, 10)
	if err != nil {
		t.Fatalf("list echoes: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one ledger row per echo, got %d", len(recs))
	}
	want, err := chat.EchoID(m)
	if err != nil {
		t.Fatalf("echo id: %v", err)
	}
	if recs[0].ID != want {
		t.Fatalf("row id %q, want %q", recs[0].ID, want)
	}
}

func TestEchoEvent_DistinctEchoesKeepDistinctRows(t *testing.T) {
	repo := openLedger(t, "distinct_echoes")
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, text := range []string{"same text", "same text"} {
		m := chat.Message{
			ID:          base.UnixMilli() + int64(i),
			Content:     text,
			Date:        base.Add(time.Duration(i) * time.Millisecond),
			SenderRole:  chat.RolePatient,
			PatientID:   7,
			TherapistID: 3,
		}
		if err := (workerSink{repo: repo}).RecordEcho(ctx, m); err != nil {
			t.Fatalf("record echo: %v", err)
		}
		if err := repo.RecordEcho(ctx, m); err != nil {
			t.Fatalf("record echo: %v", err)
		}
	}

	recs, err := repo.ListEchoes(ctx, chat.ConversationKey{PatientID: 7, TherapistID: 3}, 10)
	if err != nil {
		t.Fatalf("list echoes: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 rows for 2 echoes, got %d", len(recs))
	}
}
