package chat

import (
	"context"
	"strconv"

	"github.com/healme/healme-chat/internal/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultEchoLimit = 50
	maxEchoLimit     = 100
)

// Repo is the local echo ledger.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) AutoMigrate() error {
	return r.db.AutoMigrate(&EchoRecord{})
}

// EchoID is the ledger id of a local echo. The direct ledger write and the
// outbox event both use it, so one echo is one row whichever path lands first.
func EchoID(m Message) (string, error) {
	return common.DerivedULID(m.Date,
		strconv.FormatUint(m.PatientID, 10),
		strconv.FormatUint(m.TherapistID, 10),
		strconv.FormatInt(m.ID, 10),
		string(m.SenderRole),
		m.Content,
	)
}

// RecordEcho stores a local echo. It satisfies EchoSink.
func (r *Repo) RecordEcho(ctx context.Context, m Message) error {
	id, err := EchoID(m)
	if err != nil {
		return err
	}
	return r.InsertEcho(ctx, &EchoRecord{
		ID:            id,
		PlaceholderID: m.ID,
		PatientID:     m.PatientID,
		TherapistID:   m.TherapistID,
		SenderRole:    m.SenderRole,
		Content:       m.Content,
		SentAt:        m.Date,
	})
}

// InsertEcho stores rec as is. A record with an existing ID is ignored so
// redelivered outbox events do not duplicate rows.
func (r *Repo) InsertEcho(ctx context.Context, rec *EchoRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(rec).Error
}

// ListEchoes returns the conversation's echoes in DESC sent order (newest -> oldest).
func (r *Repo) ListEchoes(ctx context.Context, key ConversationKey, limit int) ([]EchoRecord, error) {
	switch {
	case limit <= 0:
		limit = defaultEchoLimit
	case limit > maxEchoLimit:
		limit = maxEchoLimit
	}
	var recs []EchoRecord
	if err := r.db.WithContext(ctx).
		Where("patient_id = ? AND therapist_id = ?", key.PatientID, key.TherapistID).
		Order("sent_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
