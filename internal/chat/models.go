package chat

import (
	"fmt"
	"strings"
	"time"
)

// Role is the sender side of a message. Values match the backend wire format.
type Role string

const (
	RolePatient   Role = "patient"
	RoleTherapist Role = "therapeute"
)

// ParseRole accepts the wire value and the english spelling for therapists.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patient":
		return RolePatient, nil
	case "therapeute", "therapist":
		return RoleTherapist, nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// ConversationKey identifies the (patient, therapist) pair of a conversation.
type ConversationKey struct {
	PatientID   uint64 `json:"patient_id"`
	TherapistID uint64 `json:"therapist_id"`
}

func (k ConversationKey) Valid() bool { return k.PatientID != 0 && k.TherapistID != 0 }

func (k ConversationKey) String() string {
	return fmt.Sprintf("%d/%d", k.PatientID, k.TherapistID)
}

type Message struct {
	ID            int64     `json:"id"`
	Content       string    `json:"contenu"`
	Date          time.Time `json:"date"`
	SenderRole    Role      `json:"sender_type"`
	IsRead        bool      `json:"is_read"`
	PatientID     uint64    `json:"patient"`
	TherapistID   uint64    `json:"therapeute"`
	PatientName   string    `json:"patient_name,omitempty"`
	TherapistName string    `json:"therapist_name,omitempty"`

	// Pending marks a local echo that never reached the backend.
	Pending bool `json:"pending,omitempty"`
}

// EchoRecord is the ledger row written for every local echo.
type EchoRecord struct {
	ID            string    `gorm:"primaryKey;size:26" json:"id"` // ULID
	PlaceholderID int64     `gorm:"index;not null" json:"placeholder_id"`
	PatientID     uint64    `gorm:"not null;index:idx_echo_pair,priority:1" json:"patient_id"`
	TherapistID   uint64    `gorm:"not null;index:idx_echo_pair,priority:2" json:"therapist_id"`
	SenderRole    Role      `gorm:"type:varchar(16);not null" json:"sender_type"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	SentAt        time.Time `gorm:"index" json:"sent_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func (EchoRecord) TableName() string { return "chat_local_echoes" }
