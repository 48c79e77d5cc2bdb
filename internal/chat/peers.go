package chat

import (
	"context"
	"sort"
	"time"
)

// LastMessage is the preview shown next to a counterpart.
type LastMessage struct {
	Content    string    `json:"content"`
	Date       time.Time `json:"date"`
	SenderRole Role      `json:"sender_type"`
}

// Peer is someone the viewer can open a chat with. ID is the value a chat
// view takes as its peer id.
type Peer struct {
	ID          uint64       `json:"id"`
	Role        Role         `json:"role"`
	Name        string       `json:"name"`
	Email       string       `json:"email,omitempty"`
	Specialty   string       `json:"specialty,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	UnreadCount int          `json:"unread_count"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
}

// Directory lists the counterparts a viewer can chat with.
type Directory interface {
	// ListTherapists is the patient-side directory.
	ListTherapists(ctx context.Context) ([]Peer, error)
	// ListPatients is every patient, for a therapist starting a new conversation.
	ListPatients(ctx context.Context) ([]Peer, error)
	// TherapistInbox is the patients who already wrote to the therapist.
	TherapistInbox(ctx context.Context, therapistID uint64) ([]Peer, error)
}

// SortByActivity orders peers newest conversation first; peers without a
// message keep their relative order at the end.
func SortByActivity(peers []Peer) {
	sort.SliceStable(peers, func(i, j int) bool {
		a, b := peers[i].LastMessage, peers[j].LastMessage
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Date.After(b.Date)
		}
	})
}
