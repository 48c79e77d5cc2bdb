package backend

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/healme/healme-chat/internal/chat"
)

type lastMessageDTO struct {
	Content    string    `json:"content"`
	Date       time.Time `json:"date"`
	SenderRole chat.Role `json:"sender_type"`
}

func (d *lastMessageDTO) toChat() *chat.LastMessage {
	if d == nil {
		return nil
	}
	return &chat.LastMessage{Content: d.Content, Date: d.Date, SenderRole: d.SenderRole}
}

type therapistDTO struct {
	ID          uint64          `json:"id"`
	UserID      uint64          `json:"user_id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	Specialty   string          `json:"specialite"`
	Phone       string          `json:"phone"`
	UnreadCount int             `json:"unread_count"`
	LastMessage *lastMessageDTO `json:"last_message"`
}

type patientDTO struct {
	PatientID   uint64          `json:"patient_id"`
	Name        string          `json:"patient_name"`
	Email       string          `json:"patient_email"`
	UnreadCount int             `json:"unread_count"`
	LastMessage *lastMessageDTO `json:"last_message"`
}

func (d patientDTO) toChat() chat.Peer {
	return chat.Peer{
		ID:          d.PatientID,
		Role:        chat.RolePatient,
		Name:        d.Name,
		Email:       d.Email,
		UnreadCount: d.UnreadCount,
		LastMessage: d.LastMessage.toChat(),
	}
}

// ListTherapists returns the therapist directory. Unread counts and the last
// message are only filled when the backend token belongs to a patient.
func (c *Client) ListTherapists(ctx context.Context) ([]chat.Peer, error) {
	var in []therapistDTO
	if err := c.do(ctx, http.MethodGet, c.Paths.Therapists, nil, &in); err != nil {
		return nil, err
	}
	out := make([]chat.Peer, 0, len(in))
	for _, d := range in {
		out = append(out, chat.Peer{
			ID:          d.ID,
			Role:        chat.RoleTherapist,
			Name:        d.Username,
			Email:       d.Email,
			Specialty:   d.Specialty,
			Phone:       d.Phone,
			UnreadCount: d.UnreadCount,
			LastMessage: d.LastMessage.toChat(),
		})
	}
	return out, nil
}

func (c *Client) ListPatients(ctx context.Context) ([]chat.Peer, error) {
	var in []patientDTO
	if err := c.do(ctx, http.MethodGet, c.Paths.Patients, nil, &in); err != nil {
		return nil, err
	}
	out := make([]chat.Peer, 0, len(in))
	for _, d := range in {
		out = append(out, d.toChat())
	}
	return out, nil
}

// TherapistInbox returns the patients who wrote to the therapist, newest first,
// with the number of their messages the therapist has not read.
func (c *Client) TherapistInbox(ctx context.Context, therapistID uint64) ([]chat.Peer, error) {
	path := strings.ReplaceAll(c.Paths.TherapistInbox, "{therapist_id}", strconv.FormatUint(therapistID, 10))
	var in []patientDTO
	if err := c.do(ctx, http.MethodGet, path, nil, &in); err != nil {
		return nil, err
	}
	out := make([]chat.Peer, 0, len(in))
	for _, d := range in {
		out = append(out, d.toChat())
	}
	chat.SortByActivity(out)
	return out, nil
}
