package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/healme/healme-chat/internal/chat"
	"github.com/healme/healme-chat/internal/config"
)

// Paths are the backend routes. {patient_id} and {therapist_id} are substituted.
type Paths struct {
	Conversation          string
	ConversationSecondary string
	LegacyMessages        string
	SendMessage           string
	LegacySend            string
	Therapists            string
	Patients              string
	TherapistInbox        string
}

// DefaultPaths match the HealMe API. The secondary conversation route is the
// same one the backend has always exposed; override it when a second shape is deployed.
// The inbox route carries its own api/ prefix inside the /api/ mount.
func DefaultPaths() Paths {
	return Paths{
		Conversation:          "/api/conversation/{patient_id}/{therapist_id}/",
		ConversationSecondary: "/api/conversation/{patient_id}/{therapist_id}/",
		LegacyMessages:        "/api/messages/",
		SendMessage:           "/api/send-message/",
		LegacySend:            "/api/messages/",
		Therapists:            "/api/therapists/",
		Patients:              "/api/all-patients/",
		TherapistInbox:        "/api/api/therapist/{therapist_id}/conversations/",
	}
}

// Merge returns p with every non-empty field of o applied.
func (p Paths) Merge(o Paths) Paths {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.Conversation, o.Conversation)
	set(&p.ConversationSecondary, o.ConversationSecondary)
	set(&p.LegacyMessages, o.LegacyMessages)
	set(&p.SendMessage, o.SendMessage)
	set(&p.LegacySend, o.LegacySend)
	set(&p.Therapists, o.Therapists)
	set(&p.Patients, o.Patients)
	set(&p.TherapistInbox, o.TherapistInbox)
	return p
}

type Client struct {
	BaseURL string
	Token   string
	Paths   Paths
	Client  *http.Client
}

var (
	_ chat.Backend   = (*Client)(nil)
	_ chat.Directory = (*Client)(nil)
)

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}
	if timeout <= 0 {
		timeout = chat.DefaultRequestTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Paths:   DefaultPaths(),
		Client:  &http.Client{Timeout: timeout},
	}
}

// NewFromConfig builds a client with the configured base URL, token, timeout and path overrides.
func NewFromConfig(cfg config.Config) *Client {
	c := NewClient(cfg.BackendBaseURL, cfg.BackendToken, cfg.RequestTimeout)
	c.Paths = c.Paths.Merge(Paths{
		Conversation:          cfg.ConversationPath,
		ConversationSecondary: cfg.ConversationAltPath,
		LegacyMessages:        cfg.LegacyMessagesPath,
		SendMessage:           cfg.SendMessagePath,
		LegacySend:            cfg.LegacySendMessagePath,
		Therapists:            cfg.TherapistsPath,
		Patients:              cfg.PatientsPath,
		TherapistInbox:        cfg.TherapistInboxPath,
	})
	return c
}

// StatusError is a non-2xx backend reply.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := e.Body
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("backend: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, msg)
}

// Unwrap lets errors.Is(err, chat.ErrEndpointNotFound) match a 404.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return chat.ErrEndpointNotFound
	}
	return nil
}

func IsNotFound(err error) bool { return errors.Is(err, chat.ErrEndpointNotFound) }

type sendMessageReq struct {
	Content     string    `json:"contenu"`
	TherapistID uint64    `json:"therapist_id"`
	PatientID   uint64    `json:"patient_id"`
	SenderRole  chat.Role `json:"sender_type"`
}

type legacySendReq struct {
	Content     string `json:"contenu"`
	TherapistID uint64 `json:"therapeute"`
}

func (c *Client) FetchConversation(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	var out []chat.Message
	if err := c.do(ctx, http.MethodGet, c.pairPath(c.Paths.Conversation, key), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchConversationSecondary(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	var out []chat.Message
	if err := c.do(ctx, http.MethodGet, c.pairPath(c.Paths.ConversationSecondary, key), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchMessagesLegacy lists messages by therapist only. The backend decides which patient.
func (c *Client) FetchMessagesLegacy(ctx context.Context, therapistID uint64) ([]chat.Message, error) {
	q := url.Values{}
	q.Set("therapist_id", strconv.FormatUint(therapistID, 10))
	var out []chat.Message
	if err := c.do(ctx, http.MethodGet, c.Paths.LegacyMessages+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, req chat.SendRequest) (*chat.Message, error) {
	body := sendMessageReq{
		Content:     req.Content,
		TherapistID: req.TherapistID,
		PatientID:   req.PatientID,
		SenderRole:  req.SenderRole,
	}
	var out chat.Message
	if err := c.do(ctx, http.MethodPost, c.Paths.SendMessage, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessageLegacy posts the reduced payload; the backend attaches the patient itself.
func (c *Client) SendMessageLegacy(ctx context.Context, content string, therapistID uint64) (*chat.Message, error) {
	var out chat.Message
	if err := c.do(ctx, http.MethodPost, c.Paths.LegacySend, legacySendReq{Content: content, TherapistID: therapistID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) pairPath(tmpl string, key chat.ConversationKey) string {
	return strings.NewReplacer(
		"{patient_id}", strconv.FormatUint(key.PatientID, 10),
		"{therapist_id}", strconv.FormatUint(key.TherapistID, 10),
	).Replace(tmpl)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.Client == nil {
		return errors.New("backend: http client is nil")
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return &StatusError{
			Method:     method,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, u, err)
	}
	return nil
}
