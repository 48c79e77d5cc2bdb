package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/healme/healme-chat/internal/auth"
	"github.com/healme/healme-chat/internal/chat"
	"github.com/healme/healme-chat/internal/config"
	"github.com/healme/healme-chat/internal/httpapi/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "router-test-secret"

// stubBackend answers every call from an in-memory list, or fails with 404s when down.
type stubBackend struct {
	mu     sync.Mutex
	down   bool
	msgs   []chat.Message
	nextID int64
}

var errDown = fmt.Errorf("stub: %w", chat.ErrEndpointNotFound)

func (b *stubBackend) list() ([]chat.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return nil, errDown
	}
	return append([]chat.Message(nil), b.msgs...), nil
}

func (b *stubBackend) FetchConversation(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	return b.list()
}

func (b *stubBackend) FetchConversationSecondary(ctx context.Context, key chat.ConversationKey) ([]chat.Message, error) {
	return b.list()
}

func (b *stubBackend) FetchMessagesLegacy(ctx context.Context, therapistID uint64) ([]chat.Message, error) {
	return b.list()
}

func (b *stubBackend) SendMessage(ctx context.Context, req chat.SendRequest) (*chat.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return nil, errDown
	}
	b.nextID++
	m := chat.Message{
		ID:          b.nextID,
		Content:     req.Content,
		Date:        time.Now().UTC(),
		SenderRole:  req.SenderRole,
		PatientID:   req.PatientID,
		TherapistID: req.TherapistID,
	}
	b.msgs = append(b.msgs, m)
	return &m, nil
}

func (b *stubBackend) SendMessageLegacy(ctx context.Context, content string, therapistID uint64) (*chat.Message, error) {
	return nil, errors.New("stub: legacy send unavailable")
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, b chat.Backend, ledger *chat.Repo) (*gin.Engine, *chat.Registry) {
	t.Helper()
	return newDirectoryRouter(t, b, nil, ledger)
}

func newDirectoryRouter(t *testing.T, b chat.Backend, dir chat.Directory, ledger *chat.Repo) (*gin.Engine, *chat.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := chat.NewRegistry(func(key chat.ConversationKey, role chat.Role) *chat.Engine {
		opts := chat.Options{Key: key, Role: role, Backend: b, PollInterval: time.Hour, RequestTimeout: time.Second}
		if ledger != nil {
			opts.Echoes = []chat.EchoSink{ledger}
		}
		return chat.NewEngine(opts)
	}, nil)
	t.Cleanup(reg.Close)

	h := handlers.NewHandler(config.Config{JWTSecret: testSecret}, reg, dir, ledger, nil)
	return NewRouter(h, nil), reg
}

func bearer(t *testing.T, id uint64, role chat.Role) string {
	t.Helper()
	tok, err := auth.SignJWT(id, role, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w.Code, env
}

func snapshotOf(t *testing.T, env envelope) chat.Snapshot {
	t.Helper()
	var s struct {
		Messages []chat.Message `json:"messages"`
		Loading  bool           `json:"loading"`
		Degraded bool           `json:"degraded"`
		Draft    string         `json:"draft"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return chat.Snapshot{Messages: s.Messages, Loading: s.Loading, Degraded: s.Degraded, Draft: s.Draft}
}

func TestChatRoutes_RequireToken(t *testing.T) {
	r, _ := newTestRouter(t, &stubBackend{}, nil)

	code, env := call(t, r, http.MethodPost, "/chat/3/enter", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 40101, env.Code)

	code, env = call(t, r, http.MethodPost, "/chat/3/enter", "Bearer nope", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 40102, env.Code)

	code, _ = call(t, r, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestChatFlow_EnterDraftSend(t *testing.T) {
	b := &stubBackend{msgs: []chat.Message{{ID: 1, Content: "welcome", SenderRole: chat.RoleTherapist, PatientID: 7, TherapistID: 3}}, nextID: 1}
	r, reg := newTestRouter(t, b, nil)
	tok := bearer(t, 7, chat.RolePatient)

	code, _ := call(t, r, http.MethodGet, "/chat/3/messages", tok, nil)
	assert.Equal(t, http.StatusNotFound, code, "messages before enter")

	code, env := call(t, r, http.MethodPost, "/chat/3/enter", tok, nil)
	require.Equal(t, http.StatusOK, code)
	snap := snapshotOf(t, env)
	assert.False(t, snap.Loading)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "welcome", snap.Messages[0].Content)

	_, ok := reg.Get(chat.ConversationKey{PatientID: 7, TherapistID: 3}, chat.RolePatient)
	assert.True(t, ok)

	code, _ = call(t, r, http.MethodPut, "/chat/3/draft", tok, gin.H{"text": "how are you?"})
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, r, http.MethodPost, "/chat/3/messages", tok, nil)
	require.Equal(t, http.StatusOK, code)
	snap = snapshotOf(t, env)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "how are you?", snap.Messages[1].Content)
	assert.Equal(t, chat.RolePatient, snap.Messages[1].SenderRole)
	assert.Empty(t, snap.Draft)

	code, env = call(t, r, http.MethodPost, "/chat/3/messages", tok, gin.H{"text": "   "})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, snapshotOf(t, env).Messages, 2, "blank text is ignored")

	code, _ = call(t, r, http.MethodPost, "/chat/3/leave", tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, reg.Len())
}

func TestChatFlow_TherapistSideOfPair(t *testing.T) {
	b := &stubBackend{}
	r, reg := newTestRouter(t, b, nil)

	code, _ := call(t, r, http.MethodPost, "/chat/7/enter", bearer(t, 3, chat.RoleTherapist), nil)
	require.Equal(t, http.StatusOK, code)

	e, ok := reg.Get(chat.ConversationKey{PatientID: 7, TherapistID: 3}, chat.RoleTherapist)
	require.True(t, ok)
	assert.Equal(t, chat.RoleTherapist, e.Role())
}

func TestChatFlow_BackendDown(t *testing.T) {
	db, err := gorm.Open(gormsqlite.Open("file:router_echoes?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	ledger := chat.NewRepo(db)
	require.NoError(t, ledger.AutoMigrate())

	b := &stubBackend{down: true}
	r, _ := newTestRouter(t, b, ledger)
	tok := bearer(t, 7, chat.RolePatient)

	code, env := call(t, r, http.MethodPost, "/chat/3/enter", tok, nil)
	require.Equal(t, http.StatusOK, code)
	snap := snapshotOf(t, env)
	assert.True(t, snap.Degraded)
	assert.Len(t, snap.Messages, 3)

	code, env = call(t, r, http.MethodPost, "/chat/3/messages", tok, gin.H{"text": "are you there?"})
	require.Equal(t, http.StatusOK, code)
	snap = snapshotOf(t, env)
	require.Len(t, snap.Messages, 4)
	assert.True(t, snap.Messages[3].Pending)

	code, env = call(t, r, http.MethodGet, "/chat/3/echoes", tok, nil)
	require.Equal(t, http.StatusOK, code)
	var body struct {
		Echoes []chat.EchoRecord `json:"echoes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body.Echoes, 1)
	assert.Equal(t, "are you there?", body.Echoes[0].Content)
}

func TestEchoes_DisabledWithoutLedger(t *testing.T) {
	r, _ := newTestRouter(t, &stubBackend{}, nil)
	code, env := call(t, r, http.MethodGet, "/chat/3/echoes", bearer(t, 7, chat.RolePatient), nil)
	assert.Equal(t, http.StatusNotImplemented, code)
	assert.Equal(t, 50101, env.Code)
}

func TestEnter_InvalidPeer(t *testing.T) {
	r, _ := newTestRouter(t, &stubBackend{}, nil)
	code, env := call(t, r, http.MethodPost, "/chat/abc/enter", bearer(t, 7, chat.RolePatient), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 10004, env.Code)
}

// stubDirectory records which listing each request reached.
type stubDirectory struct {
	mu        sync.Mutex
	calls     []string
	inboxOf   uint64
	therapist []chat.Peer
	patients  []chat.Peer
	inbox     []chat.Peer
	err       error
}

func (d *stubDirectory) record(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, name)
}

func (d *stubDirectory) ListTherapists(ctx context.Context) ([]chat.Peer, error) {
	d.record("therapists")
	return d.therapist, d.err
}

func (d *stubDirectory) ListPatients(ctx context.Context) ([]chat.Peer, error) {
	d.record("patients")
	return d.patients, d.err
}

func (d *stubDirectory) TherapistInbox(ctx context.Context, therapistID uint64) ([]chat.Peer, error) {
	d.record("inbox")
	d.mu.Lock()
	d.inboxOf = therapistID
	d.mu.Unlock()
	return d.inbox, d.err
}

type peersBody struct {
	Scope string      `json:"scope"`
	Peers []chat.Peer `json:"peers"`
}

func peersOf(t *testing.T, env envelope) peersBody {
	t.Helper()
	var body peersBody
	require.NoError(t, json.Unmarshal(env.Data, &body))
	return body
}

func TestPeers_ViewDependsOnRole(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	dir := &stubDirectory{
		therapist: []chat.Peer{{ID: 3, Role: chat.RoleTherapist, Name: "dr_amal", Specialty: "CBT"}},
		patients:  []chat.Peer{{ID: 7, Role: chat.RolePatient, Name: "sami"}, {ID: 8, Role: chat.RolePatient, Name: "lina"}},
		inbox: []chat.Peer{{ID: 7, Role: chat.RolePatient, Name: "sami", UnreadCount: 2,
			LastMessage: &chat.LastMessage{Content: "hello", Date: at, SenderRole: chat.RolePatient}}},
	}
	r, _ := newDirectoryRouter(t, &stubBackend{}, dir, nil)

	code, env := call(t, r, http.MethodGet, "/peers", bearer(t, 7, chat.RolePatient), nil)
	require.Equal(t, http.StatusOK, code)
	body := peersOf(t, env)
	assert.Equal(t, "therapists", body.Scope)
	require.Len(t, body.Peers, 1)
	assert.Equal(t, "CBT", body.Peers[0].Specialty)

	code, env = call(t, r, http.MethodGet, "/peers", bearer(t, 3, chat.RoleTherapist), nil)
	require.Equal(t, http.StatusOK, code)
	body = peersOf(t, env)
	assert.Equal(t, "inbox", body.Scope)
	require.Len(t, body.Peers, 1)
	assert.Equal(t, 2, body.Peers[0].UnreadCount)
	require.NotNil(t, body.Peers[0].LastMessage)
	assert.Equal(t, "hello", body.Peers[0].LastMessage.Content)
	assert.Equal(t, uint64(3), dir.inboxOf)

	code, env = call(t, r, http.MethodGet, "/peers?scope=all", bearer(t, 3, chat.RoleTherapist), nil)
	require.Equal(t, http.StatusOK, code)
	body = peersOf(t, env)
	assert.Equal(t, "patients", body.Scope)
	assert.Len(t, body.Peers, 2)

	// a patient cannot list every patient
	code, env = call(t, r, http.MethodGet, "/peers?scope=all", bearer(t, 7, chat.RolePatient), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "therapists", peersOf(t, env).Scope)

	assert.Equal(t, []string{"therapists", "inbox", "patients", "therapists"}, dir.calls)
}

func TestPeers_EmptyListIsArray(t *testing.T) {
	r, _ := newDirectoryRouter(t, &stubBackend{}, &stubDirectory{}, nil)
	code, env := call(t, r, http.MethodGet, "/peers", bearer(t, 3, chat.RoleTherapist), nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"scope":"inbox","peers":[]}`, string(env.Data))
}

func TestPeers_Errors(t *testing.T) {
	r, _ := newTestRouter(t, &stubBackend{}, nil)
	code, env := call(t, r, http.MethodGet, "/peers", bearer(t, 7, chat.RolePatient), nil)
	assert.Equal(t, http.StatusNotImplemented, code)
	assert.Equal(t, 50102, env.Code)

	code, env = call(t, r, http.MethodGet, "/peers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 40101, env.Code)

	r, _ = newDirectoryRouter(t, &stubBackend{}, &stubDirectory{err: errDown}, nil)
	code, env = call(t, r, http.MethodGet, "/peers", bearer(t, 7, chat.RolePatient), nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, 50201, env.Code)
}
