package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vasu1712/chatcore/internal/auth"
	"github.com/Vasu1712/chatcore/internal/chat"
	"github.com/Vasu1712/chatcore/internal/feed"
	"github.com/Vasu1712/chatcore/internal/logger"
	"github.com/Vasu1712/chatcore/internal/middleware"
	"github.com/Vasu1712/chatcore/internal/models"
	"github.com/Vasu1712/chatcore/internal/storage/memory"
	"github.com/Vasu1712/chatcore/internal/ws"
)

type testEnv struct {
	router   *mux.Router
	svc      *chat.Service
	verifier *auth.JWTVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	verifier, err := auth.NewJWTVerifier("test-secret")
	require.NoError(t, err)
	svc := chat.NewService(memory.NewStore(), feed.NewBroker(feed.DefaultWindow, logger.Discard()), chat.Options{Logger: logger.Discard()})

	router := mux.NewRouter()
	router.Use(middleware.Authenticate(verifier, nil))
	RegisterUserRoutes(router, &UserHandler{Service: svc, Streamer: ws.NewStreamer("*")})
	return &testEnv{router: router, svc: svc, verifier: verifier}
}

func (e *testEnv) token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := e.verifier.IssueToken(uid, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, uid, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Authorization", "Bearer "+e.token(t, uid))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "bob", http.MethodGet, "/users/alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, "alice", http.MethodPost, "/users/alice", map[string]string{
		"email":           "alice@example.com",
		"profileImageUrl": "https://img/alice.png",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "bob", http.MethodGet, "/users/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var u models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&u))
	assert.Equal(t, models.User{UID: "alice", Email: "alice@example.com", ProfileImageURL: "https://img/alice.png"}, u)

	rec = env.do(t, "bob", http.MethodPost, "/users/alice", map[string]string{"email": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListRecent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.PutUser(ctx, models.User{UID: "B", Email: "b@example.com"})
	require.NoError(t, err)

	rec := env.do(t, "A", http.MethodGet, "/users/A/recent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	_, err = env.svc.Send(ctx, "A", "B", "hi")
	require.NoError(t, err)
	_, err = env.svc.Send(ctx, "B", "A", "hey")
	require.NoError(t, err)

	rec = env.do(t, "A", http.MethodGet, "/users/A/recent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.RecentConversationEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].PeerID)
	assert.Equal(t, "hey", entries[0].Text)
	assert.Equal(t, "b@example.com", entries[0].PeerEmail)

	rec = env.do(t, "A", http.MethodGet, "/users/A/recent?since=99", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = env.do(t, "B", http.MethodGet, "/users/A/recent", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStreamRecent(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/users/A/recent?access_token=" + env.token(t, "A")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, err = env.svc.Send(context.Background(), "B", "A", "hey")
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.ConversationUpdated, ev.Kind)
	require.NotNil(t, ev.Entry)
	assert.Equal(t, "B", ev.Entry.PeerID)
	assert.Equal(t, "hey", ev.Entry.Text)
}
