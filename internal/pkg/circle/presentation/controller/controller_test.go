package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobadapter "github.com/Behappytocode/circle/internal/infrastructure/blob/adapter"
	"github.com/Behappytocode/circle/internal/pkg/circle/application/roster"
	"github.com/Behappytocode/circle/internal/pkg/circle/application/upload"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	"github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/adapter"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// staticAuth maps fixed tokens to account ids.
type staticAuth struct {
	sessions map[string]string
}

func (a staticAuth) SignUp(ctx context.Context, name, password string) (circle.Account, error) {
	return circle.Account{}, repository.ErrInvalidCredentials
}

func (a staticAuth) SignIn(ctx context.Context, name, password string) (string, string, error) {
	return "", "", repository.ErrInvalidCredentials
}

func (a staticAuth) SignOut(ctx context.Context, token string) error { return nil }

func (a staticAuth) Verify(ctx context.Context, token string) (string, error) {
	if id, ok := a.sessions[token]; ok {
		return id, nil
	}
	return "", repository.ErrInvalidToken
}

type fixture struct {
	store *adapter.MemDataStore
	auth  staticAuth
	r     *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := adapter.NewMemDataStore(nil)
	store.AddAccount(circle.Account{ID: "alice", DisplayName: "Alice", Status: circle.StatusApproved, IsAdmin: true})
	store.AddAccount(circle.Account{ID: "bob", DisplayName: "Bob", Status: circle.StatusApproved})
	store.AddAccount(circle.Account{ID: "pete", DisplayName: "Pete", Status: circle.StatusPending})
	store.AddGroup(circle.Group{ID: "g1", Name: "climbing", CreatedBy: "alice"}, "alice", "bob")
	store.AddGroup(circle.Group{ID: "g2", Name: "book club", CreatedBy: "bob"}, "bob")

	auth := staticAuth{sessions: map[string]string{
		"tok-alice": "alice",
		"tok-bob":   "bob",
		"tok-pete":  "pete",
	}}

	r := gin.New()
	session := RequireSession(auth)
	approved := RequireApproved(store)
	admin := RequireAdmin()

	r.GET("/threads", session, approved, NewListThreadsController(store).Handle())
	r.GET("/threads/:threadId/messages", session, approved, NewGetMessagesController(store).Handle())
	r.POST("/threads/:threadId/messages", session, approved, NewSendMessageController(store).Handle())
	r.GET("/admin/accounts", session, approved, admin, NewListAccountsController(roster.New(store, nil, nil)).Handle())

	return &fixture{store: store, auth: auth, r: r}
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func TestRequireSession(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/threads", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/threads", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/threads", "tok-alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireApprovedBlocksPending(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/threads", "tok-pete", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "pending")
}

func TestRequireAdmin(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/admin/accounts", "tok-bob", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodGet, "/admin/accounts", "tok-alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pete")
}

func TestListThreadsWithFilter(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/threads", "tok-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Threads []circle.Thread `json:"threads"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// g1 first, then bob; pete is pending and invisible.
	require.Len(t, resp.Threads, 2)
	assert.Equal(t, "g1", resp.Threads[0].ID)
	assert.Equal(t, "bob", resp.Threads[1].ID)

	w = f.do(http.MethodGet, "/threads?q=CLIMB", "tok-alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Threads, 1)
	assert.Equal(t, "g1", resp.Threads[0].ID)
}

func TestSendAndFetchMessages(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/threads/bob/messages", "tok-alice",
		map[string]any{"kind": "direct", "body": "hello bob"})
	require.Equal(t, http.StatusCreated, w.Code)

	// The receiver reads the same thread from their side.
	w = f.do(http.MethodGet, "/threads/alice/messages?kind=direct", "tok-bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Messages []circle.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "alice", resp.Messages[0].SenderID)
	assert.Equal(t, "Alice", resp.Messages[0].SenderName)
	assert.Equal(t, "hello bob", *resp.Messages[0].Body)
}

func TestThreadAuthorization(t *testing.T) {
	f := newFixture(t)

	// alice is not a member of g2.
	w := f.do(http.MethodGet, "/threads/g2/messages?kind=group", "tok-alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/threads/g2/messages", "tok-alice",
		map[string]any{"kind": "group", "body": "let me in"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Members still pass.
	w = f.do(http.MethodPost, "/threads/g2/messages", "tok-bob",
		map[string]any{"kind": "group", "body": "this month: dune"})
	assert.Equal(t, http.StatusCreated, w.Code)

	// Direct threads require an approved peer; pete is pending.
	w = f.do(http.MethodPost, "/threads/pete/messages", "tok-alice",
		map[string]any{"kind": "direct", "body": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodGet, "/threads/ghost/messages?kind=direct", "tok-alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Self-addressed threads are never listed, so never addressable.
	w = f.do(http.MethodPost, "/threads/alice/messages", "tok-alice",
		map[string]any{"kind": "direct", "body": "note to self"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/threads/bob/messages", "tok-alice",
		map[string]any{"kind": "direct", "body": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/threads/bob/messages", "tok-alice",
		map[string]any{"kind": "carrier-pigeon", "body": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadController(t *testing.T) {
	blobStore, err := blobadapter.OpenCloudStore(context.Background(), map[string]blobadapter.BucketConfig{
		upload.BucketImages: {URL: "mem://images", PublicBase: "https://media.example.com/images"},
		upload.BucketVoice:  {URL: "mem://voice-notes"},
	})
	require.NoError(t, err)
	defer blobStore.Close()

	r := gin.New()
	r.POST("/uploads", NewUploadController(upload.New(blobStore, nil)).Handle())

	newUpload := func(kind, filename, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("kind", kind))
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := newUpload("image", "cat.png", "png-bytes")
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.URL, "https://media.example.com/images/"))
	assert.True(t, strings.HasSuffix(resp.URL, "-cat.png"))

	w = newUpload("video", "clip.mp4", "bytes")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
