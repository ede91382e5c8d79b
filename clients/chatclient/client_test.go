package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contextbase/auth"
	"contextbase/httpclient"
	"contextbase/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *auth.StaticTokenSource) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tokens := auth.NewStaticTokenSource("tok")
	return New(httpclient.NewBaseClient(srv.URL, httpclient.Config{Tokens: tokens})), tokens
}

func TestListChats(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/chats/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":"c2","name":"Second","user_id":"u1","collection_id":"col2","created_at":"2025-01-02T00:00:00Z"},
			{"id":"c1","name":"First","user_id":"u1","created_at":"2025-01-01T00:00:00Z","updated_at":null}
		]`)
	})

	chats, err := c.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "c2", chats[0].ID)
	require.NotNil(t, chats[0].CollectionID)
	assert.Equal(t, "col2", *chats[0].CollectionID)
	assert.Nil(t, chats[1].UpdatedAt)
}

func TestListChats_EmptyIsNonNil(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})
	chats, err := c.ListChats(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, chats)
	assert.Empty(t, chats)
}

func TestGetMessages(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chats/c1/messages", r.URL.Path)
		io.WriteString(w, `[
			{"id":"m1","chat_id":"c1","role":"user","content":"hi","created_at":"2025-01-01T00:00:00Z"},
			{"id":"m2","chat_id":"c1","role":"assistant","content":"hello","sources":"doc.pdf p3","created_at":"2025-01-01T00:00:01Z"}
		]`)
	})

	msgs, err := c.GetMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	require.NotNil(t, msgs[1].Sources)
	assert.False(t, msgs[1].IsProvisional())
}

func TestSendMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chats/c1/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "what is in the report?", body["content"])
		io.WriteString(w, `{
			"user_message":{"id":"m1","chat_id":"c1","role":"user","content":"what is in the report?","created_at":"2025-01-01T00:00:00Z"},
			"ai_message":{"id":"m2","chat_id":"c1","role":"assistant","content":"Revenue grew.","created_at":"2025-01-01T00:00:02Z"},
			"chat_name":"Report summary"
		}`)
	})

	res, err := c.SendMessage(context.Background(), "c1", "what is in the report?")
	require.NoError(t, err)
	assert.Equal(t, "m1", res.UserMessage.ID)
	assert.Equal(t, "m2", res.AIMessage.ID)
	require.NotNil(t, res.ChatName)
	assert.Equal(t, "Report summary", *res.ChatName)
}

func TestCreateChat_Multipart(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chats/", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.JSONEq(t, `{"name":"Research"}`, r.FormValue("data"))

		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.pdf", files[0].Filename)
		assert.Equal(t, "application/pdf", files[0].Header.Get("Content-Type"))
		f, err := files[1].Open()
		require.NoError(t, err)
		b, _ := io.ReadAll(f)
		assert.Equal(t, "plain text", string(b))

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message":"Chat created","chat":{"id":"c9","name":"Research","created_at":"2025-01-01T00:00:00Z"},"documents":[{"id":"d1","collection_id":"col","file_path":"/x/a.pdf","created_at":"2025-01-01T00:00:00Z"}]}`)
	})

	res, err := c.CreateChat(context.Background(), "Research", []models.FileUpload{
		{Filename: "a.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		{Filename: "b.txt", Data: []byte("plain text")},
	})
	require.NoError(t, err)
	assert.Equal(t, "c9", res.Chat.ID)
	assert.Len(t, res.Documents, 1)
}

func TestCreateChat_NoNameOmitsDataField(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, ok := r.MultipartForm.Value["data"]
		assert.False(t, ok)
		io.WriteString(w, `{"message":"ok","chat":{"id":"c1","name":"Documents","created_at":"2025-01-01T00:00:00Z"},"documents":[]}`)
	})

	res, err := c.CreateChat(context.Background(), "", []models.FileUpload{{Filename: "a.txt", Data: []byte("x")}})
	require.NoError(t, err)
	assert.True(t, res.Chat.HasGenericName())
}

func TestUpdateAndDeleteChat(t *testing.T) {
	var methods []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		assert.Equal(t, "/api/v1/chats/c1", r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		io.WriteString(w, `{"id":"c1","name":"Renamed","created_at":"2025-01-01T00:00:00Z"}`)
	})

	chat, err := c.UpdateChat(context.Background(), "c1", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", chat.Name)
	require.NoError(t, c.DeleteChat(context.Background(), "c1"))
	assert.Equal(t, []string{http.MethodPut, http.MethodDelete}, methods)
}

func TestUploadToChat(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chats/c1/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Len(t, r.MultipartForm.File["files"], 1)
		io.WriteString(w, `{"message":"Uploaded 1 document(s)","documents":[{"id":"d1","collection_id":"col","file_path":"p","created_at":"2025-01-01T00:00:00Z"}]}`)
	})

	res, err := c.UploadToChat(context.Background(), "c1", []models.FileUpload{{Filename: "n.md", Data: []byte("# notes")}})
	require.NoError(t, err)
	assert.Len(t, res.Documents, 1)
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"detail":"Chat not found"}`, wantDetail: "Chat not found"},
		{name: "server error plain", status: http.StatusInternalServerError, body: `oops`},
		{name: "validation detail list", status: http.StatusUnprocessableEntity, body: `{"detail":[{"msg":"field required"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := c.GetMessages(context.Background(), "c1")
			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.HTTPStatus())
			assert.Equal(t, tt.wantDetail, httpErr.Detail())
		})
	}
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	c, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"Could not validate credentials"}`)
	})

	_, err := c.ListChats(context.Background())
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)

	_, err = tokens.Token(context.Background())
	assert.ErrorIs(t, err, auth.ErrNoToken)
}
