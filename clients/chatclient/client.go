package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"contextbase/httpclient"
	"contextbase/models"
)

const (
	chatsPath   = "/api/v1/chats/"
	maxBodySize = 5 * 1024 * 1024
)

// Client 는 원격 채팅 서비스의 /api/v1/chats API 를 호출한다.
type Client struct {
	base *httpclient.BaseClient
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("chat-service request failed: status=%d body=%s", e.StatusCode, e.Body)
}

// HTTPStatus 는 상위 계층이 구체 타입을 몰라도 상태 코드를 얻을 수 있게 한다.
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

// Detail 은 FastAPI 형식 {"detail": "..."} 본문이면 detail 문자열을 반환한다.
func (e *HTTPError) Detail() string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal([]byte(e.Body), &body); err != nil {
		return ""
	}
	if s, ok := body.Detail.(string); ok {
		return s
	}
	return ""
}

func New(base *httpclient.BaseClient) *Client {
	return &Client{base: base}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type updateChatRequest struct {
	Name string `json:"name"`
}

type createChatData struct {
	Name string `json:"name,omitempty"`
}

func chatPath(chatID string, rest ...string) string {
	parts := append([]string{"/api/v1/chats", url.PathEscape(chatID)}, rest...)
	return strings.Join(parts, "/")
}

// ListChats 는 사용자의 채팅 목록을 생성 시각 역순으로 가져온다.
func (c *Client) ListChats(ctx context.Context) ([]models.Chat, error) {
	var out []models.Chat
	if err := c.doJSON(ctx, http.MethodGet, chatsPath, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Chat{}
	}
	return out, nil
}

// GetMessages 는 채팅의 확정 메시지를 시간 순으로 가져온다.
func (c *Client) GetMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	var out []models.Message
	if err := c.doJSON(ctx, http.MethodGet, chatPath(chatID, "messages"), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Message{}
	}
	return out, nil
}

// CreateChat 은 multipart 로 채팅을 만든다. 이름은 "data" 필드의 JSON, 파일은 "files" 파트로 보낸다.
func (c *Client) CreateChat(ctx context.Context, name string, files []models.FileUpload) (models.CreateChatResult, error) {
	var data []byte
	if strings.TrimSpace(name) != "" {
		var err error
		if data, err = json.Marshal(createChatData{Name: name}); err != nil {
			return models.CreateChatResult{}, err
		}
	}
	body, contentType, err := encodeMultipart(data, files)
	if err != nil {
		return models.CreateChatResult{}, err
	}

	var out models.CreateChatResult
	if err := c.do(ctx, http.MethodPost, chatsPath, body, contentType, &out); err != nil {
		return models.CreateChatResult{}, err
	}
	return out, nil
}

// SendMessage 는 메시지를 보내고 서버가 확정한 사용자/assistant 메시지를 받는다.
// LLM 응답을 기다리므로 오래 걸릴 수 있다.
func (c *Client) SendMessage(ctx context.Context, chatID, content string) (models.SendResult, error) {
	var out models.SendResult
	err := c.doJSON(ctx, http.MethodPost, chatPath(chatID, "messages"), sendMessageRequest{Content: content}, &out)
	return out, err
}

// UploadToChat 은 기존 채팅의 컬렉션에 파일을 추가한다.
func (c *Client) UploadToChat(ctx context.Context, chatID string, files []models.FileUpload) (models.UploadResult, error) {
	body, contentType, err := encodeMultipart(nil, files)
	if err != nil {
		return models.UploadResult{}, err
	}
	var out models.UploadResult
	err = c.do(ctx, http.MethodPost, chatPath(chatID, "upload"), body, contentType, &out)
	return out, err
}

func (c *Client) UpdateChat(ctx context.Context, chatID, name string) (models.Chat, error) {
	var out models.Chat
	err := c.doJSON(ctx, http.MethodPut, chatPath(chatID), updateChatRequest{Name: name}, &out)
	return out, err
}

func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.doJSON(ctx, http.MethodDelete, chatPath(chatID), nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, relPath string, payload any, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}
	return c.do(ctx, method, relPath, body, contentType, out)
}

func (c *Client) do(ctx context.Context, method, relPath string, body io.Reader, contentType string, out any) error {
	req, err := c.base.NewRequest(ctx, method, relPath, nil, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if readErr != nil {
		return fmt.Errorf("chat-service response read failed: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("chat-service response decode failed: %w", err)
	}
	return nil
}

func encodeMultipart(data []byte, files []models.FileUpload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if data != nil {
		if err := w.WriteField("data", string(data)); err != nil {
			return nil, "", err
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(f.Filename)))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
