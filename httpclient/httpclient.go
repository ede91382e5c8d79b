package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"contextbase/auth"
	"contextbase/internal/logger"
	"contextbase/trace"
)

const maxBodyLog = 1024

// Config 는 원격 채팅 서비스용 HTTP 클라이언트 설정이다.
// Tokens 가 nil 이면 Authorization 헤더를 붙이지 않는다.
type Config struct {
	Timeout time.Duration
	Tokens  auth.TokenSource
}

// loggingRoundTripper 는 아웃바운드 호출마다 X-Request-Id/X-Span-Id 를 붙이고 결과를 로깅한다.
type loggingRoundTripper struct {
	inner http.RoundTripper
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	requestID, spanID := trace.NextSpanID(req.Context())
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("X-Span-Id", spanID)

	// multipart 본문(파일)은 스니펫을 남기지 않는다.
	var bodySnippet string
	if req.Body != nil && !strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/") {
		if bodyBytes, err := io.ReadAll(req.Body); err == nil {
			if len(bodyBytes) > maxBodyLog {
				bodySnippet = string(bodyBytes[:maxBodyLog])
			} else {
				bodySnippet = string(bodyBytes)
			}
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	fields := logger.Fields{
		"method":     req.Method,
		"url":        req.URL.String(),
		"request_id": requestID,
		"span_id":    spanID,
	}
	if op := trace.OperationFromContext(req.Context()); op != "" {
		fields["op"] = op
	}
	if bodySnippet != "" {
		fields["body"] = bodySnippet
	}

	resp, err := l.inner.RoundTrip(req)
	fields["duration"] = time.Since(start).String()
	if err != nil {
		fields["error"] = err.Error()
		logger.ErrorWithFields("httpclient request failed", fields)
		return nil, err
	}

	fields["status"] = resp.StatusCode
	logger.DebugWithFields("httpclient request done", fields)
	return resp, nil
}

// bearerRoundTripper 는 세션 토큰을 Authorization 헤더로 붙이고,
// 401 응답을 받으면 토큰을 폐기한다.
type bearerRoundTripper struct {
	inner  http.RoundTripper
	tokens auth.TokenSource
}

func (b *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := b.tokens.Token(req.Context())
	switch {
	case err == nil:
		// RoundTripper 는 원본 요청을 수정하면 안 된다.
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+token)
	case errors.Is(err, auth.ErrNoToken):
		// 토큰 없이 호출하고 서버 판단에 맡긴다.
	default:
		return nil, err
	}

	resp, err := b.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		logger.InfoWithFields("session token rejected, invalidating", logger.Fields{
			"url":        req.URL.String(),
			"request_id": req.Header.Get("X-Request-Id"),
		})
		b.tokens.Invalidate()
	}
	return resp, nil
}

// BaseClient 는 공통 http.Client 와 baseURL 을 묶어 요청 생성을 돕는다.
type BaseClient struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewBaseClient(baseURL string, cfg Config) *BaseClient {
	return &BaseClient{
		HTTPClient: New(cfg),
		BaseURL:    baseURL,
	}
}

// NewBaseClientWithClient 는 이미 만들어진 http.Client 를 사용한다. nil 이면 기본값을 쓴다.
func NewBaseClientWithClient(httpClient *http.Client, baseURL string) *BaseClient {
	if httpClient == nil {
		httpClient = New(Config{})
	}
	return &BaseClient{
		HTTPClient: httpClient,
		BaseURL:    baseURL,
	}
}

// NewRequest 는 baseURL 과 relPath 를 합쳐 요청을 만든다.
// relPath 의 끝 슬래시는 유지한다("/api/v1/chats/" 와 "/api/v1/chats" 는 다른 라우트다).
// 쿼리는 반드시 query 인자로 넘겨야 하며 relPath 에 "?" 가 있으면 에러다.
func (c *BaseClient) NewRequest(ctx context.Context, method, relPath string, query url.Values, body io.Reader) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.Contains(relPath, "?") {
		return nil, fmt.Errorf("httpclient: relPath must not contain query string (use query parameter instead): %s", relPath)
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	if relPath != "" {
		joined := path.Join(base.Path, relPath)
		if strings.HasSuffix(relPath, "/") && !strings.HasSuffix(joined, "/") {
			joined += "/"
		}
		base.Path = joined
	}
	if query != nil {
		base.RawQuery = query.Encode()
	}
	return http.NewRequestWithContext(ctx, method, base.String(), body)
}

func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	return c.HTTPClient.Do(req)
}

// New 는 로깅(및 토큰이 있으면 bearer) RoundTripper 를 끼운 http.Client 를 만든다.
// Timeout 이 0 이면 10초를 사용한다.
func New(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	var transport http.RoundTripper = &loggingRoundTripper{inner: http.DefaultTransport}
	if cfg.Tokens != nil {
		transport = &bearerRoundTripper{inner: transport, tokens: cfg.Tokens}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
