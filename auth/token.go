// Package auth 는 원격 채팅 서비스 호출에 사용할 bearer 토큰을 제공한다.
package auth

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("auth: no session token")
	ErrTokenExpired = errors.New("auth: session token expired")
)

// TokenSource 는 요청마다 토큰을 제공하고, 서버가 401 을 주면 Invalidate 로 폐기된다.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// StaticTokenSource 는 고정 문자열 토큰을 보관한다.
// JWT 형식이면 exp 클레임으로 만료를 확인한다(서명은 서버가 검증한다).
type StaticTokenSource struct {
	mu          sync.RWMutex
	token       string
	now         func() time.Time
	invalidated func()
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: strings.TrimSpace(token), now: time.Now}
}

// NewEnvTokenSource 는 envKey 환경변수에서 토큰을 읽는다. 값이 없으면 익명 호출로 간주한다.
func NewEnvTokenSource(envKey string) *StaticTokenSource {
	return NewStaticTokenSource(os.Getenv(envKey))
}

// OnInvalidate 는 토큰이 폐기될 때 호출할 함수를 등록한다.
func (s *StaticTokenSource) OnInvalidate(fn func()) {
	s.mu.Lock()
	s.invalidated = fn
	s.mu.Unlock()
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.token
	now := s.now
	s.mu.RUnlock()

	if token == "" {
		return "", ErrNoToken
	}
	if exp, ok := TokenExpiry(token); ok && !now().Before(exp) {
		return "", ErrTokenExpired
	}
	return token, nil
}

// Set 은 새 토큰으로 교체한다(로그인 이후 등).
func (s *StaticTokenSource) Set(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.mu.Unlock()
}

func (s *StaticTokenSource) Invalidate() {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	fn := s.invalidated
	s.mu.Unlock()

	if had && fn != nil {
		fn()
	}
}

// TokenExpiry 는 JWT 의 exp 클레임을 서명 검증 없이 읽는다.
// JWT 가 아니거나 exp 가 없으면 false 를 반환한다.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
