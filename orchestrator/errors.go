package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"contextbase/auth"
)

// 네트워크 호출 전에 걸러지는 입력 오류. 알림을 만들지 않는다.
var (
	ErrEmptyMessage     = errors.New("message content and files are both empty")
	ErrNoActiveChat     = errors.New("no chat selected")
	ErrMissingChatInput = errors.New("chat name or at least one file is required")
	ErrEmptyChatName    = errors.New("chat name must not be empty")
	ErrUnknownChat      = errors.New("chat is not in the chat list")
)

// Kind 는 실패를 호출자가 분기하기 쉬운 범주로 나눈 것이다.
type Kind string

const (
	KindTransport    Kind = "transport"
	KindServer       Kind = "server"
	KindUnavailable  Kind = "unavailable"
	KindRateLimited  Kind = "rate_limited"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	// KindStale 은 더 최신 요청에 밀려난 응답의 실패다. 상태에도 알림에도 반영하지 않는다.
	KindStale    Kind = "stale"
	KindCanceled Kind = "canceled"
)

// StatusClientClosedRequest 는 호출자가 먼저 취소한 경우 사용하는 상태 코드다.
const StatusClientClosedRequest = 499

// Failure 는 rejected 로 끝난 작업의 구조화된 실패 표식이다.
type Failure struct {
	Op         Op
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

func (f *Failure) Error() string {
	if f == nil {
		return "operation failed"
	}
	if f.Message == "" {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", f.Op, f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

type httpStatusError interface {
	HTTPStatus() int
}

type detailedError interface {
	Detail() string
}

// newFailure 는 원격 호출 오류를 Failure 로 정규화한다.
func newFailure(op Op, err error) *Failure {
	var existing *Failure
	if errors.As(err, &existing) {
		return existing
	}

	f := &Failure{Op: op, Cause: err, Message: err.Error()}

	var statusErr httpStatusError
	switch {
	case errors.As(err, &statusErr):
		f.StatusCode, f.Kind = normalizeStatus(statusErr.HTTPStatus())
		var d detailedError
		if errors.As(err, &d) && d.Detail() != "" {
			f.Message = d.Detail()
		}
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, auth.ErrTokenExpired):
		f.StatusCode, f.Kind = http.StatusUnauthorized, KindUnauthorized
	case errors.Is(err, context.Canceled):
		f.StatusCode, f.Kind = StatusClientClosedRequest, KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		f.StatusCode, f.Kind = http.StatusGatewayTimeout, KindTransport
	default:
		f.StatusCode, f.Kind = http.StatusBadGateway, KindTransport
	}
	return f
}

func normalizeStatus(statusCode int) (int, Kind) {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return statusCode, KindUnauthorized
	case http.StatusNotFound:
		return http.StatusNotFound, KindNotFound
	case http.StatusTooManyRequests:
		return http.StatusTooManyRequests, KindRateLimited
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return http.StatusBadRequest, KindValidation
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return http.StatusServiceUnavailable, KindUnavailable
	default:
		return http.StatusInternalServerError, KindServer
	}
}
