// Package trace 는 하나의 인텐트(채팅 조회, 메시지 전송 등) 동안 나가는 HTTP 호출에
// 공통 request id 와 순차 span id 를 붙이기 위한 컨텍스트 값을 관리한다.
package trace

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

type ctxKey string

const ctxKeyTrace ctxKey = "trace_info"

// Info 는 인텐트 한 건의 트레이싱 정보다.
type Info struct {
	RequestID string
	Operation string
	spanSeq   int64
}

// GenerateID 는 하이픈 없는 uuid 문자열을 만든다.
func GenerateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithOperation 은 requestID 와 작업 이름을 담은 컨텍스트를 반환한다.
// requestID 가 비어 있으면 새로 생성한다.
func WithOperation(ctx context.Context, requestID, operation string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if requestID == "" {
		requestID = GenerateID()
	}
	return context.WithValue(ctx, ctxKeyTrace, &Info{RequestID: requestID, Operation: operation})
}

func infoFromContext(ctx context.Context) *Info {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(ctxKeyTrace).(*Info)
	return v
}

func RequestIDFromContext(ctx context.Context) string {
	if info := infoFromContext(ctx); info != nil {
		return info.RequestID
	}
	return ""
}

func OperationFromContext(ctx context.Context) string {
	if info := infoFromContext(ctx); info != nil {
		return info.Operation
	}
	return ""
}

// NextSpanID 는 span 시퀀스를 1 증가시키고 (requestID, spanID) 를 반환한다.
// 트레이스 정보가 없는 컨텍스트면 새 requestID 와 span "1" 을 돌려준다.
func NextSpanID(ctx context.Context) (string, string) {
	info := infoFromContext(ctx)
	if info == nil {
		return GenerateID(), "1"
	}
	val := atomic.AddInt64(&info.spanSeq, 1)
	return info.RequestID, strconv.FormatInt(val, 10)
}
