// Package eventbus 는 상태 관찰용 이벤트(작업 단계, 알림)를 구독자에게 전달하는 추상화다.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Topic 은 이벤트 스트림 이름이다.
type Topic struct {
	base string
}

func NewTopic(base string) Topic {
	return Topic{base: base}
}

func (t Topic) Base() string {
	return t.base
}

// Event 는 버스를 타는 봉투다. Type 은 소비자가 Payload 를 디코딩할 타입을 고르는 데 쓴다.
type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EventHandler 는 이벤트 처리 함수 시그니처다.
type EventHandler func(ctx context.Context, event Event) error

// EventBus 는 이벤트 발행과 구독을 추상화한다.
// 같은 groupID 로 구독한 핸들러들은 이벤트를 나눠 받고, 다른 그룹은 각자 모두 받는다.
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	// Subscribe 는 ctx 가 끝날 때까지 블로킹하며 핸들러를 실행한다.
	Subscribe(ctx context.Context, groupID string, topic Topic, handler EventHandler) error
	Close()
}

// PublishTimeout 은 관찰용 이벤트 발행 한 건에 허용하는 최대 대기 시간이다.
const PublishTimeout = 2 * time.Second

// ErrClosed 는 닫힌 버스에 발행하거나 구독할 때 반환된다.
var ErrClosed = errors.New("eventbus: closed")
