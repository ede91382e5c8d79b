// Package notify 는 작업 결과를 사용자에게 한 번 보여줄 알림(토스트)으로 전달한다.
package notify

import (
	"context"
	"sync"
	"time"

	"contextbase/eventbus"
	"contextbase/events"
	"contextbase/internal/logger"
)

// Notifier 는 알림 채널 추상화다. 구현은 블로킹하지 않아야 한다.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// Notification 은 기록된 알림 한 건이다.
type Notification struct {
	ID        string                   `json:"id"`
	Level     events.NotificationLevel `json:"level"`
	Message   string                   `json:"message"`
	CreatedAt time.Time                `json:"created_at"`
}

// Nop 은 알림을 버린다.
type Nop struct{}

func (Nop) Success(context.Context, string) {}
func (Nop) Error(context.Context, string)   {}

// Multi 는 여러 Notifier 에 같은 알림을 보낸다.
func Multi(ns ...Notifier) Notifier {
	return multi(ns)
}

type multi []Notifier

func (m multi) Success(ctx context.Context, message string) {
	for _, n := range m {
		n.Success(ctx, message)
	}
}

func (m multi) Error(ctx context.Context, message string) {
	for _, n := range m {
		n.Error(ctx, message)
	}
}

// Recorder 는 최근 알림 keep 개를 메모리에 보관한다.
type Recorder struct {
	mu    sync.Mutex
	keep  int
	items []Notification
	now   func() time.Time
}

func NewRecorder(keep int) *Recorder {
	if keep <= 0 {
		keep = 20
	}
	return &Recorder{keep: keep, now: time.Now}
}

func (r *Recorder) Success(ctx context.Context, message string) {
	r.add(events.LevelSuccess, message)
}

func (r *Recorder) Error(ctx context.Context, message string) {
	r.add(events.LevelError, message)
}

func (r *Recorder) add(level events.NotificationLevel, message string) {
	base := events.NewBase(events.NotificationRaised, events.SourceNotifier, r.now())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{ID: base.ID, Level: level, Message: message, CreatedAt: base.Timestamp})
	if over := len(r.items) - r.keep; over > 0 {
		r.items = append([]Notification(nil), r.items[over:]...)
	}
}

// Recent 는 보관 중인 알림을 오래된 순으로 반환한다.
func (r *Recorder) Recent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification{}, r.items...)
}

// Drain 은 보관 중인 알림을 반환하고 비운다. 한 번 표시된 알림은 다시 보여주지 않는다.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// BusNotifier 는 알림을 NotificationEvent 로 이벤트 버스에 발행한다.
type BusNotifier struct {
	bus   eventbus.EventBus
	topic eventbus.Topic
	now   func() time.Time
}

func NewBusNotifier(bus eventbus.EventBus, topic eventbus.Topic) *BusNotifier {
	return &BusNotifier{bus: bus, topic: topic, now: time.Now}
}

func (b *BusNotifier) Success(ctx context.Context, message string) {
	b.publish(ctx, events.LevelSuccess, message)
}

func (b *BusNotifier) Error(ctx context.Context, message string) {
	b.publish(ctx, events.LevelError, message)
}

func (b *BusNotifier) publish(ctx context.Context, level events.NotificationLevel, message string) {
	payload := events.NotificationEvent{
		BaseEvent: events.NewBase(events.NotificationRaised, events.SourceNotifier, b.now()),
		Level:     level,
		Message:   message,
	}
	evt, err := eventbus.NewJSONEvent(payload.ID, string(payload.Type), payload)
	if err == nil {
		// 호출자 취소와 무관하게 알림은 발행하되, 브로커 지연이 호출자를 붙잡지 않도록 시간을 제한한다.
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventbus.PublishTimeout)
		err = b.bus.Publish(pubCtx, b.topic.Base(), evt)
		cancel()
	}
	if err != nil {
		logger.ErrorWithFields("notification publish failed", logger.Fields{
			"level":   string(level),
			"message": message,
			"error":   err.Error(),
		})
	}
}
