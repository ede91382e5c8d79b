package eventbus

import (
	"context"
	"sync"

	"contextbase/internal/logger"
)

const defaultMemoryBuffer = 64

type memoryGroup struct {
	ch      chan Event
	members int
}

// MemoryEventBus 는 프로세스 내부 구독자에게 이벤트를 전달한다.
// 그룹 버퍼가 가득 차면 해당 그룹에 대한 이벤트는 버리고 경고를 남긴다(발행자는 막히지 않는다).
type MemoryEventBus struct {
	mu     sync.Mutex
	groups map[string]map[string]*memoryGroup // topic -> groupID -> group
	buffer int
	closed bool
	done   chan struct{}
}

func NewMemoryEventBus(buffer int) *MemoryEventBus {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryEventBus{
		groups: make(map[string]map[string]*memoryGroup),
		buffer: buffer,
		done:   make(chan struct{}),
	}
}

func (m *MemoryEventBus) Publish(ctx context.Context, topic string, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for groupID, g := range m.groups[topic] {
		select {
		case g.ch <- event:
		default:
			logger.WarnWithFields("eventbus group buffer full, dropping event", logger.Fields{
				"topic":    topic,
				"group_id": groupID,
				"event_id": event.ID,
			})
		}
	}
	return nil
}

func (m *MemoryEventBus) Subscribe(ctx context.Context, groupID string, topic Topic, handler EventHandler) error {
	g, err := m.join(topic.Base(), groupID)
	if err != nil {
		return err
	}
	defer m.leave(topic.Base(), groupID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return ErrClosed
		case evt := <-g.ch:
			if err := handler(ctx, evt); err != nil {
				logger.ErrorWithFields("eventbus handler failed", logger.Fields{
					"topic":    topic.Base(),
					"group_id": groupID,
					"event_id": evt.ID,
					"error":    err.Error(),
				})
			}
		}
	}
}

func (m *MemoryEventBus) join(topic, groupID string) (*memoryGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	byGroup, ok := m.groups[topic]
	if !ok {
		byGroup = make(map[string]*memoryGroup)
		m.groups[topic] = byGroup
	}
	g, ok := byGroup[groupID]
	if !ok {
		g = &memoryGroup{ch: make(chan Event, m.buffer)}
		byGroup[groupID] = g
	}
	g.members++
	return g, nil
}

func (m *MemoryEventBus) leave(topic, groupID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[topic][groupID]
	if !ok {
		return
	}
	g.members--
	if g.members <= 0 {
		delete(m.groups[topic], groupID)
	}
}

// Subscribed 는 topic 에 등록된 그룹 수를 반환한다.
func (m *MemoryEventBus) Subscribed(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.groups[topic])
}

func (m *MemoryEventBus) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}
