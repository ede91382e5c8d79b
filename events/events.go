package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType 이벤트 타입 정의
type EventType string

const (
	OperationPhaseChanged EventType = "operation.phase_changed"
	NotificationRaised    EventType = "notification.raised"
)

const (
	SourceOrchestrator = "orchestrator"
	SourceNotifier     = "notifier"

	schemaVersion = "1"
)

// BaseEvent 모든 이벤트의 기본 구조
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBase 는 새 id 와 현재 시각으로 BaseEvent 를 만든다.
func NewBase(t EventType, source string, now time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: now,
		Source:    source,
		Version:   schemaVersion,
	}
}

// Phase 는 비동기 작업의 수명 단계다. pending 이후 fulfilled 또는 rejected 중 하나로 정확히 한 번 끝난다.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
)

// Terminal 은 종료 단계인지 여부다.
func (p Phase) Terminal() bool {
	return p == PhaseFulfilled || p == PhaseRejected
}

// OperationPhaseEvent 작업 단계 전이 이벤트
type OperationPhaseEvent struct {
	BaseEvent
	RequestID string `json:"request_id"`
	Operation string `json:"operation"`
	Phase     Phase  `json:"phase"`
	ChatID    string `json:"chat_id,omitempty"`
	// Rejected 일 때만 채워진다.
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NotificationLevel 사용자 알림 수준
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

// NotificationEvent 일회성 사용자 알림(토스트) 이벤트
type NotificationEvent struct {
	BaseEvent
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}
