// Package orchestrator 는 사용자 인텐트를 원격 호출로 바꾸고, 각 호출의
// pending/fulfilled/rejected 단계를 Chat Store 전이로 반영한다.
//
// 한 채팅의 메시지 조회는 요청마다 토큰을 받고, 가장 최근 토큰이면서 그 채팅이 여전히
// 활성일 때만 결과가 반영된다. 같은 채팅으로의 전송은 도착 순서대로 한 번에 하나씩 처리된다.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"contextbase/chatstore"
	"contextbase/eventbus"
	"contextbase/events"
	"contextbase/internal/logger"
	"contextbase/models"
	"contextbase/notify"
	"contextbase/trace"
)

// RemoteChatService 는 원격 채팅 서비스 계약이다. chatclient.Client 가 구현한다.
type RemoteChatService interface {
	ListChats(ctx context.Context) ([]models.Chat, error)
	GetMessages(ctx context.Context, chatID string) ([]models.Message, error)
	CreateChat(ctx context.Context, name string, files []models.FileUpload) (models.CreateChatResult, error)
	SendMessage(ctx context.Context, chatID, content string) (models.SendResult, error)
	UploadToChat(ctx context.Context, chatID string, files []models.FileUpload) (models.UploadResult, error)
	UpdateChat(ctx context.Context, chatID, name string) (models.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
}

// Op 는 비동기 작업 이름이다.
type Op string

const (
	OpFetchChats    Op = "fetch_chats"
	OpFetchMessages Op = "fetch_messages"
	OpCreateChat    Op = "create_chat"
	OpSendMessage   Op = "send_message"
	OpDeleteChat    Op = "delete_chat"
	OpRenameChat    Op = "rename_chat"
)

// 사용자 알림 문구
const (
	msgLoadChatsFailed    = "Failed to load chats"
	msgLoadMessagesFailed = "Failed to load messages"
	msgChatCreated        = "Chat created successfully"
	msgCreateChatFailed   = "Failed to create chat"
	msgSendFailed         = "Failed to send message"
	msgChatDeleted        = "Chat deleted"
	msgDeleteChatFailed   = "Failed to delete chat"
	msgRenameChatFailed   = "Failed to rename chat"
)

const chatsTokenKey = "chats"

func messagesTokenKey(chatID string) string {
	return "messages:" + chatID
}

type Options struct {
	Notifier notify.Notifier
	// Bus 가 nil 이면 단계 이벤트를 발행하지 않는다.
	Bus   eventbus.EventBus
	Topic eventbus.Topic
	Now   func() time.Time
}

type Orchestrator struct {
	store    *chatstore.Store
	remote   RemoteChatService
	notifier notify.Notifier
	bus      eventbus.EventBus
	topic    eventbus.Topic
	now      func() time.Time

	// seqMu 는 토큰 발급과 "토큰 확인 후 반영"을 직렬화한다. 잠금 순서는 seqMu -> store.
	seqMu  sync.Mutex
	tokens map[string]uint64
	seq    uint64

	laneMu sync.Mutex
	lanes  map[string]*lane
}

func New(store *chatstore.Store, remote RemoteChatService, opts Options) *Orchestrator {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		store:    store,
		remote:   remote,
		notifier: opts.Notifier,
		bus:      opts.Bus,
		topic:    opts.Topic,
		now:      opts.Now,
		tokens:   make(map[string]uint64),
		lanes:    make(map[string]*lane),
	}
}

// State 는 현재 상태 스냅샷이다. 표현 계층은 이 사본만 읽는다.
func (o *Orchestrator) State() chatstore.Snapshot {
	return o.store.Snapshot()
}

// Watch 는 상태 전이마다 스냅샷을 받는 채널을 등록한다.
func (o *Orchestrator) Watch(buffer int) (<-chan chatstore.Snapshot, func()) {
	return o.store.Subscribe(buffer)
}

// issueToken 은 key 에 대한 새 토큰을 발급한다. 이전 토큰을 가진 응답은 이후 반영되지 않는다.
func (o *Orchestrator) issueToken(key string) uint64 {
	o.seqMu.Lock()
	defer o.seqMu.Unlock()
	return o.issueTokenLocked(key)
}

func (o *Orchestrator) issueTokenLocked(key string) uint64 {
	o.seq++
	o.tokens[key] = o.seq
	return o.seq
}

// operation 은 작업 한 건의 단계를 추적한다. 종료 단계는 정확히 한 번만 기록된다.
type operation struct {
	o         *Orchestrator
	name      Op
	chatID    string
	requestID string
	settled   atomic.Bool
}

func (o *Orchestrator) start(ctx context.Context, name Op, chatID string) (*operation, context.Context) {
	requestID := trace.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = trace.GenerateID()
	}
	ctx = trace.WithOperation(ctx, requestID, string(name))
	op := &operation{o: o, name: name, chatID: chatID, requestID: requestID}
	op.emit(ctx, events.PhasePending, nil)
	return op, ctx
}

func (op *operation) fulfill(ctx context.Context) {
	if !op.settled.CompareAndSwap(false, true) {
		return
	}
	op.emit(ctx, events.PhaseFulfilled, nil)
}

func (op *operation) reject(ctx context.Context, f *Failure) {
	if !op.settled.CompareAndSwap(false, true) {
		return
	}
	op.emit(ctx, events.PhaseRejected, f)
}

func (op *operation) fields() logger.Fields {
	return logger.Fields{
		"op":         string(op.name),
		"chat_id":    op.chatID,
		"request_id": op.requestID,
	}
}

func (op *operation) emit(ctx context.Context, phase events.Phase, f *Failure) {
	fields := op.fields()
	fields["phase"] = string(phase)
	if f != nil {
		fields["kind"] = string(f.Kind)
		fields["error"] = f.Error()
		if f.Kind == KindStale || f.Kind == KindCanceled {
			logger.DebugWithFields("operation rejected", fields)
		} else {
			logger.ErrorWithFields("operation rejected", fields)
		}
	} else {
		logger.DebugWithFields("operation phase", fields)
	}

	if op.o.bus == nil {
		return
	}
	payload := events.OperationPhaseEvent{
		BaseEvent: events.NewBase(events.OperationPhaseChanged, events.SourceOrchestrator, op.o.now()),
		RequestID: op.requestID,
		Operation: string(op.name),
		Phase:     phase,
		ChatID:    op.chatID,
	}
	if f != nil {
		payload.ErrorKind = string(f.Kind)
		payload.ErrorMessage = f.Message
	}
	evt, err := eventbus.NewJSONEvent(payload.ID, string(payload.Type), payload)
	if err == nil {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventbus.PublishTimeout)
		err = op.o.bus.Publish(pubCtx, op.o.topic.Base(), evt)
		cancel()
	}
	if err != nil {
		fields["error"] = err.Error()
		logger.ErrorWithFields("operation phase publish failed", fields)
	}
}

// notifyFailure 는 사용자에게 보여줄 실패 알림을 보낸다. 취소나 밀려난 응답은 알리지 않는다.
func (o *Orchestrator) notifyFailure(ctx context.Context, f *Failure, message string) {
	if f.Kind == KindCanceled || f.Kind == KindStale {
		return
	}
	o.notifier.Error(ctx, message)
}
