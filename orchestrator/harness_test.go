package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"contextbase/chatstore"
	"contextbase/eventbus"
	"contextbase/events"
	"contextbase/models"
	"contextbase/notify"
)

var t0 = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

// fakeRemote 는 호출을 기록하고, 테스트가 지정한 함수가 있으면 그 함수에 위임한다.
type fakeRemote struct {
	mu    sync.Mutex
	calls []string

	listChats   func(ctx context.Context) ([]models.Chat, error)
	getMessages func(ctx context.Context, chatID string) ([]models.Message, error)
	createChat  func(ctx context.Context, name string, files []models.FileUpload) (models.CreateChatResult, error)
	sendMessage func(ctx context.Context, chatID, content string) (models.SendResult, error)
	upload      func(ctx context.Context, chatID string, files []models.FileUpload) (models.UploadResult, error)
	updateChat  func(ctx context.Context, chatID, name string) (models.Chat, error)
	deleteChat  func(ctx context.Context, chatID string) error
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) ListChats(ctx context.Context) ([]models.Chat, error) {
	f.record("list")
	if f.listChats != nil {
		return f.listChats(ctx)
	}
	return []models.Chat{}, nil
}

func (f *fakeRemote) GetMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	f.record("messages:" + chatID)
	if f.getMessages != nil {
		return f.getMessages(ctx, chatID)
	}
	return []models.Message{}, nil
}

func (f *fakeRemote) CreateChat(ctx context.Context, name string, files []models.FileUpload) (models.CreateChatResult, error) {
	f.record("create")
	if f.createChat != nil {
		return f.createChat(ctx, name, files)
	}
	return models.CreateChatResult{Chat: models.Chat{ID: "new", Name: name}}, nil
}

func (f *fakeRemote) SendMessage(ctx context.Context, chatID, content string) (models.SendResult, error) {
	f.record("send:" + chatID + ":" + content)
	if f.sendMessage != nil {
		return f.sendMessage(ctx, chatID, content)
	}
	return reply(chatID, content, nil), nil
}

func (f *fakeRemote) UploadToChat(ctx context.Context, chatID string, files []models.FileUpload) (models.UploadResult, error) {
	f.record("upload:" + chatID)
	if f.upload != nil {
		return f.upload(ctx, chatID, files)
	}
	return models.UploadResult{}, nil
}

func (f *fakeRemote) UpdateChat(ctx context.Context, chatID, name string) (models.Chat, error) {
	f.record("update:" + chatID)
	if f.updateChat != nil {
		return f.updateChat(ctx, chatID, name)
	}
	return models.Chat{ID: chatID, Name: name}, nil
}

func (f *fakeRemote) DeleteChat(ctx context.Context, chatID string) error {
	f.record("delete:" + chatID)
	if f.deleteChat != nil {
		return f.deleteChat(ctx, chatID)
	}
	return nil
}

// reply 는 content 에 대한 서버 확정 응답을 만든다. id 는 content 에서 파생된다.
func reply(chatID, content string, chatName *string) models.SendResult {
	return models.SendResult{
		UserMessage: models.Message{ID: "u-" + content, ChatID: chatID, Role: models.RoleUser, Content: content, CreatedAt: t0},
		AIMessage:   models.Message{ID: "a-" + content, ChatID: chatID, Role: models.RoleAssistant, Content: "answer to " + content, CreatedAt: t0},
		ChatName:    chatName,
	}
}

func confirmedMsg(id, chatID string) models.Message {
	return models.Message{ID: id, ChatID: chatID, Role: models.RoleUser, Content: id, CreatedAt: t0}
}

func strPtr(s string) *string { return &s }

type harness struct {
	o        *Orchestrator
	store    *chatstore.Store
	remote   *fakeRemote
	recorder *notify.Recorder
	bus      *eventbus.MemoryEventBus

	mu     sync.Mutex
	phases []events.OperationPhaseEvent
}

func newHarness(t *testing.T, remote *fakeRemote) *harness {
	t.Helper()
	h := &harness{
		store:    chatstore.New(),
		remote:   remote,
		recorder: notify.NewRecorder(50),
		bus:      eventbus.NewMemoryEventBus(256),
	}
	topic := eventbus.NewTopic("test.client.events")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		h.bus.Close()
	})

	go eventbus.SubscribeJSON(ctx, h.bus, "phases", topic, func(ctx context.Context, e events.OperationPhaseEvent, meta eventbus.Event) error {
		if meta.Type != string(events.OperationPhaseChanged) {
			return nil
		}
		h.mu.Lock()
		h.phases = append(h.phases, e)
		h.mu.Unlock()
		return nil
	})
	require.Eventually(t, func() bool { return h.bus.Subscribed(topic.Base()) == 1 }, time.Second, time.Millisecond)

	h.o = New(h.store, remote, Options{
		Notifier: h.recorder,
		Bus:      h.bus,
		Topic:    topic,
		Now:      func() time.Time { return t0 },
	})
	return h
}

func (h *harness) Phases() []events.OperationPhaseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.OperationPhaseEvent(nil), h.phases...)
}

// seed 는 채팅 목록을 채우고 activeID 를 활성 채팅으로 만든 뒤 메시지를 넣는다.
func (h *harness) seed(chats []models.Chat, activeID string, msgs ...models.Message) {
	h.store.Update(func(tx *chatstore.Txn) {
		tx.SetChats(chats)
		if c, ok := tx.Chat(activeID); ok {
			tx.SetActiveChat(&c)
		}
		tx.SetMessages(msgs)
	})
}

func (h *harness) notifications() []string {
	var out []string
	for _, n := range h.recorder.Recent() {
		out = append(out, string(n.Level)+":"+n.Message)
	}
	return out
}

// gate 는 원격 호출 하나를 테스트가 원하는 시점까지 붙잡아 둔다.
type gate[T any] struct {
	entered chan struct{}
	release chan gateResult[T]
}

type gateResult[T any] struct {
	val T
	err error
}

func newGate[T any]() *gate[T] {
	return &gate[T]{entered: make(chan struct{}, 1), release: make(chan gateResult[T], 1)}
}

func (g *gate[T]) wait(ctx context.Context) (T, error) {
	g.entered <- struct{}{}
	select {
	case r := <-g.release:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (g *gate[T]) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("remote call was not made")
	}
}

func (g *gate[T]) respond(v T, err error) {
	g.release <- gateResult[T]{val: v, err: err}
}

func msgIDs(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func chatIDs(chats []models.Chat) []string {
	out := make([]string, 0, len(chats))
	for _, c := range chats {
		out = append(out, c.ID)
	}
	return out
}

func provisionalCount(msgs []models.Message) int {
	n := 0
	for _, m := range msgs {
		if m.IsProvisional() {
			n++
		}
	}
	return n
}
