// Package chatstore 는 채팅 목록, 활성 채팅, 메시지, 로딩 상태를 소유하는 단일 상태 저장소다.
//
// 상태는 Update 로 전달되는 Txn 의 리듀서로만 바뀌고, 한 번의 Update 는 하나의 전이로
// 관찰된다. 구독자는 전이마다 최신 Snapshot 을 받는다.
package chatstore

import (
	"sync"

	"contextbase/models"
)

// Flag 는 독립적으로 관찰되는 로딩 상태 종류다.
type Flag int

const (
	FlagChats Flag = iota
	FlagMessages
	FlagSending
	flagCount
)

func (f Flag) String() string {
	switch f {
	case FlagChats:
		return "chats"
	case FlagMessages:
		return "messages"
	case FlagSending:
		return "sending"
	default:
		return "unknown"
	}
}

// Snapshot 은 특정 시점 상태의 읽기 전용 사본이다.
type Snapshot struct {
	Chats           []models.Chat    `json:"chats"`
	ActiveChat      *models.Chat     `json:"active_chat"`
	Messages        []models.Message `json:"messages"`
	Loading         bool             `json:"loading"`
	MessagesLoading bool             `json:"messages_loading"`
	SendingMessage  bool             `json:"sending_message"`
	LastError       string           `json:"last_error,omitempty"`
	Version         uint64           `json:"version"`
}

// ActiveChatID 는 활성 채팅이 없으면 빈 문자열을 반환한다.
func (s Snapshot) ActiveChatID() string {
	if s.ActiveChat == nil {
		return ""
	}
	return s.ActiveChat.ID
}

type state struct {
	chats    []models.Chat
	active   *models.Chat
	messages []models.Message
	// 동시에 진행 중인 작업 수. 0 보다 크면 해당 플래그가 켜진 것으로 본다.
	pending   [flagCount]int
	lastError string
}

// Store 는 동시 호출에 안전하다. 모든 전이는 내부 뮤텍스 아래에서 직렬화된다.
type Store struct {
	mu      sync.Mutex
	st      state
	version uint64
	subs    map[uint64]chan Snapshot
	nextSub uint64
}

func New() *Store {
	return &Store{subs: make(map[uint64]chan Snapshot)}
}

// Update 는 fn 안의 리듀서 호출들을 하나의 전이로 적용하고 적용 후 스냅샷을 반환한다.
// fn 은 블로킹 작업을 하면 안 된다.
func (s *Store) Update(fn func(tx *Txn)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Txn{st: &s.st}
	fn(tx)
	if tx.changed {
		s.version++
	}
	snap := s.snapshotLocked()
	if tx.changed {
		s.broadcastLocked(snap)
	}
	return snap
}

// Snapshot 은 현재 상태 사본을 반환한다.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Chats:           append([]models.Chat(nil), s.st.chats...),
		Messages:        append([]models.Message(nil), s.st.messages...),
		Loading:         s.st.pending[FlagChats] > 0,
		MessagesLoading: s.st.pending[FlagMessages] > 0,
		SendingMessage:  s.st.pending[FlagSending] > 0,
		LastError:       s.st.lastError,
		Version:         s.version,
	}
	if snap.Chats == nil {
		snap.Chats = []models.Chat{}
	}
	if snap.Messages == nil {
		snap.Messages = []models.Message{}
	}
	if s.st.active != nil {
		a := *s.st.active
		snap.ActiveChat = &a
	}
	return snap
}

// Subscribe 는 전이마다 스냅샷을 받는 채널을 등록한다. 등록 즉시 현재 스냅샷이 한 번 전달된다.
// 소비가 늦으면 오래된 스냅샷을 버리고 최신 것을 남긴다. 반환된 함수로 구독을 해제한다.
func (s *Store) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) broadcastLocked(snap Snapshot) {
	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// 가득 찬 경우 가장 오래된 것을 하나 버리고 다시 시도한다.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// 아래는 단일 리듀서를 하나의 전이로 적용하는 편의 메서드들이다.

func (s *Store) SetChats(chats []models.Chat) Snapshot {
	return s.Update(func(tx *Txn) { tx.SetChats(chats) })
}

func (s *Store) SetActiveChat(chat *models.Chat) Snapshot {
	return s.Update(func(tx *Txn) { tx.SetActiveChat(chat) })
}

func (s *Store) SetMessages(msgs []models.Message) Snapshot {
	return s.Update(func(tx *Txn) { tx.SetMessages(msgs) })
}

func (s *Store) InsertChat(chat models.Chat) Snapshot {
	return s.Update(func(tx *Txn) { tx.InsertChat(chat) })
}

func (s *Store) RemoveChat(id string) Snapshot {
	return s.Update(func(tx *Txn) { tx.RemoveChat(id) })
}

func (s *Store) RenameActiveChat(name string) Snapshot {
	return s.Update(func(tx *Txn) { tx.RenameActiveChat(name) })
}

func (s *Store) AppendMessage(msg models.Message) Snapshot {
	return s.Update(func(tx *Txn) { tx.AppendMessage(msg) })
}

func (s *Store) RemoveMessagesWhere(pred func(models.Message) bool) Snapshot {
	return s.Update(func(tx *Txn) { tx.RemoveMessagesWhere(pred) })
}
