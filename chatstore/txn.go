package chatstore

import "contextbase/models"

// Txn 은 Update 안에서만 유효한 리듀서 집합이다.
type Txn struct {
	st      *state
	changed bool
}

// ActiveChatID 는 활성 채팅이 없으면 빈 문자열을 반환한다.
func (tx *Txn) ActiveChatID() string {
	if tx.st.active == nil {
		return ""
	}
	return tx.st.active.ID
}

// Messages 는 현재 메시지 목록의 사본이다.
func (tx *Txn) Messages() []models.Message {
	return append([]models.Message(nil), tx.st.messages...)
}

// Chats 는 현재 채팅 목록의 사본이다.
func (tx *Txn) Chats() []models.Chat {
	return append([]models.Chat(nil), tx.st.chats...)
}

// HasChat 은 목록에 id 가 있는지 확인한다.
func (tx *Txn) HasChat(id string) bool {
	return tx.indexOf(id) >= 0
}

// Chat 은 목록에서 id 항목을 찾는다.
func (tx *Txn) Chat(id string) (models.Chat, bool) {
	if i := tx.indexOf(id); i >= 0 {
		return tx.st.chats[i], true
	}
	return models.Chat{}, false
}

func (tx *Txn) indexOf(id string) int {
	for i := range tx.st.chats {
		if tx.st.chats[i].ID == id {
			return i
		}
	}
	return -1
}

// SetChats 는 채팅 목록 전체를 교체한다. 활성 채팅은 건드리지 않는다.
func (tx *Txn) SetChats(chats []models.Chat) {
	tx.st.chats = append([]models.Chat(nil), chats...)
	tx.changed = true
}

// SyncActiveChat 은 활성 채팅을 목록의 같은 id 항목으로 갱신한다.
// 목록에 없으면 활성 채팅과 메시지를 함께 비운다.
func (tx *Txn) SyncActiveChat() {
	if tx.st.active == nil {
		return
	}
	i := tx.indexOf(tx.st.active.ID)
	if i < 0 {
		tx.st.active = nil
		tx.st.messages = nil
		tx.changed = true
		return
	}
	c := tx.st.chats[i]
	tx.st.active = &c
	tx.changed = true
}

// SetActiveChat 은 활성 채팅을 바꾼다. 다른 채팅으로 바뀌면 메시지 목록을 비운다.
// nil 이면 활성 채팅을 해제한다.
func (tx *Txn) SetActiveChat(chat *models.Chat) {
	tx.changed = true
	if chat == nil {
		tx.st.active = nil
		tx.st.messages = nil
		return
	}
	same := tx.st.active != nil && tx.st.active.ID == chat.ID
	c := *chat
	tx.st.active = &c
	if !same {
		tx.st.messages = nil
	}
}

// SetMessages 는 메시지 목록 전체를 교체한다.
func (tx *Txn) SetMessages(msgs []models.Message) {
	tx.st.messages = append([]models.Message(nil), msgs...)
	tx.changed = true
}

// InsertChat 은 채팅을 목록 맨 앞에 넣는다. 같은 id 가 이미 있으면 그 항목을 대체한다.
func (tx *Txn) InsertChat(chat models.Chat) {
	rest := make([]models.Chat, 0, len(tx.st.chats)+1)
	rest = append(rest, chat)
	for _, c := range tx.st.chats {
		if c.ID != chat.ID {
			rest = append(rest, c)
		}
	}
	tx.st.chats = rest
	tx.changed = true
}

// RemoveChat 은 목록에서 id 를 제거하고, 활성 채팅이면 활성 채팅과 메시지도 함께 비운다.
func (tx *Txn) RemoveChat(id string) {
	if i := tx.indexOf(id); i >= 0 {
		tx.st.chats = append(tx.st.chats[:i:i], tx.st.chats[i+1:]...)
	}
	if tx.st.active != nil && tx.st.active.ID == id {
		tx.st.active = nil
		tx.st.messages = nil
	}
	tx.changed = true
}

// RenameActiveChat 은 활성 채팅과 목록의 같은 id 항목 이름을 함께 바꾼다.
func (tx *Txn) RenameActiveChat(name string) {
	if tx.st.active == nil {
		return
	}
	tx.RenameChat(tx.st.active.ID, name)
}

// RenameChat 은 id 로 목록 항목과 (일치하면) 활성 채팅의 이름을 바꾼다.
// 이미 삭제된 채팅이면 아무 일도 하지 않는다.
func (tx *Txn) RenameChat(id, name string) {
	if i := tx.indexOf(id); i >= 0 {
		tx.st.chats[i].Name = name
		tx.changed = true
	}
	if tx.st.active != nil && tx.st.active.ID == id {
		tx.st.active.Name = name
		tx.changed = true
	}
}

func (tx *Txn) AppendMessage(msg models.Message) {
	tx.st.messages = append(tx.st.messages, msg)
	tx.changed = true
}

// RemoveMessagesWhere 는 pred 가 true 인 메시지를 모두 제거하고 제거한 개수를 반환한다.
func (tx *Txn) RemoveMessagesWhere(pred func(models.Message) bool) int {
	kept := tx.st.messages[:0:0]
	removed := 0
	for _, m := range tx.st.messages {
		if pred(m) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	if removed > 0 {
		tx.st.messages = kept
		tx.changed = true
	}
	return removed
}

// MarkPending 은 flag 에 해당하는 진행 중 작업 수를 하나 늘린다.
func (tx *Txn) MarkPending(f Flag) {
	tx.st.pending[f]++
	tx.changed = true
}

// MarkSettled 는 MarkPending 과 짝을 이루어 진행 중 작업 수를 하나 줄인다.
func (tx *Txn) MarkSettled(f Flag) {
	if tx.st.pending[f] > 0 {
		tx.st.pending[f]--
	}
	tx.changed = true
}

// SetLastError 는 마지막 읽기 실패 메시지를 기록한다. 빈 문자열은 초기화다.
func (tx *Txn) SetLastError(msg string) {
	tx.st.lastError = msg
	tx.changed = true
}
