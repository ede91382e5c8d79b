// Package pipeline 은 메시지 전송의 낙관적 삽입과 서버 응답 반영(또는 롤백)을 담당한다.
package pipeline

import (
	"strings"
	"time"

	"contextbase/chatstore"
	"contextbase/models"
)

// Pending 은 Begin 이 삽입한 임시 메시지 쌍의 식별 정보다.
type Pending struct {
	ChatID        string
	UserEchoID    string
	PlaceholderID string
}

// Inserted 는 실제로 임시 메시지가 삽입되었는지 여부다.
func (p Pending) Inserted() bool {
	return p.UserEchoID != ""
}

// Begin 은 chatID 가 활성 채팅일 때 사용자 메시지 사본과 assistant 자리표시를 순서대로 추가한다.
// 본문이 공백뿐이거나(파일만 전송) 다른 채팅이 활성 상태이면 아무것도 넣지 않는다.
func Begin(s *chatstore.Store, chatID, content string, now time.Time) Pending {
	var p Pending
	s.Update(func(tx *chatstore.Txn) { p = BeginTx(tx, chatID, content, now) })
	return p
}

// BeginTx 는 Begin 을 이미 열린 전이 안에서 수행한다.
func BeginTx(tx *chatstore.Txn, chatID, content string, now time.Time) Pending {
	p := Pending{ChatID: chatID}
	if strings.TrimSpace(content) == "" || tx.ActiveChatID() != chatID {
		return p
	}
	echo := models.NewUserEcho(chatID, content, now)
	placeholder := models.NewAssistantPlaceholder(chatID, now)
	tx.AppendMessage(echo)
	tx.AppendMessage(placeholder)
	p.UserEchoID = echo.ID
	p.PlaceholderID = placeholder.ID
	return p
}

// StripProvisional 은 확정되지 않은 메시지를 모두 뺀 새 목록을 반환한다.
func StripProvisional(msgs []models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsProvisional() {
			out = append(out, m)
		}
	}
	return out
}

// Reconcile 은 prior 에서 임시 메시지를 모두 제거하고 서버가 확정한 사용자/assistant 메시지를
// 순서대로 덧붙인 목록을 반환한다. 이미 같은 id 가 있는 메시지는 다시 넣지 않는다.
// 입력은 변경하지 않는다.
func Reconcile(prior []models.Message, res models.SendResult) []models.Message {
	out := StripProvisional(prior)
	seen := make(map[string]struct{}, len(out))
	for _, m := range out {
		seen[m.ID] = struct{}{}
	}
	for _, m := range []models.Message{res.UserMessage, res.AIMessage} {
		if m.ID == "" {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// MergeFetched 는 조회 결과로 목록을 교체할 때 진행 중인 전송의 임시 메시지를 뒤에 유지한다.
func MergeFetched(fetched, current []models.Message) []models.Message {
	out := append([]models.Message(nil), fetched...)
	for _, m := range current {
		if m.IsProvisional() {
			out = append(out, m)
		}
	}
	return out
}

// Outcome 은 Settle 이 상태에 실제로 반영한 내용이다.
type Outcome struct {
	// Applied 는 확정 메시지가 활성 채팅 목록에 반영되었는지 여부다.
	Applied bool
	// RolledBack 은 실패로 임시 메시지를 걷어냈는지 여부다.
	RolledBack bool
	// Renamed 는 서버가 준 새 이름이 적용되었는지 여부다.
	Renamed bool
}

// Settle 은 전송 결과를 하나의 전이로 반영한다.
//
//   - 성공이면 임시 메시지를 제거하고 확정 메시지를 덧붙인 뒤, chat_name 이 있으면 id 로 이름을 바꾼다.
//   - 성공했지만 res 가 nil 이면(파일만 업로드) 임시 메시지만 제거한다.
//   - 실패면 임시 메시지를 모두 제거한다.
//
// 메시지 목록 변경은 chatID 가 여전히 활성 채팅일 때만 일어난다. 이름 변경은 활성 여부와 무관하다.
func Settle(s *chatstore.Store, chatID string, res *models.SendResult, sendErr error) Outcome {
	var out Outcome
	s.Update(func(tx *chatstore.Txn) { out = SettleTx(tx, chatID, res, sendErr) })
	return out
}

// SettleTx 는 Settle 을 이미 열린 전이 안에서 수행한다.
func SettleTx(tx *chatstore.Txn, chatID string, res *models.SendResult, sendErr error) Outcome {
	var out Outcome
	active := tx.ActiveChatID() == chatID
	if sendErr != nil || res == nil {
		if active && tx.RemoveMessagesWhere(models.Message.IsProvisional) > 0 {
			out.RolledBack = sendErr != nil
		}
		return out
	}
	if active {
		tx.SetMessages(Reconcile(tx.Messages(), *res))
		out.Applied = true
	}
	if res.ChatName != nil && *res.ChatName != "" && (active || tx.HasChat(chatID)) {
		tx.RenameChat(chatID, *res.ChatName)
		out.Renamed = true
	}
	return out
}
