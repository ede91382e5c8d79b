package orchestrator

import (
	"context"
	"strings"

	"contextbase/chatstore"
	"contextbase/internal/logger"
	"contextbase/models"
	"contextbase/pipeline"
)

// ChatsResult 는 FetchChats 결과다. Applied 가 false 면 더 최신 변경에 밀려 상태에 반영되지 않았다.
type ChatsResult struct {
	Chats   []models.Chat
	Applied bool
}

// MessagesResult 는 FetchMessages 결과다.
type MessagesResult struct {
	ChatID   string
	Messages []models.Message
	Applied  bool
}

// FetchChats 는 채팅 목록을 새로 받아 교체하고 활성 채팅을 새 목록 항목에 맞춘다.
// 목록에서 사라진 활성 채팅은 메시지와 함께 비운다.
// 조회 도중 생성/삭제/이름 변경(전송 응답의 자동 제목 포함)이 반영되었다면 응답은 버린다.
func (o *Orchestrator) FetchChats(ctx context.Context) (ChatsResult, error) {
	token := o.issueToken(chatsTokenKey)
	op, ctx := o.start(ctx, OpFetchChats, "")
	o.store.Update(func(tx *chatstore.Txn) { tx.MarkPending(chatstore.FlagChats) })

	chats, err := o.remote.ListChats(ctx)

	var f *Failure
	res := ChatsResult{Chats: chats}
	o.seqMu.Lock()
	current := o.tokens[chatsTokenKey] == token
	o.store.Update(func(tx *chatstore.Txn) {
		tx.MarkSettled(chatstore.FlagChats)
		if err != nil {
			f = newFailure(OpFetchChats, err)
			if !current {
				f.Kind = KindStale
				return
			}
			tx.SetLastError(msgLoadChatsFailed)
			return
		}
		if current {
			tx.SetChats(chats)
			tx.SyncActiveChat()
			tx.SetLastError("")
			res.Applied = true
		}
	})
	o.seqMu.Unlock()

	if f != nil {
		op.reject(ctx, f)
		o.notifyFailure(ctx, f, msgLoadChatsFailed)
		return ChatsResult{}, f
	}
	if !res.Applied {
		logger.DebugWithFields("stale chat list dropped", logger.Fields{"request_id": op.requestID, "token": token})
	}
	op.fulfill(ctx)
	return res, nil
}

// SelectChat 은 chatID 를 활성 채팅으로 만들고 그 메시지를 조회한다.
// 빈 chatID 는 선택 해제다.
func (o *Orchestrator) SelectChat(ctx context.Context, chatID string) (MessagesResult, error) {
	if chatID == "" {
		o.store.SetActiveChat(nil)
		return MessagesResult{}, nil
	}

	found := false
	o.store.Update(func(tx *chatstore.Txn) {
		var c models.Chat
		if c, found = tx.Chat(chatID); found {
			tx.SetActiveChat(&c)
		}
	})
	if !found {
		return MessagesResult{}, ErrUnknownChat
	}
	return o.FetchMessages(ctx, chatID)
}

// FetchMessages 는 chatID 의 확정 메시지를 받아온다. 가장 최근 요청이고 chatID 가 여전히
// 활성 채팅일 때만 목록을 교체하며, 진행 중인 전송의 임시 메시지는 뒤에 유지한다.
func (o *Orchestrator) FetchMessages(ctx context.Context, chatID string) (MessagesResult, error) {
	if chatID == "" {
		return MessagesResult{}, ErrNoActiveChat
	}
	key := messagesTokenKey(chatID)
	token := o.issueToken(key)
	op, ctx := o.start(ctx, OpFetchMessages, chatID)
	o.store.Update(func(tx *chatstore.Txn) { tx.MarkPending(chatstore.FlagMessages) })

	msgs, err := o.remote.GetMessages(ctx, chatID)

	var f *Failure
	res := MessagesResult{ChatID: chatID, Messages: msgs}
	o.seqMu.Lock()
	latest := o.tokens[key] == token
	o.store.Update(func(tx *chatstore.Txn) {
		tx.MarkSettled(chatstore.FlagMessages)
		current := latest && tx.ActiveChatID() == chatID
		if err != nil {
			f = newFailure(OpFetchMessages, err)
			if !current {
				f.Kind = KindStale
				return
			}
			tx.SetLastError(msgLoadMessagesFailed)
			return
		}
		if current {
			tx.SetMessages(pipeline.MergeFetched(msgs, tx.Messages()))
			tx.SetLastError("")
			res.Applied = true
		}
	})
	o.seqMu.Unlock()

	if f != nil {
		op.reject(ctx, f)
		o.notifyFailure(ctx, f, msgLoadMessagesFailed)
		return MessagesResult{ChatID: chatID}, f
	}
	if !res.Applied {
		logger.DebugWithFields("stale messages dropped", logger.Fields{
			"request_id": op.requestID,
			"chat_id":    chatID,
			"token":      token,
		})
	}
	op.fulfill(ctx)
	return res, nil
}

// CreateChat 은 채팅을 만들고 목록 맨 앞에 넣은 뒤 활성 채팅으로 만든다.
// 이름과 파일이 모두 없으면 네트워크 호출 없이 ErrMissingChatInput 을 반환한다.
func (o *Orchestrator) CreateChat(ctx context.Context, name string, files []models.FileUpload) (models.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" && len(files) == 0 {
		return models.Chat{}, ErrMissingChatInput
	}
	op, ctx := o.start(ctx, OpCreateChat, "")

	created, err := o.remote.CreateChat(ctx, name, files)
	if err != nil {
		f := newFailure(OpCreateChat, err)
		op.reject(ctx, f)
		o.notifyFailure(ctx, f, msgCreateChatFailed)
		return models.Chat{}, f
	}

	chat := created.Chat
	op.chatID = chat.ID
	o.seqMu.Lock()
	o.issueTokenLocked(chatsTokenKey)
	o.store.Update(func(tx *chatstore.Txn) {
		tx.InsertChat(chat)
		tx.SetActiveChat(&chat)
	})
	o.seqMu.Unlock()

	op.fulfill(ctx)
	o.notifier.Success(ctx, msgChatCreated)
	return chat, nil
}

// DeleteChat 은 채팅을 지운다. 활성 채팅이었다면 활성 채팅과 메시지도 같은 전이에서 비운다.
// 늦게 도착하는 그 채팅의 조회/전송 결과는 반영되지 않는다.
func (o *Orchestrator) DeleteChat(ctx context.Context, chatID string) error {
	if chatID == "" {
		return ErrNoActiveChat
	}
	op, ctx := o.start(ctx, OpDeleteChat, chatID)

	if err := o.remote.DeleteChat(ctx, chatID); err != nil {
		f := newFailure(OpDeleteChat, err)
		op.reject(ctx, f)
		o.notifyFailure(ctx, f, msgDeleteChatFailed)
		return f
	}

	o.seqMu.Lock()
	o.issueTokenLocked(chatsTokenKey)
	o.issueTokenLocked(messagesTokenKey(chatID))
	o.store.RemoveChat(chatID)
	o.seqMu.Unlock()

	op.fulfill(ctx)
	o.notifier.Success(ctx, msgChatDeleted)
	return nil
}

// RenameChat 은 채팅 이름을 바꾸고 목록 항목과 (활성이면) 활성 채팅에 반영한다.
func (o *Orchestrator) RenameChat(ctx context.Context, chatID, name string) (models.Chat, error) {
	if chatID == "" {
		return models.Chat{}, ErrNoActiveChat
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Chat{}, ErrEmptyChatName
	}
	op, ctx := o.start(ctx, OpRenameChat, chatID)

	updated, err := o.remote.UpdateChat(ctx, chatID, name)
	if err != nil {
		f := newFailure(OpRenameChat, err)
		op.reject(ctx, f)
		o.notifyFailure(ctx, f, msgRenameChatFailed)
		return models.Chat{}, f
	}
	if updated.ID == "" {
		updated.ID = chatID
	}
	if updated.Name == "" {
		updated.Name = name
	}

	o.seqMu.Lock()
	o.issueTokenLocked(chatsTokenKey)
	o.store.Update(func(tx *chatstore.Txn) { tx.RenameChat(updated.ID, updated.Name) })
	o.seqMu.Unlock()

	op.fulfill(ctx)
	return updated, nil
}
