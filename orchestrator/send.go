package orchestrator

import (
	"context"
	"strings"

	"contextbase/chatstore"
	"contextbase/internal/logger"
	"contextbase/models"
	"contextbase/pipeline"
)

// lane 은 채팅 하나의 전송 순서를 보장하는 용량 1 세마포어다.
// 대기 중인 송신자는 채널 대기열 순서(FIFO)대로 진입한다.
type lane struct {
	sem  chan struct{}
	refs int
}

func (o *Orchestrator) acquireLane(ctx context.Context, chatID string) (func(), error) {
	o.laneMu.Lock()
	l, ok := o.lanes[chatID]
	if !ok {
		l = &lane{sem: make(chan struct{}, 1)}
		o.lanes[chatID] = l
	}
	l.refs++
	o.laneMu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			o.dropLane(chatID, l)
		}, nil
	case <-ctx.Done():
		o.dropLane(chatID, l)
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) dropLane(chatID string, l *lane) {
	o.laneMu.Lock()
	defer o.laneMu.Unlock()
	l.refs--
	if l.refs == 0 && o.lanes[chatID] == l {
		delete(o.lanes, chatID)
	}
}

// Send 는 chatID 로 메시지를 보낸다.
//
// 같은 채팅에 이미 전송이 진행 중이면 앞선 전송이 끝날 때까지 기다린다(ctx 로 취소 가능).
// 차례가 오면 chatID 가 활성 채팅일 때 사용자 메시지 사본과 응답 자리표시를 먼저 보여주고,
// 파일이 있으면 업로드한 뒤 본문이 있을 때만 메시지를 전송한다.
// 성공하면 임시 메시지를 서버 확정 메시지로 바꾸고, 실패하면 임시 메시지를 모두 걷어낸다.
// 파일만 보낸 경우 결과는 nil 이다.
func (o *Orchestrator) Send(ctx context.Context, chatID, content string, files []models.FileUpload) (*models.SendResult, error) {
	if chatID == "" {
		return nil, ErrNoActiveChat
	}
	hasText := strings.TrimSpace(content) != ""
	if !hasText && len(files) == 0 {
		return nil, ErrEmptyMessage
	}

	op, ctx := o.start(ctx, OpSendMessage, chatID)
	o.store.Update(func(tx *chatstore.Txn) { tx.MarkPending(chatstore.FlagSending) })

	release, err := o.acquireLane(ctx, chatID)
	if err != nil {
		f := newFailure(OpSendMessage, err)
		o.store.Update(func(tx *chatstore.Txn) { tx.MarkSettled(chatstore.FlagSending) })
		op.reject(ctx, f)
		return nil, f
	}
	defer release()

	pending := pipeline.Begin(o.store, chatID, content, o.now())
	logger.DebugWithFields("send started", logger.Fields{
		"chat_id":     chatID,
		"request_id":  op.requestID,
		"optimistic":  pending.Inserted(),
		"files_count": len(files),
	})

	if len(files) > 0 {
		if _, err := o.remote.UploadToChat(ctx, chatID, files); err != nil {
			return nil, o.failSend(ctx, op, chatID, err)
		}
	}

	var result *models.SendResult
	if hasText {
		res, err := o.remote.SendMessage(ctx, chatID, content)
		if err != nil {
			return nil, o.failSend(ctx, op, chatID, err)
		}
		result = &res
	}

	// 서버가 붙인 이름은 진행 중인 목록 조회보다 새로우므로 목록 토큰을 올린 뒤 반영한다.
	renames := result != nil && result.ChatName != nil && *result.ChatName != ""
	if renames {
		o.seqMu.Lock()
		o.issueTokenLocked(chatsTokenKey)
	}
	var outcome pipeline.Outcome
	o.store.Update(func(tx *chatstore.Txn) {
		outcome = pipeline.SettleTx(tx, chatID, result, nil)
		tx.MarkSettled(chatstore.FlagSending)
	})
	if renames {
		o.seqMu.Unlock()
	}
	if result != nil && !outcome.Applied {
		logger.DebugWithFields("send settled for inactive chat", logger.Fields{
			"chat_id":    chatID,
			"request_id": op.requestID,
			"renamed":    outcome.Renamed,
		})
	}
	op.fulfill(ctx)
	return result, nil
}

func (o *Orchestrator) failSend(ctx context.Context, op *operation, chatID string, err error) *Failure {
	f := newFailure(OpSendMessage, err)
	o.store.Update(func(tx *chatstore.Txn) {
		pipeline.SettleTx(tx, chatID, nil, f)
		tx.MarkSettled(chatstore.FlagSending)
	})
	op.reject(ctx, f)
	o.notifyFailure(ctx, f, msgSendFailed)
	return f
}
