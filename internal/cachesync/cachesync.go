// Package cachesync 는 채팅 목록을 로컬 캐시와 주고받는다. 시작 시 캐시로 목록을 먼저
// 채우고, 이후 상태 전이에서 목록이 바뀔 때마다 캐시를 갱신한다.
package cachesync

import (
	"context"
	"strings"

	"contextbase/chatstore"
	"contextbase/internal/logger"
	"contextbase/models"
	"contextbase/repositories"
)

// Watcher 는 상태 전이 스트림을 제공한다.
type Watcher interface {
	Watch(buffer int) (<-chan chatstore.Snapshot, func())
}

// WarmStart 는 캐시된 목록이 있고 저장소 목록이 아직 비어 있을 때만 채운다.
// 캐시 오류는 기록만 하고 무시한다.
func WarmStart(ctx context.Context, store *chatstore.Store, repo repositories.ChatCacheRepository, userKey string) int {
	chats, err := repo.Load(ctx, userKey)
	if err != nil {
		logger.WarnWithFields("chat cache load failed", logger.Fields{"user_key": userKey, "error": err.Error()})
		return 0
	}
	if len(chats) == 0 {
		return 0
	}
	applied := false
	store.Update(func(tx *chatstore.Txn) {
		if len(tx.Chats()) == 0 {
			tx.SetChats(chats)
			applied = true
		}
	})
	if !applied {
		return 0
	}
	return len(chats)
}

// Start 는 구독을 마친 뒤 반환하고, ctx 가 끝날 때까지 목록 변경을 캐시에 저장한다.
// 목록 조회가 진행 중인 전이는 건너뛴다. 반환된 채널은 저장 루프가 끝나면 닫힌다.
func Start(ctx context.Context, w Watcher, repo repositories.ChatCacheRepository, userKey string) <-chan struct{} {
	ch, cancel := w.Watch(4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		run(ctx, ch, repo, userKey)
	}()
	return done
}

func run(ctx context.Context, ch <-chan chatstore.Snapshot, repo repositories.ChatCacheRepository, userKey string) {
	last := ""
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if snap.Loading {
				continue
			}
			key := fingerprint(snap.Chats)
			if first {
				// 구독 직후 스냅샷은 캐시에서 온 것일 수 있으므로 기준값으로만 쓴다.
				first = false
				last = key
				continue
			}
			if key == last {
				continue
			}
			if err := repo.Save(ctx, userKey, snap.Chats); err != nil {
				logger.WarnWithFields("chat cache save failed", logger.Fields{"user_key": userKey, "error": err.Error()})
				continue
			}
			last = key
		}
	}
}

func fingerprint(chats []models.Chat) string {
	var b strings.Builder
	for _, c := range chats {
		b.WriteString(c.ID)
		b.WriteByte(0)
		b.WriteString(c.Name)
		b.WriteByte(0)
	}
	return b.String()
}
