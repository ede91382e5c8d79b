package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"contextbase/db"
	"contextbase/models"
)

// ChatCacheRepository 는 사용자별 마지막으로 받은 채팅 목록을 보관한다.
// 앱 시작 시 원격 조회가 끝나기 전 목록을 먼저 보여주는 용도다.
type ChatCacheRepository interface {
	// Load 는 저장된 목록이 없으면 (nil, nil) 을 반환한다.
	Load(ctx context.Context, userKey string) ([]models.Chat, error)
	Save(ctx context.Context, userKey string, chats []models.Chat) error
}

type SQLiteChatCache struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteChatCache(d *sql.DB) *SQLiteChatCache {
	return &SQLiteChatCache{db: d, now: time.Now}
}

func (r *SQLiteChatCache) Load(ctx context.Context, userKey string) ([]models.Chat, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT chats_json FROM chat_cache WHERE user_key = ?`, userKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chat cache: %w", err)
	}
	var chats []models.Chat
	if err := json.Unmarshal([]byte(raw), &chats); err != nil {
		return nil, fmt.Errorf("decode chat cache: %w", err)
	}
	return chats, nil
}

func (r *SQLiteChatCache) Save(ctx context.Context, userKey string, chats []models.Chat) error {
	if chats == nil {
		chats = []models.Chat{}
	}
	raw, err := json.Marshal(chats)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO chat_cache(user_key, chats_json, updated_at_ms) VALUES(?, ?, ?)
ON CONFLICT(user_key) DO UPDATE SET chats_json = excluded.chats_json, updated_at_ms = excluded.updated_at_ms
`, userKey, string(raw), r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save chat cache: %w", err)
	}
	return nil
}

// chatCacheDoc 는 chat_cache 컬렉션 문서다.
type chatCacheDoc struct {
	UserKey   string        `bson:"user_key"`
	Chats     []models.Chat `bson:"chats"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type MongoChatCache struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoChatCache(d *mongo.Database) *MongoChatCache {
	return &MongoChatCache{col: d.Collection(db.ChatCacheCollection), now: time.Now}
}

func (r *MongoChatCache) Load(ctx context.Context, userKey string) ([]models.Chat, error) {
	var doc chatCacheDoc
	err := r.col.FindOne(ctx, bson.M{"user_key": userKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Chats, nil
}

func (r *MongoChatCache) Save(ctx context.Context, userKey string, chats []models.Chat) error {
	if chats == nil {
		chats = []models.Chat{}
	}
	filter := bson.M{"user_key": userKey}
	update := bson.M{
		"$set": bson.M{
			"chats":      chats,
			"updated_at": r.now(),
		},
	}
	_, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}
