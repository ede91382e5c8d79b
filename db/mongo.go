package db

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"contextbase/internal/logger"
)

// ChatCacheCollection 은 사용자별 마지막 채팅 목록을 보관하는 컬렉션이다.
const ChatCacheCollection = "chat_cache"

var (
	clientOnce sync.Once
	client     *mongo.Client
	database   *mongo.Database
)

// InitMongo 는 전역 Mongo 클라이언트를 한 번만 연결하고 인덱스를 보장한다.
func InitMongo(ctx context.Context, uri, dbName string) error {
	var initErr error
	clientOnce.Do(func() {
		if dbName == "" {
			dbName = "contextbase"
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		cl, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			initErr = err
			return
		}
		if err := cl.Ping(ctx, readpref.Primary()); err != nil {
			initErr = err
			return
		}
		client = cl
		database = client.Database(dbName)

		if err := ensureIndexes(ctx, database); err != nil {
			initErr = err
			return
		}
		logger.InfoWithFields("MongoDB connected and indexes ensured", logger.Fields{"database": dbName})
	})
	return initErr
}

func Client() *mongo.Client     { return client }
func Database() *mongo.Database { return database }

// DisconnectMongo 는 연결되어 있으면 클라이언트를 닫는다.
func DisconnectMongo(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

func ensureIndexes(ctx context.Context, d *mongo.Database) error {
	// chat_cache: unique index on user_key
	_, err := d.Collection(ChatCacheCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_key", Value: 1}},
		Options: options.Index().SetName("uniq_user_key").SetUnique(true),
	})
	return err
}
