package repositories

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"contextbase/db"
	"contextbase/models"
)

// CONTEXTBASE_TEST_MONGO_URI 가 있을 때만 실제 MongoDB 에 붙어 실행한다.
func newMongoCache(t *testing.T) (*MongoChatCache, *mongo.Database) {
	t.Helper()
	uri := strings.TrimSpace(os.Getenv("CONTEXTBASE_TEST_MONGO_URI"))
	if uri == "" {
		t.Skip("set CONTEXTBASE_TEST_MONGO_URI to run MongoDB cache tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cl, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	d := cl.Database("contextbase_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = d.Drop(ctx)
		_ = cl.Disconnect(ctx)
	})
	return NewMongoChatCache(d), d
}

func TestMongoChatCache_LoadMissing(t *testing.T) {
	r, _ := newMongoCache(t)
	chats, err := r.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, chats)
}

func TestMongoChatCache_SaveUpsertsWithInjectedClock(t *testing.T) {
	r, d := newMongoCache(t)
	ctx := context.Background()
	stamp := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return stamp }
	created := time.Date(2025, 2, 1, 8, 30, 0, 0, time.UTC)

	require.NoError(t, r.Save(ctx, "u1", []models.Chat{{ID: "a", Name: "First", CreatedAt: created}}))
	require.NoError(t, r.Save(ctx, "u1", []models.Chat{
		{ID: "b", Name: "Second", CreatedAt: created},
		{ID: "a", Name: "First", CreatedAt: created},
	}))

	chats, err := r.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "b", chats[0].ID)
	assert.True(t, chats[1].CreatedAt.Equal(created))

	n, err := d.Collection(db.ChatCacheCollection).CountDocuments(ctx, bson.M{"user_key": "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var doc chatCacheDoc
	require.NoError(t, d.Collection(db.ChatCacheCollection).FindOne(ctx, bson.M{"user_key": "u1"}).Decode(&doc))
	assert.True(t, doc.UpdatedAt.Equal(stamp))
}
