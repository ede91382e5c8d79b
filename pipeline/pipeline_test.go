package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contextbase/chatstore"
	"contextbase/models"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func confirmed(id, chatID string, role models.Role, content string) models.Message {
	return models.Message{ID: id, ChatID: chatID, Role: role, Content: content, CreatedAt: now}
}

func activeStore(chatID string, msgs ...models.Message) *chatstore.Store {
	s := chatstore.New()
	c := models.Chat{ID: chatID, Name: "New Chat"}
	s.SetChats([]models.Chat{c})
	s.SetActiveChat(&c)
	s.SetMessages(msgs)
	return s
}

func TestBegin_InsertsEchoThenPlaceholder(t *testing.T) {
	s := activeStore("c1", confirmed("m1", "c1", models.RoleUser, "earlier"))

	p := Begin(s, "c1", "hello", now)
	require.True(t, p.Inserted())

	msgs := s.Snapshot().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, p.UserEchoID, msgs[1].ID)
	assert.Equal(t, models.UserEcho, msgs[1].Provisional)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.Equal(t, p.PlaceholderID, msgs[2].ID)
	assert.True(t, msgs[2].Loading)
	assert.Equal(t, models.RoleAssistant, msgs[2].Role)
}

func TestBegin_SkipsWhenNotActiveOrBlank(t *testing.T) {
	s := activeStore("c1")

	assert.False(t, Begin(s, "c1", "   ", now).Inserted())
	assert.False(t, Begin(s, "other", "hi", now).Inserted())
	assert.Empty(t, s.Snapshot().Messages)
}

func TestReconcile_StripsAllProvisionalAndAppends(t *testing.T) {
	prior := []models.Message{
		confirmed("m1", "c1", models.RoleUser, "q1"),
		confirmed("m2", "c1", models.RoleAssistant, "a1"),
		models.NewUserEcho("c1", "q2", now),
		models.NewAssistantPlaceholder("c1", now),
	}
	priorCopy := append([]models.Message(nil), prior...)
	res := models.SendResult{
		UserMessage: confirmed("m3", "c1", models.RoleUser, "q2"),
		AIMessage:   confirmed("m4", "c1", models.RoleAssistant, "a2"),
	}

	got := Reconcile(prior, res)

	want := []models.Message{prior[0], prior[1], res.UserMessage, res.AIMessage}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Reconcile mismatch (-want +got):\n%s", diff)
	}
	// 입력은 그대로여야 한다.
	if diff := cmp.Diff(priorCopy, prior); diff != "" {
		t.Fatalf("prior mutated (-want +got):\n%s", diff)
	}
}

func TestReconcile_DoesNotDuplicateAlreadyFetched(t *testing.T) {
	prior := []models.Message{confirmed("m3", "c1", models.RoleUser, "q2")}
	res := models.SendResult{
		UserMessage: confirmed("m3", "c1", models.RoleUser, "q2"),
		AIMessage:   confirmed("m4", "c1", models.RoleAssistant, "a2"),
	}

	got := Reconcile(prior, res)
	assert.Equal(t, []string{"m3", "m4"}, idsOf(got))
}

func TestMergeFetched_KeepsProvisionalTail(t *testing.T) {
	echo := models.NewUserEcho("c1", "q", now)
	current := []models.Message{confirmed("old", "c1", models.RoleUser, "x"), echo}
	fetched := []models.Message{confirmed("m1", "c1", models.RoleUser, "q1")}

	got := MergeFetched(fetched, current)
	assert.Equal(t, []string{"m1", echo.ID}, idsOf(got))
}

func TestSettle_Success(t *testing.T) {
	s := activeStore("c1", confirmed("m1", "c1", models.RoleUser, "q1"))
	Begin(s, "c1", "q2", now)
	name := "Quarterly revenue"

	out := Settle(s, "c1", &models.SendResult{
		UserMessage: confirmed("m2", "c1", models.RoleUser, "q2"),
		AIMessage:   confirmed("m3", "c1", models.RoleAssistant, "a2"),
		ChatName:    &name,
	}, nil)

	assert.True(t, out.Applied)
	assert.True(t, out.Renamed)
	snap := s.Snapshot()
	assert.Equal(t, []string{"m1", "m2", "m3"}, idsOf(snap.Messages))
	assert.Equal(t, name, snap.ActiveChat.Name)
	assert.Equal(t, name, snap.Chats[0].Name)
}

func TestSettle_FailureRollsBack(t *testing.T) {
	s := activeStore("c1", confirmed("m1", "c1", models.RoleUser, "q1"))
	before := s.Snapshot().Messages
	Begin(s, "c1", "q2", now)

	out := Settle(s, "c1", nil, errors.New("boom"))

	assert.True(t, out.RolledBack)
	if diff := cmp.Diff(before, s.Snapshot().Messages); diff != "" {
		t.Fatalf("rollback mismatch (-want +got):\n%s", diff)
	}
}

func TestSettle_AfterSwitchOnlyRenamesByID(t *testing.T) {
	s := chatstore.New()
	a := models.Chat{ID: "a", Name: "New Chat"}
	b := models.Chat{ID: "b", Name: "B"}
	s.SetChats([]models.Chat{a, b})
	s.SetActiveChat(&a)
	Begin(s, "a", "q", now)
	s.SetActiveChat(&b)
	s.AppendMessage(confirmed("b1", "b", models.RoleUser, "bq"))
	name := "Renamed A"

	out := Settle(s, "a", &models.SendResult{
		UserMessage: confirmed("a1", "a", models.RoleUser, "q"),
		AIMessage:   confirmed("a2", "a", models.RoleAssistant, "r"),
		ChatName:    &name,
	}, nil)

	assert.False(t, out.Applied)
	assert.True(t, out.Renamed)
	snap := s.Snapshot()
	assert.Equal(t, []string{"b1"}, idsOf(snap.Messages))
	assert.Equal(t, "B", snap.ActiveChat.Name)
	assert.Equal(t, name, snap.Chats[0].Name)
}

func TestSettle_NilResultStripsWithoutRollbackFlag(t *testing.T) {
	s := activeStore("c1")
	out := Settle(s, "c1", nil, nil)
	assert.Equal(t, Outcome{}, out)
}

func idsOf(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
