package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// 클라이언트가 생성하는 임시 메시지 id 접두사. 서버 id(uuid)와 겹치지 않는다.
const (
	TempIDPrefix    = "temp-"
	LoadingIDPrefix = "loading-"
)

// ProvisionalKind 는 서버 확정 전 메시지의 종류다.
type ProvisionalKind string

const (
	NotProvisional       ProvisionalKind = ""
	UserEcho             ProvisionalKind = "user_echo"
	AssistantPlaceholder ProvisionalKind = "assistant_placeholder"
)

// Message 는 채팅 안의 발화 한 건이다.
// 확정 메시지는 서버가 id 를 부여하고, 임시 메시지는 TempIDPrefix/LoadingIDPrefix 로 시작한다.
type Message struct {
	ID          string          `json:"id"`
	ChatID      string          `json:"chat_id"`
	Role        Role            `json:"role"`
	Content     string          `json:"content"`
	Sources     *string         `json:"sources,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Loading     bool            `json:"loading,omitempty"`
	Provisional ProvisionalKind `json:"provisional,omitempty"`
}

// IsProvisional 은 서버가 아직 확정하지 않은 메시지인지 판단한다.
func (m Message) IsProvisional() bool {
	if m.Provisional != NotProvisional || m.Loading {
		return true
	}
	return strings.HasPrefix(m.ID, TempIDPrefix) || strings.HasPrefix(m.ID, LoadingIDPrefix)
}

// NewUserEcho 는 전송 직후 보여줄 사용자 메시지 사본을 만든다.
func NewUserEcho(chatID, content string, now time.Time) Message {
	return Message{
		ID:          TempIDPrefix + uuid.NewString(),
		ChatID:      chatID,
		Role:        RoleUser,
		Content:     content,
		CreatedAt:   now,
		Provisional: UserEcho,
	}
}

// NewAssistantPlaceholder 는 응답 대기 중임을 나타내는 assistant 자리표시 메시지를 만든다.
func NewAssistantPlaceholder(chatID string, now time.Time) Message {
	return Message{
		ID:          LoadingIDPrefix + uuid.NewString(),
		ChatID:      chatID,
		Role:        RoleAssistant,
		CreatedAt:   now,
		Loading:     true,
		Provisional: AssistantPlaceholder,
	}
}

// SendResult 는 메시지 전송 성공 응답이다.
// ChatName 은 서버가 채팅 제목을 자동으로 바꾼 경우에만 채워진다.
type SendResult struct {
	UserMessage Message `json:"user_message"`
	AIMessage   Message `json:"ai_message"`
	ChatName    *string `json:"chat_name,omitempty"`
}
