package models

import "time"

// Chat 은 원격 채팅 서비스가 소유한 대화 한 건이다.
// ID 는 서버가 부여하며 클라이언트에서 생성하지 않는다.
type Chat struct {
	ID           string     `bson:"id" json:"id"`
	Name         string     `bson:"name" json:"name"`
	Description  *string    `bson:"description,omitempty" json:"description,omitempty"`
	UserID       string     `bson:"user_id,omitempty" json:"user_id,omitempty"`
	CollectionID *string    `bson:"collection_id,omitempty" json:"collection_id,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// 서버가 첫 메시지 이후 자동으로 제목을 바꿔주는 기본 이름들
var genericChatNames = map[string]struct{}{
	"":          {},
	"New Chat":  {},
	"Documents": {},
}

// HasGenericName 은 서버의 자동 제목 생성 대상 이름인지 여부를 반환한다.
func (c Chat) HasGenericName() bool {
	_, ok := genericChatNames[c.Name]
	return ok
}

// Document 는 채팅 생성/업로드 시 서버가 돌려주는 문서 메타데이터다.
type Document struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id"`
	Filename     *string   `json:"filename,omitempty"`
	FilePath     string    `json:"file_path"`
	FileSize     *string   `json:"file_size,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateChatResult 는 POST /chats/ 응답 본문이다.
type CreateChatResult struct {
	Message   string     `json:"message"`
	Chat      Chat       `json:"chat"`
	Documents []Document `json:"documents"`
}

// UploadResult 는 POST /chats/{id}/upload 응답 본문이다.
type UploadResult struct {
	Message   string     `json:"message"`
	Documents []Document `json:"documents"`
}

// FileUpload 는 multipart 로 전송할 파일 한 개다.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}
