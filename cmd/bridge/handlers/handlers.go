package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"contextbase/chatstore"
	"contextbase/cmd/bridge/dto"
	"contextbase/models"
	"contextbase/notify"
	"contextbase/orchestrator"
)

// ChatService 는 핸들러가 사용하는 인텐트 집합이다. *orchestrator.Orchestrator 가 구현한다.
type ChatService interface {
	State() chatstore.Snapshot
	Watch(buffer int) (<-chan chatstore.Snapshot, func())
	FetchChats(ctx context.Context) (orchestrator.ChatsResult, error)
	SelectChat(ctx context.Context, chatID string) (orchestrator.MessagesResult, error)
	FetchMessages(ctx context.Context, chatID string) (orchestrator.MessagesResult, error)
	CreateChat(ctx context.Context, name string, files []models.FileUpload) (models.Chat, error)
	Send(ctx context.Context, chatID, content string, files []models.FileUpload) (*models.SendResult, error)
	DeleteChat(ctx context.Context, chatID string) error
	RenameChat(ctx context.Context, chatID, name string) (models.Chat, error)
}

// NotificationSource 는 아직 보여주지 않은 알림을 꺼내준다.
type NotificationSource interface {
	Drain() []notify.Notification
}

// 업로드 파일 하나의 최대 크기
const maxUploadBytes = 32 << 20

// intentContext 는 클라이언트가 연결을 끊어도 작업이 끝까지 진행되어 상태에 반영되도록
// 요청 컨텍스트의 취소만 떼어낸다. trace 값은 유지된다.
func intentContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// writeError 는 인텐트 오류를 HTTP 응답으로 바꾼다.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var f *orchestrator.Failure
	switch {
	case errors.As(err, &f):
		status := f.StatusCode
		if f.Kind == orchestrator.KindStale {
			status = http.StatusConflict
		}
		if status == 0 {
			status = http.StatusBadGateway
		}
		c.JSON(status, dto.ErrorResponseDTO{Error: string(f.Kind), Message: f.Message})
	case errors.Is(err, orchestrator.ErrUnknownChat):
		c.JSON(http.StatusNotFound, dto.ErrorResponseDTO{Error: "unknown_chat", Message: err.Error()})
	case errors.Is(err, orchestrator.ErrEmptyMessage),
		errors.Is(err, orchestrator.ErrNoActiveChat),
		errors.Is(err, orchestrator.ErrMissingChatInput),
		errors.Is(err, orchestrator.ErrEmptyChatName):
		c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponseDTO{Error: "internal_error"})
	}
}

// readFiles 는 multipart 폼의 "files" 필드를 FileUpload 로 읽는다.
func readFiles(form *multipart.Form) ([]models.FileUpload, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File["files"]
	files := make([]models.FileUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		if len(data) > maxUploadBytes {
			return nil, errFileTooLarge
		}
		files = append(files, models.FileUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

var errFileTooLarge = errors.New("uploaded file is too large")

func firstValue(form *multipart.Form, key string) string {
	if form == nil || len(form.Value[key]) == 0 {
		return ""
	}
	return form.Value[key][0]
}
