package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"contextbase/cmd/bridge/dto"
	"contextbase/models"
)

// SendMessageHandler 는 :id 채팅으로 메시지를 보낸다.
// JSON 본문({"content"}) 또는 multipart 폼(content, files)을 받는다.
func SendMessageHandler(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			content string
			files   []models.FileUpload
		)
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			form, err := c.MultipartForm()
			if err != nil {
				c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
				return
			}
			if files, err = readFiles(form); err != nil {
				c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_file", Message: err.Error()})
				return
			}
			content = firstValue(form, "content")
		} else {
			var req dto.SendMessageRequestDTO
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
				return
			}
			content = req.Content
		}

		res, err := svc.Send(intentContext(c), c.Param("id"), content, files)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.SendMessageResponseDTO{Result: res})
	}
}

// NotificationsHandler 는 쌓인 알림을 꺼내 반환한다. 같은 알림은 두 번 반환되지 않는다.
func NotificationsHandler(src NotificationSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"notifications": src.Drain()})
	}
}

// StreamHandler 는 상태 전이를 SSE "state" 이벤트로 흘려보낸다.
// 구독 직후 현재 상태가 먼저 전송된다.
func StreamHandler(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ch, cancel := svc.Watch(8)
		defer cancel()

		ctx := c.Request.Context()
		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case snap, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent("state", snap)
				return true
			}
		})
	}
}
