package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"contextbase/cmd/bridge/dto"
)

// StateHandler 는 현재 상태 스냅샷을 반환한다.
func StateHandler(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.State())
	}
}

// RefreshChatsHandler 는 채팅 목록을 다시 받아온다.
func RefreshChatsHandler(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.FetchChats(intentContext(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.ChatListResponseDTO{Chats: res.Chats, Applied: res.Applied})
	}
}

// SelectChatHandler 는 활성 채팅을 바꾸고 그 메시지를 조회한다.
func SelectChatHandler(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.SelectChatRequestDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
			return
		}
		res, err := svc.SelectChat(intentContext(c), strings.TrimSpace(req.ChatID))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.MessageListResponseDTO{ChatID: res.ChatID, Messages: res.Messages, Applied: res.Applied})
	}
}

// ListMessagesHandler 는 :id 채팅의 메시지를 다시 받아온다. 활성 채팅이 아니면 상태는 바뀌지 않는다.
func ListMessagesHandler(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.FetchMessages(intentContext(c), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.MessageListResponseDTO{ChatID: res.ChatID, Messages: res.Messages, Applied: res.Applied})
	}
}

// CreateChatHandler 는 multipart 폼(name, files)으로 채팅을 만든다.
func CreateChatHandler(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil && !errors.Is(err, http.ErrNotMultipart) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
			return
		}
		files, err := readFiles(form)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_file", Message: err.Error()})
			return
		}
		name := firstValue(form, "name")
		if form == nil {
			name = c.PostForm("name")
		}

		chat, err := svc.CreateChat(intentContext(c), name, files)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, chat)
	}
}

// DeleteChatHandler 는 :id 채팅을 삭제한다.
func DeleteChatHandler(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteChat(intentContext(c), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.MessageResponseDTO{Message: "chat deleted"})
	}
}

// RenameChatHandler 는 :id 채팅의 이름을 바꾼다.
func RenameChatHandler(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.RenameChatRequestDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
			return
		}
		chat, err := svc.RenameChat(intentContext(c), c.Param("id"), req.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, chat)
	}
}
