package dto

import "contextbase/models"

// ErrorResponseDTO는 공통 에러 응답 형식을 통일하기 위한 DTO이다.
type ErrorResponseDTO struct {
	Error   string `json:"error" example:"unavailable"`
	Message string `json:"message,omitempty"`
}

// MessageResponseDTO는 단순 메시지 응답 형식을 통일하기 위한 DTO이다.
type MessageResponseDTO struct {
	Message string `json:"message" example:"chat deleted"`
}

type SelectChatRequestDTO struct {
	// 빈 값이면 선택을 해제한다.
	ChatID string `json:"chat_id"`
}

type SendMessageRequestDTO struct {
	Content string `json:"content"`
}

type RenameChatRequestDTO struct {
	Name string `json:"name" binding:"required"`
}

type ChatListResponseDTO struct {
	Chats   []models.Chat `json:"chats"`
	Applied bool          `json:"applied"`
}

type MessageListResponseDTO struct {
	ChatID   string           `json:"chat_id"`
	Messages []models.Message `json:"messages"`
	Applied  bool             `json:"applied"`
}

// SendMessageResponseDTO 의 Result 는 파일만 올린 경우 nil 이다.
type SendMessageResponseDTO struct {
	Result *models.SendResult `json:"result"`
}
