package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"Ephemera/internal/api/dto"
	"Ephemera/internal/pkg/consts"
	"Ephemera/internal/pkg/response"
	"Ephemera/internal/service"
)

type MessageHandler struct {
	messageService service.MessageService
}

func NewMessageHandler(messageService service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// Create 发送消息
func (s *MessageHandler) Create(c *gin.Context) {
	var req dto.CreateMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	senderID := c.GetUint64(consts.UserIDKey)
	res, err := s.messageService.Create(c.Request.Context(), senderID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Amend 追加文本
func (s *MessageHandler) Amend(c *gin.Context) {
	var req dto.AmendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	userID := c.GetUint64(consts.UserIDKey)
	res, err := s.messageService.Amend(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Delete 删除自己发送的消息
func (s *MessageHandler) Delete(c *gin.Context) {
	userID := c.GetUint64(consts.UserIDKey)
	res, err := s.messageService.Delete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// List 会话读窗口
func (s *MessageHandler) List(c *gin.Context) {
	var req dto.ListMessagesReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64(consts.UserIDKey)
	res, err := s.messageService.List(c.Request.Context(), userID, req.PeerID, req.Since)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Stats 会话累计消息数
func (s *MessageHandler) Stats(c *gin.Context) {
	peerID, err := strconv.ParseUint(c.Param("peer_id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	userID := c.GetUint64(consts.UserIDKey)
	res, err := s.messageService.Stats(c.Request.Context(), userID, peerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
