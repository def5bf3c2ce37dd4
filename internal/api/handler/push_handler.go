package handler

import (
	"github.com/gin-gonic/gin"

	"Ephemera/internal/api/dto"
	"Ephemera/internal/pkg/consts"
	"Ephemera/internal/pkg/response"
	"Ephemera/internal/service"
)

type PushHandler struct {
	pushTokenService service.PushTokenService
}

func NewPushHandler(pushTokenService service.PushTokenService) *PushHandler {
	return &PushHandler{pushTokenService: pushTokenService}
}

// SaveToken 注册当前设备的推送 token
func (s *PushHandler) SaveToken(c *gin.Context) {
	var req dto.PushTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	userID := c.GetUint64(consts.UserIDKey)
	if err := s.pushTokenService.Register(c.Request.Context(), userID, req.Token); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
