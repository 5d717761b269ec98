package handler

import (
	"errors"
	"net/http"

	"github.com/BAGS69FUN/BAGS69/internal/logger"
	"github.com/BAGS69FUN/BAGS69/internal/logic"
	"github.com/BAGS69FUN/BAGS69/internal/store"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// HandleLogicError 按错误类型映射HTTP状态码。
// 重复结算返回409并附带首次结算的交易签名。
func HandleLogicError(c *gin.Context, err error) {
	var validationErr *logic.ValidationError
	var preconditionErr *logic.PreconditionError
	var externalErr *logic.ExternalError
	var resolvedErr *store.AlreadyResolvedError

	switch {
	case errors.Is(err, store.ErrPresaleNotFound):
		ErrorResponse(c, http.StatusNotFound, "预售不存在")
	case errors.Is(err, store.ErrParticipantNotFound):
		ErrorResponse(c, http.StatusNotFound, "参与记录不存在")
	case errors.As(err, &resolvedErr):
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Message: "该参与记录已结算",
			Data:    gin.H{"signature": resolvedErr.Signature},
		})
	case errors.As(err, &validationErr):
		ErrorResponse(c, http.StatusBadRequest, validationErr.Msg)
	case errors.As(err, &preconditionErr):
		ErrorResponse(c, http.StatusUnprocessableEntity, preconditionErr.Msg)
	case errors.As(err, &externalErr):
		logger.Error("External dependency failure: %v", err)
		ErrorResponse(c, http.StatusBadGateway, externalErr.Msg)
	default:
		logger.Error("Unhandled error: %v", err)
		ErrorResponse(c, http.StatusInternalServerError, "服务内部错误")
	}
}
