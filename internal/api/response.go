package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/pcpos/internal/errors"
	"github.com/wfunc/pcpos/internal/middleware"
)

// respondError 按错误码输出错误响应，调用栈不对外暴露
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(err, apperrors.ErrUnknown)
	}

	public := &apperrors.AppError{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	c.JSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(public, middleware.GetRequestID(c)))
}
