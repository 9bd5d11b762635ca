package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ApiResponse 统一的API响应格式
type ApiResponse struct {
	Code    int    `json:"code"`    // 状态码，0表示成功
	Message string `json:"message"` // 响应消息
	Data    any    `json:"data"`    // 响应数据
}

// respondOK 写入成功响应
func respondOK(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{Code: 0, Message: message, Data: data})
}

// respondError 写入错误响应，errorCode 与 HTTP 状态码保持一致
func respondError(c *gin.Context, statusCode, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{Code: errorCode, Message: message})
}
