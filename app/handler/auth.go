package handler

import (
	"net/http"
	"strings"
	"time"

	"subtitle-fusion/app/auth"
	"subtitle-fusion/app/database"
	"subtitle-fusion/app/model"
	"subtitle-fusion/app/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证接口。管理员账号由配置初始化，不提供注册
type AuthHandler struct {
	jwtService *auth.JWTService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{jwtService: jwtService}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token    string      `json:"token"`
	User     *model.User `json:"user"`
	ExpireAt int64       `json:"expire_at"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	db := database.GetDB()

	var user model.User
	if err := db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		respondError(c, http.StatusUnauthorized, 401, "用户名或密码错误")
		return
	}
	if !utils.VerifyPassword(req.Password, user.Password) {
		respondError(c, http.StatusUnauthorized, 401, "用户名或密码错误")
		return
	}
	if !user.IsActive {
		respondError(c, http.StatusForbidden, 403, "用户账号已被禁用")
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		respondError(c, http.StatusInternalServerError, 500, "生成令牌失败")
		return
	}

	now := time.Now()
	user.LastLogin = &now
	db.Save(&user)

	respondOK(c, LoginResponse{
		Token:    token,
		User:     &user,
		ExpireAt: now.Add(h.jwtService.ExpiresIn()).Unix(),
	}, "登录成功")
}

// RefreshToken 刷新令牌。只有临近过期的令牌才能换发
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || token == "" {
		respondError(c, http.StatusUnauthorized, 401, "Authorization 头缺失或格式错误，应为 Bearer {token}")
		return
	}

	newToken, err := h.jwtService.RefreshToken(token)
	if err != nil {
		respondError(c, http.StatusUnauthorized, 401, "刷新令牌失败: "+err.Error())
		return
	}

	respondOK(c, gin.H{
		"token":     newToken,
		"expire_at": time.Now().Add(h.jwtService.ExpiresIn()).Unix(),
	}, "刷新成功")
}

// Me 获取当前登录用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		respondError(c, http.StatusUnauthorized, 401, "未认证")
		return
	}

	var user model.User
	if err := database.GetDB().First(&user, userID).Error; err != nil {
		respondError(c, http.StatusNotFound, 404, "用户不存在")
		return
	}

	respondOK(c, user, "success")
}
