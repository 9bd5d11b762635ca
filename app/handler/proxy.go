package handler

import (
	"net/http"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/service"
	"time"

	"github.com/gin-gonic/gin"
)

// proxyTestTimeout 单次代理探测超时
const proxyTestTimeout = 10 * time.Second

// ProxyHandler 代理池管理接口
type ProxyHandler struct {
	logger  *logger.Logger
	proxies *service.ProxyService
}

// NewProxyHandler 创建代理处理器
func NewProxyHandler(log *logger.Logger, proxies *service.ProxyService) *ProxyHandler {
	return &ProxyHandler{
		logger:  log,
		proxies: proxies,
	}
}

// ProxyRequest 代理请求体
type ProxyRequest struct {
	Proxy string `json:"proxy" binding:"required"`
}

// AddProxy 添加代理到轮换池
func (h *ProxyHandler) AddProxy(c *gin.Context) {
	var req ProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	if err := h.proxies.Add(req.Proxy); err != nil {
		respondError(c, http.StatusBadRequest, 400, "添加代理失败: "+err.Error())
		return
	}

	respondOK(c, gin.H{"total": h.proxies.Count()}, "代理已添加")
}

// TestProxy 测试代理可用性
func (h *ProxyHandler) TestProxy(c *gin.Context) {
	var req ProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, 400, "请求参数错误: "+err.Error())
		return
	}

	result := gin.H{"proxy": req.Proxy, "available": true}
	if err := h.proxies.Test(c.Request.Context(), req.Proxy, proxyTestTimeout); err != nil {
		result["available"] = false
		result["error"] = err.Error()
	}

	respondOK(c, result, "测试完成")
}

// ListProxies 列出轮换池中的代理
func (h *ProxyHandler) ListProxies(c *gin.Context) {
	proxies := h.proxies.List()
	respondOK(c, gin.H{"total": len(proxies), "proxies": proxies}, "success")
}
