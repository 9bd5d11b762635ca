package service

import (
	"context"
	"fmt"
	"net/url"
	"subtitle-fusion/app/logger"
	"sync"
	"time"

	"resty.dev/v3"
)

// proxyTestURL 代理连通性探测地址
const proxyTestURL = "https://httpbin.org/ip"

// ProxyService 代理池服务，轮询分配代理给下载请求
type ProxyService struct {
	logger  *logger.Logger
	testURL string

	mu      sync.Mutex
	proxies []string
	next    int
}

// NewProxyService 创建代理池服务，initial 为配置文件中预置的代理
func NewProxyService(log *logger.Logger, initial []string) *ProxyService {
	s := &ProxyService{
		logger:  log,
		testURL: proxyTestURL,
	}
	for _, p := range initial {
		if err := s.Add(p); err != nil {
			log.Warnf("忽略无效代理配置: %s: %v", p, err)
		}
	}
	return s
}

// Add 添加代理，要求完整的 URL（http/https/socks5）
func (s *ProxyService) Add(proxyURL string) error {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("代理地址解析失败: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("代理地址格式无效: %s", proxyURL)
	}
	switch parsed.Scheme {
	case "http", "https", "socks5":
	default:
		return fmt.Errorf("不支持的代理协议: %s", parsed.Scheme)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.proxies {
		if p == proxyURL {
			return fmt.Errorf("代理已存在: %s", proxyURL)
		}
	}
	s.proxies = append(s.proxies, proxyURL)
	s.logger.Infof("添加代理: %s", proxyURL)
	return nil
}

// List 返回当前代理列表的副本
func (s *ProxyService) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.proxies))
	copy(out, s.proxies)
	return out
}

// Count 返回代理数量
func (s *ProxyService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.proxies)
}

// Next 轮询返回下一个代理，代理池为空时返回空字符串
func (s *ProxyService) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.proxies) == 0 {
		return ""
	}
	p := s.proxies[s.next%len(s.proxies)]
	s.next++
	return p
}

// Test 通过代理发起探测请求验证连通性
func (s *ProxyService) Test(ctx context.Context, proxyURL string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	defer client.Close()
	client.SetProxy(proxyURL)
	client.SetTimeout(timeout)

	resp, err := client.R().
		SetContext(ctx).
		Get(s.testURL)
	if err != nil {
		return fmt.Errorf("代理连接失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("代理探测失败，状态码: %d", resp.StatusCode())
	}
	return nil
}
