package auth

import (
	"errors"
	"testing"

	"subtitle-fusion/app/config"
)

func newTestService(expireHours int) *JWTService {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Issuer = "subtitle-fusion"
	cfg.JWT.ExpireTime = expireHours
	return NewJWTService(cfg)
}

func TestGenerateAndValidate(t *testing.T) {
	svc := newTestService(24)

	token, err := svc.GenerateToken(7, "admin", true)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("校验令牌失败: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "admin" || !claims.IsAdmin {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Issuer != "subtitle-fusion" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
}

func TestValidateRejectsForeignToken(t *testing.T) {
	token, err := newTestService(24).GenerateToken(1, "admin", false)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	other := newTestService(24)
	other.secret = []byte("another-secret")
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("不同密钥签发的令牌应被拒绝")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := newTestService(24)
	if _, err := svc.ValidateToken("not-a-jwt"); err == nil {
		t.Fatal("非法令牌应被拒绝")
	}
	if _, err := svc.ValidateToken(""); err == nil {
		t.Fatal("空令牌应被拒绝")
	}
}

func TestRefreshTokenStillFresh(t *testing.T) {
	svc := newTestService(24)
	token, err := svc.GenerateToken(1, "admin", true)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	// 剩余有效期远超刷新窗口
	if _, err := svc.RefreshToken(token); !errors.Is(err, ErrTokenStillFresh) {
		t.Errorf("err = %v, want ErrTokenStillFresh", err)
	}
}

func TestRefreshTokenNearExpiry(t *testing.T) {
	// 有效期一小时的令牌立刻就落在刷新窗口内
	svc := newTestService(1)
	token, err := svc.GenerateToken(2, "admin", false)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	refreshed, err := svc.RefreshToken(token)
	if err != nil {
		t.Fatalf("刷新令牌失败: %v", err)
	}
	claims, err := svc.ValidateToken(refreshed)
	if err != nil {
		t.Fatalf("校验新令牌失败: %v", err)
	}
	if claims.UserID != 2 || claims.Username != "admin" || claims.IsAdmin {
		t.Errorf("刷新后的 claims = %+v", claims)
	}
}
