package auth

import (
	"errors"
	"time"

	"subtitle-fusion/app/config"

	"github.com/golang-jwt/jwt/v5"
)

// 剩余有效期超过该窗口的令牌不允许刷新
const refreshWindow = time.Hour

var (
	ErrInvalidToken    = errors.New("无效的令牌")
	ErrTokenStillFresh = errors.New("令牌尚未临近过期，无需刷新")
)

// Claims 访问令牌中携带的用户信息
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// JWTService 签发与校验访问令牌
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewJWTService 创建JWT服务
func NewJWTService(cfg *config.Config) *JWTService {
	return &JWTService{
		secret: []byte(cfg.JWT.Secret),
		issuer: cfg.JWT.Issuer,
		ttl:    time.Duration(cfg.JWT.ExpireTime) * time.Hour,
	}
}

// ExpiresIn 返回新签发令牌的有效期
func (j *JWTService) ExpiresIn() time.Duration {
	return j.ttl
}

// GenerateToken 为用户签发访问令牌
func (j *JWTService) GenerateToken(userID uint, username string, isAdmin bool) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// ValidateToken 校验令牌并取回声明
func (j *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RefreshToken 用临近过期的旧令牌换发新令牌
func (j *JWTService) RefreshToken(tokenString string) (string, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	if time.Until(claims.ExpiresAt.Time) > refreshWindow {
		return "", ErrTokenStillFresh
	}
	return j.GenerateToken(claims.UserID, claims.Username, claims.IsAdmin)
}
