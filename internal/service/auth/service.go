package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ashwinyue/next-files/internal/model"
	"github.com/ashwinyue/next-files/internal/repository"
)

var (
	// ErrInvalidToken 令牌无效或已过期
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnverifiedUser 用户未激活或仍在待审核状态
	ErrUnverifiedUser = errors.New("user is not verified")
)

// Service 认证服务，只负责校验令牌
type Service struct {
	users  repository.UserRepository
	secret []byte
}

// NewService 创建认证服务
// secret 为空时生成随机密钥，此时外部签发的令牌都无法通过校验
func NewService(users repository.UserRepository, secret string) *Service {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		log.Printf("Warning: auth.jwtSecret is empty, using a random secret")
		secret = randomSecret()
	}
	return &Service{users: users, secret: []byte(secret)}
}

// ValidateToken 验证令牌并返回对应用户
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*model.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	// 兼容 user_id 与标准 sub
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		userID, _ = claims["sub"].(string)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", ErrInvalidToken)
		}
		return nil, err
	}

	if !user.IsActive || (user.Role != model.RoleUser && user.Role != model.RoleAdmin) {
		return nil, ErrUnverifiedUser
	}
	return user, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate JWT secret: %v", err))
	}
	return base64.StdEncoding.EncodeToString(b)
}
