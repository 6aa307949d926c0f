package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Dhoini/stream-access-service/internal/domain"
	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/Dhoini/stream-access-service/pkg/res"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextUserIDKey ключ для хранения ID пользователя в контексте gin.
	ContextUserIDKey ContextKey = "userID"
	authHeaderPrefix            = "Bearer "
)

var errMissingToken = errors.New("missing authorization token")

type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

type TokenClaims struct {
	UserEmail string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTMiddleware определяет зрителя по Bearer-токену.
type JWTMiddleware struct {
	log       *logger.Logger
	validator TokenValidator
}

func NewJWTMiddleware(log *logger.Logger, validator TokenValidator) *JWTMiddleware {
	return &JWTMiddleware{
		log:       log,
		validator: validator,
	}
}

// RequireAuth пропускает только запросы с валидным токеном.
func (m *JWTMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := m.authenticate(c)
		if err != nil {
			m.handleAuthError(c, err)
			return
		}
		c.Set(string(ContextUserIDKey), userID)
		c.Next()
	}
}

// OptionalAuth пропускает анонимные запросы. Присланный, но невалидный токен отклоняется.
func (m *JWTMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := m.authenticate(c)
		switch {
		case errors.Is(err, errMissingToken):
		case err != nil:
			m.handleAuthError(c, err)
			return
		default:
			c.Set(string(ContextUserIDKey), userID)
		}
		c.Next()
	}
}

func (m *JWTMiddleware) authenticate(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}
	if !strings.HasPrefix(authHeader, authHeaderPrefix) {
		return "", errors.New("authorization header must use Bearer scheme")
	}

	claims, err := m.validator.Validate(strings.TrimPrefix(authHeader, authHeaderPrefix))
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("user ID (sub) missing in token")
	}

	m.log.Debugw("User authenticated", "userID", claims.Subject)
	return claims.Subject, nil
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, err error) {
	m.log.Warnw("HTTP authentication failed", "path", c.Request.URL.Path, "error", err)
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error:     err.Error(),
		ErrorCode: "unauthenticated",
	}, http.StatusUnauthorized)
	c.Abort()
}

// RequesterFromContext возвращает зрителя запроса. Без токена это анонимный зритель.
func RequesterFromContext(c *gin.Context) domain.Requester {
	return domain.Requester{UserID: c.GetString(string(ContextUserIDKey))}
}

// DefaultTokenValidator проверяет HMAC-подписанные токены.
type DefaultTokenValidator struct {
	Secret []byte
}

func (v *DefaultTokenValidator) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.Secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.New("malformed token")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.New("invalid token signature")
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, errors.New("token expired")
		default:
			return nil, fmt.Errorf("invalid token: %w", err)
		}
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token claims")
}
