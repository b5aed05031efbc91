package routers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"DigitalHuman-server/routers/api"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Claims 调用方身份
type Claims struct {
	TenantID      string `json:"tenant_id"`
	WalletAddress string `json:"wallet_address"`
	jwt.RegisteredClaims
}

// Identity 配了 jwt_secret 时从 Bearer token 解析身份，否则读 X-Tenant-Id / X-Wallet-Address
func Identity(secret string, log *zap.Logger) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) {
			c.Set(api.CtxTenantID, c.GetHeader("X-Tenant-Id"))
			c.Set(api.CtxWalletAddress, c.GetHeader("X-Wallet-Address"))
			c.Next()
		}
	}
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": http.StatusUnauthorized})
			return
		}
		claims, err := ParseToken(tokenString, secret)
		if err != nil {
			log.Warn("JWT 校验失败", zap.Error(err))
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": http.StatusUnauthorized})
			return
		}
		c.Set(api.CtxTenantID, claims.TenantID)
		c.Set(api.CtxWalletAddress, claims.WalletAddress)
		c.Next()
	}
}

// bearerToken 优先取 Authorization 头；浏览器的 WebSocket 无法设置请求头，退回 ?token=
func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// RequestLogger 访问日志，跳过健康检查和指标
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-Id", requestID)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestID),
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, zap.String("error", msg))
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("请求完成", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("请求完成", fields...)
		default:
			log.Info("请求完成", fields...)
		}
	}
}
