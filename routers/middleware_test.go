package routers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"DigitalHuman-server/config"
	"DigitalHuman-server/routers/api"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func identityEcho(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/who", Identity(secret, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"tenant": c.GetString(api.CtxTenantID),
			"wallet": c.GetString(api.CtxWalletAddress),
		})
	})
	return r
}

func TestIdentity_FromJWT(t *testing.T) {
	r := identityEcho(testSecret)
	token := signToken(t, Claims{
		TenantID:         "tenant-1",
		WalletAddress:    "0xabc",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tenant":"tenant-1","wallet":"0xabc"}`, w.Body.String())
}

func TestIdentity_RejectsBadTokens(t *testing.T) {
	r := identityEcho(testSecret)
	expired := signToken(t, Claims{
		TenantID:         "tenant-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
	}, testSecret)
	forged := signToken(t, Claims{TenantID: "tenant-1"}, "other-secret")

	for name, header := range map[string]string{
		"missing": "",
		"scheme":  "Token abc",
		"expired": "Bearer " + expired,
		"forged":  "Bearer " + forged,
	} {
		req := httptest.NewRequest(http.MethodGet, "/who", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestIdentity_HeadersWithoutSecret(t *testing.T) {
	r := identityEcho("")
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("X-Tenant-Id", "tenant-2")
	req.Header.Set("X-Wallet-Address", "0xdef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"tenant":"tenant-2","wallet":"0xdef"}`, w.Body.String())
}

func TestInitRouter_HealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := InitRouter(config.ServerConfig{}, api.NewHandler(nil, zap.NewNop()), zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdentity_TokenQueryParam(t *testing.T) {
	r := identityEcho(testSecret)
	token := signToken(t, Claims{
		TenantID:         "tenant-3",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}, testSecret)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tenant":"tenant-3","wallet":""}`, w.Body.String())
}

func TestInitRouter_ProgressSocketRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := InitRouter(config.ServerConfig{JWTSecret: testSecret}, api.NewHandler(nil, zap.NewNop()), zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks/t1/wss", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
