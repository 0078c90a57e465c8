package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWallet = "31wdq6EJgHKRjZotAjc6vkuJ7aRyQPauwmgadPiEm8EY"

func TestGenerateAndValidateToken(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateToken(testWallet)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, testWallet, claims.WalletAddress)

	InitJWT("other-secret")
	_, err = ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	InitJWT("test-secret")
	claims := &Claims{
		WalletAddress: testWallet,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ValidateToken(token)
	require.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	InitJWT("test-secret")

	r := gin.New()
	r.GET("/me", AuthMiddleware(zap.NewNop()), func(c *gin.Context) {
		wallet, _ := GetWalletAddress(c)
		c.String(http.StatusOK, wallet)
	})

	token, err := GenerateToken(testWallet)
	require.NoError(t, err)

	tests := []struct {
		header string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"Token " + token, http.StatusUnauthorized},
		{"Bearer garbage", http.StatusUnauthorized},
		{"Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, tt.status, w.Code, tt.header)
		if tt.status == http.StatusOK {
			require.Equal(t, testWallet, w.Body.String())
		}
	}
}
