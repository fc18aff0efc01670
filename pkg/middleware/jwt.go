package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer はVaultDeskが発行するトークンのiss。
const Issuer = "vaultdesk"

// コンテキストキー
const (
	keyUserID   = "user_id"
	keyUsername = "username"
	keyIsAdmin  = "is_admin"
)

// ErrInvalidToken はトークンの検証に失敗したことを表す。
var ErrInvalidToken = errors.New("トークンが無効です")

// JWTClaims はJWTトークンのクレーム。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Username はログイン名。
	Username string `json:"username"`
	// IsAdmin は管理者権限を持つかどうか。
	IsAdmin bool `json:"is_admin"`
}

// GenerateJWT はユーザー情報から有効期限 ttl のJWTトークンを生成する。
func GenerateJWT(secret, userID, username string, isAdmin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseToken はトークン文字列を検証してクレームを返す。
func ParseToken(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Issuer))
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func BearerToken(header string) (string, bool) {
	return strings.CutPrefix(header, "Bearer ")
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id"、"username"、"is_admin" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := BearerToken(authHeader)
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		SetIdentity(c, claims.UserID, claims.Username, claims.IsAdmin)
		c.Next()
	}
}

// RequireAdmin は管理者以外のリクエストを403で拒否するGinミドルウェアを返す。
// JWTAuth の後に適用する。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "管理者権限が必要です"})
			return
		}
		c.Next()
	}
}

// SetIdentity は認証済みユーザーの情報をコンテキストに設定する。
func SetIdentity(c *gin.Context, userID, username string, isAdmin bool) {
	c.Set(keyUserID, userID)
	c.Set(keyUsername, username)
	c.Set(keyIsAdmin, isAdmin)
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
func GetUserID(c *gin.Context) string {
	return c.GetString(keyUserID)
}

// GetUsername はGinコンテキストからログイン名を取得する。
func GetUsername(c *gin.Context) string {
	return c.GetString(keyUsername)
}

// IsAdmin は認証済みユーザーが管理者かどうかを返す。
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(keyIsAdmin)
}
