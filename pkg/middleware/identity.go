package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// headerKeyUserID はgatewayがsubjectを伝播するためのHTTPヘッダーキー。
	headerKeyUserID = "X-User-ID"
	// headerKeyUserRoles はgatewayが権限リストを伝播するためのHTTPヘッダーキー。
	headerKeyUserRoles = "X-User-Roles"
)

// GatewayAuth はgatewayが付与した識別ヘッダーを読み取るGinミドルウェアを返す。
// JWTの検証はgatewayで完了しているため、ここではヘッダーの存在のみを確認し、
// コンテキストに "user_id" と "roles" を設定する。
// X-User-IDヘッダーがないリクエストは401で拒否する。
func GatewayAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerKeyUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証情報がありません",
			})
			return
		}

		c.Set("user_id", userID)
		c.Set("roles", parseRoles(c.GetHeader(headerKeyUserRoles)))
		c.Next()
	}
}

// parseRoles はカンマ区切りの権限ヘッダーを順序を保ってリストに変換する。
// 空要素は取り除く。
func parseRoles(rolesHeader string) []string {
	if rolesHeader == "" {
		return []string{}
	}
	roles := make([]string, 0, strings.Count(rolesHeader, ",")+1)
	for _, r := range strings.Split(rolesHeader, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// GatewayAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetRoles はGinコンテキストから権限リストを取得する。
// GatewayAuthミドルウェアが事前に適用されている必要がある。
func GetRoles(c *gin.Context) []string {
	roles, _ := c.Get("roles")
	if rs, ok := roles.([]string); ok {
		return rs
	}
	return []string{}
}

// HasRole はコンテキストの権限リストに指定された権限が含まれるかを返す。
func HasRole(c *gin.Context, role string) bool {
	for _, r := range GetRoles(c) {
		if r == role {
			return true
		}
	}
	return false
}
