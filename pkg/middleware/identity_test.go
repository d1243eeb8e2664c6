package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestGatewayAuth はGatewayAuthミドルウェアを検証する。
func TestGatewayAuth(t *testing.T) {
	t.Parallel()

	// setupRouter はGatewayAuthを適用し、コンテキストの内容を返すルーターを構築する。
	setupRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(GatewayAuth())
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"user_id": GetUserID(c),
				"roles":   GetRoles(c),
			})
		})
		return router
	}

	t.Run("X-User-IDヘッダーがある場合にコンテキストへ設定されること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-User-ID", "alice")
		req.Header.Set("X-User-Roles", "ADMIN,USER")
		w := httptest.NewRecorder()
		setupRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		var body struct {
			UserID string   `json:"user_id"`
			Roles  []string `json:"roles"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body.UserID != "alice" {
			t.Errorf("user_id = %q, want %q", body.UserID, "alice")
		}
		if !reflect.DeepEqual(body.Roles, []string{"ADMIN", "USER"}) {
			t.Errorf("roles = %v, want [ADMIN USER]", body.Roles)
		}
	})

	t.Run("X-User-IDヘッダーがない場合401が返ること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		setupRouter().ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("権限ヘッダーが空の場合に空リストが設定されること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-User-ID", "bob")
		req.Header.Set("X-User-Roles", "")
		w := httptest.NewRecorder()
		setupRouter().ServeHTTP(w, req)

		var body struct {
			Roles []string `json:"roles"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if len(body.Roles) != 0 {
			t.Errorf("roles = %v, want 空リスト", body.Roles)
		}
	})
}

// TestParseRoles はparseRoles関数を検証する。
func TestParseRoles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   []string
	}{
		{"単一の権限", "USER", []string{"USER"}},
		{"複数の権限の順序が保持されること", "ADMIN,USER", []string{"ADMIN", "USER"}},
		{"空白がトリムされること", " ADMIN , USER ", []string{"ADMIN", "USER"}},
		{"空文字列で空リスト", "", []string{}},
		{"空要素が取り除かれること", "ADMIN,,USER,", []string{"ADMIN", "USER"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseRoles(tt.header); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseRoles(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

// TestHasRole はHasRole関数を検証する。
func TestHasRole(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(GatewayAuth())
	router.GET("/admin", func(c *gin.Context) {
		if !HasRole(c, "ADMIN") {
			c.JSON(http.StatusForbidden, gin.H{"error": "権限がありません"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("権限を持つ場合にアクセスできること", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("X-User-ID", "alice")
		req.Header.Set("X-User-Roles", "ADMIN")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("権限を持たない場合に403が返ること", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("X-User-ID", "bob")
		req.Header.Set("X-User-Roles", "USER")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}
