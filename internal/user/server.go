package user

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	userdb "github.com/nao1215/bookverse/internal/user/db"
	"github.com/nao1215/bookverse/pkg/middleware"
	"github.com/nao1215/bookverse/pkg/token"
)

// tokenTTL は発行するJWTトークンの有効期間。
const tokenTTL = 24 * time.Hour

// Server はユーザーサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *userdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はトークン署名用のシークレット。
	jwtSecret string
}

// NewServer は新しいユーザーサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := os.Getenv("USER_DB_PATH")
	if dbPath == "" {
		dbPath = "/data/user.db"
	}

	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:    router,
		port:      port,
		queries:   userdb.New(sqlDB),
		db:        sqlDB,
		jwtSecret: jwtSecret,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// 登録とログインは公開し、それ以外はgatewayが付与する
// 識別ヘッダーを要求する。
func (s *Server) setupRoutes() {
	auth := s.router.Group("/api/auth")
	{
		// ユーザー登録
		auth.POST("/register", s.handleRegister())
		// ログイン（トークン発行）
		auth.POST("/login", s.handleLogin())
		// ログアウト（ステートレスなので確認応答のみ）
		auth.POST("/logout", s.handleLogout())

		// ログイン中ユーザーの情報取得
		me := auth.Group("")
		me.Use(middleware.GatewayAuth())
		me.GET("/me", s.handleMe())
	}

	users := s.router.Group("/api/user")
	users.Use(middleware.GatewayAuth())
	{
		// ユーザー情報の取得・更新・削除
		users.GET("/:username", s.handleGet())
		users.PUT("/:username", s.handleUpdate())
		users.DELETE("/:username", s.handleDelete())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "user"})
	})
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	// Username はユーザー名。
	Username string `json:"username" binding:"required,min=3,max=32"`
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password はパスワード。
	Password string `json:"password" binding:"required,min=8"`
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Username はユーザー名。
	Username string `json:"username" binding:"required"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// updateUserRequest はユーザー情報更新リクエストのJSON構造。
type updateUserRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password は新しいパスワード。空の場合は変更しない。
	Password string `json:"password" binding:"omitempty,min=8"`
}

// userResponse はユーザー情報のJSONレスポンス構造。
// パスワードハッシュは含めない。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID int64 `json:"id"`
	// Username はユーザー名。
	Username string `json:"username"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Role は権限。
	Role string `json:"role"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

// toUserResponse はDB行をJSONレスポンスに変換する。
func toUserResponse(u userdb.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: u.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// handleRegister はユーザー登録を処理するハンドラを返す。
// パスワードはbcryptでハッシュ化して保存する。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		// ユーザー名の重複確認
		if _, err := s.queries.GetUserByUsername(c.Request.Context(), req.Username); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "このユーザー名は既に使用されています"})
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの確認に失敗しました"})
			log.Printf("ユーザー確認エラー: %v", err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "パスワードの処理に失敗しました"})
			log.Printf("パスワードハッシュ化エラー: %v", err)
			return
		}

		created, err := s.queries.CreateUser(c.Request.Context(), userdb.CreateUserParams{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: string(hash),
			Role:         "USER",
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの登録に失敗しました"})
			log.Printf("ユーザー登録エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toUserResponse(created))
	}
}

// handleLogin はログインを処理するハンドラを返す。
// 認証に成功するとJWTトークンを発行する。ユーザーの有無と
// パスワード不一致は同じ応答にして、ユーザー名の探索を防ぐ。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		u, err := s.queries.GetUserByUsername(c.Request.Context(), req.Username)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名またはパスワードが正しくありません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名またはパスワードが正しくありません"})
			return
		}

		tokenStr, err := token.Generate(s.jwtSecret, u.Username, []string{u.Role}, tokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":    tokenStr,
			"username": u.Username,
			"role":     u.Role,
		})
	}
}

// handleLogout はログアウトを処理するハンドラを返す。
// トークンはステートレスなのでサーバー側の状態は持たず、
// クライアントにトークンの破棄を促す確認応答を返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ログアウトしました"})
	}
}

// handleMe はログイン中ユーザーの情報取得を処理するハンドラを返す。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := middleware.GetUserID(c)

		u, err := s.queries.GetUserByUsername(c.Request.Context(), username)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toUserResponse(u))
	}
}

// requireSelfOrAdmin はリクエスト元が対象ユーザー本人かADMINであることを確認する。
func requireSelfOrAdmin(c *gin.Context, target string) bool {
	if middleware.GetUserID(c) == target || middleware.HasRole(c, "ADMIN") {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "このユーザーへのアクセス権がありません"})
	return false
}

// handleGet はユーザー情報取得を処理するハンドラを返す。
// 本人またはADMINのみ取得できる。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Param("username")
		if !requireSelfOrAdmin(c, target) {
			return
		}

		u, err := s.queries.GetUserByUsername(c.Request.Context(), target)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toUserResponse(u))
	}
}

// handleUpdate はユーザー情報更新を処理するハンドラを返す。
// 本人またはADMINのみ更新できる。パスワードは指定されたときだけ変更する。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Param("username")
		if !requireSelfOrAdmin(c, target) {
			return
		}

		u, err := s.queries.GetUserByUsername(c.Request.Context(), target)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		var req updateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		passwordHash := u.PasswordHash
		if req.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "パスワードの処理に失敗しました"})
				log.Printf("パスワードハッシュ化エラー: %v", err)
				return
			}
			passwordHash = string(hash)
		}

		updated, err := s.queries.UpdateUser(c.Request.Context(), userdb.UpdateUserParams{
			Email:        req.Email,
			PasswordHash: passwordHash,
			Username:     target,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの更新に失敗しました"})
			log.Printf("ユーザー更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toUserResponse(updated))
	}
}

// handleDelete はユーザー削除を処理するハンドラを返す。
// 本人またはADMINのみ削除できる。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Param("username")
		if !requireSelfOrAdmin(c, target) {
			return
		}

		if _, err := s.queries.GetUserByUsername(c.Request.Context(), target); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		if err := s.queries.DeleteUser(c.Request.Context(), target); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの削除に失敗しました"})
			log.Printf("ユーザー削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "ユーザーを削除しました"})
	}
}
