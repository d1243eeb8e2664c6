package review

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	reviewdb "github.com/nao1215/bookverse/internal/review/db"
	"github.com/nao1215/bookverse/pkg/httpclient"
	"github.com/nao1215/bookverse/pkg/middleware"
)

// maxReviewTextLength はレビュー本文の最大文字数。
const maxReviewTextLength = 500

// Server はレビューサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *reviewdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// bookClient は書籍サービスへのHTTPクライアント。
	bookClient *httpclient.Client
}

// NewServer は新しいレビューサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := os.Getenv("REVIEW_DB_PATH")
	if dbPath == "" {
		dbPath = "/data/review.db"
	}

	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	bookURL := os.Getenv("BOOK_SERVICE_URL")
	if bookURL == "" {
		bookURL = "http://localhost:8081"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:     router,
		port:       port,
		queries:    reviewdb.New(sqlDB),
		db:         sqlDB,
		bookClient: httpclient.New(bookURL),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// レビューの参照と評価の算出は公開し、投稿・更新・削除は
// gatewayが付与する識別ヘッダーを要求する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/review")
	{
		// 書籍ごとのレビュー一覧と平均評価
		api.GET("/book/:book_id", s.handleListByBook())
		api.GET("/book/:book_id/average-rating", s.handleAverageRating())
		// レビュー単体の取得
		api.GET("/:id", s.handleGetByID())

		protected := api.Group("")
		protected.Use(middleware.GatewayAuth())
		{
			// レビュー投稿
			protected.POST("", s.handleCreate())
			// レビュー更新
			protected.PUT("/:id", s.handleUpdate())
			// レビュー削除
			protected.DELETE("/:id", s.handleDelete())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "review"})
	})
}

// createReviewRequest はレビュー投稿リクエストのJSON構造。
type createReviewRequest struct {
	// BookID は対象書籍のID。
	BookID int64 `json:"book_id" binding:"required"`
	// ReviewText はレビュー本文。
	ReviewText string `json:"review_text" binding:"required"`
	// Rating は評価（1〜5）。
	Rating int64 `json:"rating" binding:"required"`
}

// updateReviewRequest はレビュー更新リクエストのJSON構造。
type updateReviewRequest struct {
	// ReviewText はレビュー本文。
	ReviewText string `json:"review_text" binding:"required"`
	// Rating は評価（1〜5）。
	Rating int64 `json:"rating" binding:"required"`
}

// reviewResponse はレビューのJSONレスポンス構造。
type reviewResponse struct {
	// ID はレビューの一意識別子。
	ID int64 `json:"id"`
	// BookID は対象書籍のID。
	BookID int64 `json:"book_id"`
	// Reviewer はレビュー投稿者のユーザーID。
	Reviewer string `json:"reviewer"`
	// ReviewText はレビュー本文。
	ReviewText string `json:"review_text"`
	// Rating は評価（1〜5）。
	Rating int64 `json:"rating"`
	// CreatedAt は投稿日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

// toReviewResponse はDB行をJSONレスポンスに変換する。
func toReviewResponse(r reviewdb.Review) reviewResponse {
	return reviewResponse{
		ID:         r.ID,
		BookID:     r.BookID,
		Reviewer:   r.Reviewer,
		ReviewText: r.ReviewText,
		Rating:     r.Rating,
		CreatedAt:  r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:  r.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// validateReviewContent はレビュー本文と評価の値域を検証する。
func validateReviewContent(c *gin.Context, reviewText string, rating int64) bool {
	if len([]rune(reviewText)) > maxReviewTextLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("レビュー本文は%d文字以内で入力してください", maxReviewTextLength)})
		return false
	}
	if rating < 1 || rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "評価は1〜5で指定してください"})
		return false
	}
	return true
}

// parseIDParam はパスパラメータから数値IDを取り出す。
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "IDが不正です"})
		return 0, false
	}
	return id, true
}

// handleCreate はレビュー投稿を処理するハンドラを返す。
// 対象の書籍が書籍サービスに存在することを確認してから登録する。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req createReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if !validateReviewContent(c, req.ReviewText, req.Rating) {
			return
		}

		// 書籍の存在確認
		ctx := httpclient.WithUserID(c.Request.Context(), userID)
		if err := s.bookClient.GetJSON(ctx, fmt.Sprintf("/book/%d", req.BookID), nil); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "対象の書籍が見つかりません"})
			log.Printf("書籍の存在確認に失敗: book_id=%d error=%v", req.BookID, err)
			return
		}

		created, err := s.queries.CreateReview(c.Request.Context(), reviewdb.CreateReviewParams{
			BookID:     req.BookID,
			Reviewer:   userID,
			ReviewText: req.ReviewText,
			Rating:     req.Rating,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レビューの投稿に失敗しました"})
			log.Printf("レビュー投稿エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toReviewResponse(created))
	}
}

// handleGetByID はレビュー単体の取得を処理するハンドラを返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		r, err := s.queries.GetReviewByID(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "レビューが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レビューの取得に失敗しました"})
			log.Printf("レビュー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toReviewResponse(r))
	}
}

// handleListByBook は書籍ごとのレビュー一覧取得を処理するハンドラを返す。
func (s *Server) handleListByBook() gin.HandlerFunc {
	return func(c *gin.Context) {
		bookID, ok := parseIDParam(c, "book_id")
		if !ok {
			return
		}

		reviews, err := s.queries.ListReviewsByBookID(c.Request.Context(), bookID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レビュー一覧の取得に失敗しました"})
			log.Printf("レビュー一覧取得エラー: %v", err)
			return
		}

		responses := make([]reviewResponse, 0, len(reviews))
		for _, r := range reviews {
			responses = append(responses, toReviewResponse(r))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleAverageRating は書籍の平均評価算出を処理するハンドラを返す。
// strategyクエリパラメータで評価戦略を切り替えられる。
func (s *Server) handleAverageRating() gin.HandlerFunc {
	return func(c *gin.Context) {
		bookID, ok := parseIDParam(c, "book_id")
		if !ok {
			return
		}

		strategyName := c.DefaultQuery("strategy", StrategyAverage)
		strategy, err := strategyFor(strategyName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		reviews, err := s.queries.ListReviewsByBookID(c.Request.Context(), bookID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レビュー一覧の取得に失敗しました"})
			log.Printf("レビュー一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"book_id":        bookID,
			"strategy":       strategyName,
			"average_rating": strategy(reviews, time.Now()),
			"review_count":   len(reviews),
		})
	}
}

// handleUpdate はレビュー更新を処理するハンドラを返す。
// 投稿者本人のレビューのみ更新できる。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		// レビューの存在確認と投稿者チェック
		r, err := s.queries.GetReviewByID(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "レビューが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レビューの取得に失敗しました"})
			log.Printf("レビュー取得エラー: %v", err)
			return
		}
		if r.Reviewer != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "このレビューへのアクセス権がありません"})
			return
		}

		var req updateReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if !validateReviewContent(c, req.ReviewText, req.Rating) {
			return
		}

		updated, err := s.queries.UpdateReview(c.Request.Context(), reviewdb.UpdateReviewParams{
			ReviewText: req.ReviewText,
			Rating:     req.Rating,
			ID:         id,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レビューの更新に失敗しました"})
			log.Printf("レビュー更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toReviewResponse(updated))
	}
}

// handleDelete はレビュー削除を処理するハンドラを返す。
// 投稿者本人のレビューのみ削除できる。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		r, err := s.queries.GetReviewByID(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "レビューが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レビューの取得に失敗しました"})
			log.Printf("レビュー取得エラー: %v", err)
			return
		}
		if r.Reviewer != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "このレビューへのアクセス権がありません"})
			return
		}

		if err := s.queries.DeleteReview(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レビューの削除に失敗しました"})
			log.Printf("レビュー削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "レビューを削除しました"})
	}
}
