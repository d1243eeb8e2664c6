package book

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	bookdb "github.com/nao1215/bookverse/internal/book/db"
	"github.com/nao1215/bookverse/pkg/httpclient"
	"github.com/nao1215/bookverse/pkg/middleware"
	"github.com/nao1215/bookverse/pkg/migration"
)

//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// publishedDateFormat は出版日のJSON表現形式。
const publishedDateFormat = "2006-01-02"

// Server は書籍サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *bookdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// reviewClient はレビューサービスへのHTTPクライアント。
	reviewClient *httpclient.Client
}

// NewServer は新しい書籍サーバーを生成する。
// SQLiteデータベースの初期化とマイグレーションの適用を行う。
func NewServer(port string) (*Server, error) {
	dbPath := os.Getenv("BOOK_DB_PATH")
	if dbPath == "" {
		dbPath = "/data/book.db"
	}

	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := migration.Run(sqlDB, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("マイグレーションの適用に失敗: %w", err)
	}

	reviewURL := os.Getenv("REVIEW_SERVICE_URL")
	if reviewURL == "" {
		reviewURL = "http://localhost:8082"
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:       router,
		port:         port,
		queries:      bookdb.New(sqlDB),
		db:           sqlDB,
		reviewClient: httpclient.New(reviewURL),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// 参照系はgatewayの公開エンドポイントとして誰でも到達できる。
// 更新系はgatewayが認証済みリクエストに付与する識別ヘッダーを要求する。
func (s *Server) setupRoutes() {
	// 書籍の参照
	s.router.GET("/book/:id", s.handleGetByID())
	s.router.GET("/books", s.handleList())
	s.router.GET("/books/search", s.handleSearch())

	// レビューと評価を合成した書籍詳細
	s.router.GET("/api/book/:id/details", s.handleDetails())

	// 書籍の登録・更新・削除
	protected := s.router.Group("/")
	protected.Use(middleware.GatewayAuth())
	{
		protected.POST("/book", s.handleCreate())
		protected.PUT("/book/:id", s.handleUpdate())
		protected.DELETE("/book/:id", s.handleDelete())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "book"})
	})
}

// createBookRequest は書籍登録リクエストのJSON構造。
type createBookRequest struct {
	// Title はタイトル。
	Title string `json:"title" binding:"required"`
	// Author は著者名。
	Author string `json:"author" binding:"required"`
	// Genre はジャンル。
	Genre string `json:"genre"`
	// PublishedDate は出版日（YYYY-MM-DD形式）。
	PublishedDate string `json:"published_date" binding:"required"`
}

// bookResponse は書籍のJSONレスポンス構造。
type bookResponse struct {
	// ID は書籍の一意識別子。
	ID int64 `json:"id"`
	// Title はタイトル。
	Title string `json:"title"`
	// Author は著者名。
	Author string `json:"author"`
	// Genre はジャンル。
	Genre string `json:"genre"`
	// PublishedDate は出版日（YYYY-MM-DD形式）。
	PublishedDate string `json:"published_date"`
}

// reviewSummary はレビューサービスから取得するレビューのJSON構造。
type reviewSummary struct {
	// ID はレビューの一意識別子。
	ID int64 `json:"id"`
	// BookID は対象書籍のID。
	BookID int64 `json:"book_id"`
	// Reviewer はレビュー投稿者のユーザーID。
	Reviewer string `json:"reviewer"`
	// ReviewText はレビュー本文。
	ReviewText string `json:"review_text"`
	// Rating は評価（1〜5）。
	Rating int `json:"rating"`
	// CreatedAt は投稿日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

// ratingSummary はレビューサービスから取得する平均評価のJSON構造。
type ratingSummary struct {
	// BookID は対象書籍のID。
	BookID int64 `json:"book_id"`
	// Strategy は使用した評価戦略名。
	Strategy string `json:"strategy"`
	// AverageRating は平均評価。
	AverageRating float64 `json:"average_rating"`
	// ReviewCount はレビュー件数。
	ReviewCount int `json:"review_count"`
}

// toBookResponse はDB行をJSONレスポンスに変換する。
func toBookResponse(b bookdb.Book) bookResponse {
	return bookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Genre:         b.Genre,
		PublishedDate: b.PublishedDate.Format(publishedDateFormat),
	}
}

// parseBookID はパスパラメータから書籍IDを取り出す。
func parseBookID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "書籍IDが不正です"})
		return 0, false
	}
	return id, true
}

// handleCreate は書籍登録を処理するハンドラを返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createBookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		publishedDate, err := time.Parse(publishedDateFormat, req.PublishedDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "出版日はYYYY-MM-DD形式で指定してください"})
			return
		}

		created, err := s.queries.CreateBook(c.Request.Context(), bookdb.CreateBookParams{
			Title:         req.Title,
			Author:        req.Author,
			Genre:         req.Genre,
			PublishedDate: publishedDate,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "書籍の登録に失敗しました"})
			log.Printf("書籍登録エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toBookResponse(created))
	}
}

// handleGetByID は書籍詳細取得を処理するハンドラを返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseBookID(c)
		if !ok {
			return
		}

		b, err := s.queries.GetBookByID(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "書籍が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "書籍の取得に失敗しました"})
			log.Printf("書籍取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toBookResponse(b))
	}
}

// handleList は書籍一覧取得を処理するハンドラを返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		books, err := s.queries.ListBooks(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "書籍一覧の取得に失敗しました"})
			log.Printf("書籍一覧取得エラー: %v", err)
			return
		}

		responses := make([]bookResponse, 0, len(books))
		for _, b := range books {
			responses = append(responses, toBookResponse(b))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleSearch は書籍検索を処理するハンドラを返す。
// タイトル・著者の部分一致とジャンルの完全一致で絞り込み、
// ページ番号とページサイズで結果を分割する。
func (s *Server) handleSearch() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("query")
		author := c.Query("author")
		genre := c.Query("genre")

		page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
		if err != nil || page < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pageは0以上の整数で指定してください"})
			return
		}
		size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
		if err != nil || size < 1 || size > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sizeは1〜100の整数で指定してください"})
			return
		}

		ctx := c.Request.Context()
		total, err := s.queries.CountSearchBooks(ctx, bookdb.CountSearchBooksParams{
			Query:  query,
			Author: author,
			Genre:  genre,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "書籍の検索に失敗しました"})
			log.Printf("書籍件数取得エラー: %v", err)
			return
		}

		books, err := s.queries.SearchBooks(ctx, bookdb.SearchBooksParams{
			Query:  query,
			Author: author,
			Genre:  genre,
			Limit:  int64(size),
			Offset: int64(page * size),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "書籍の検索に失敗しました"})
			log.Printf("書籍検索エラー: %v", err)
			return
		}

		responses := make([]bookResponse, 0, len(books))
		for _, b := range books {
			responses = append(responses, toBookResponse(b))
		}

		c.JSON(http.StatusOK, gin.H{
			"books": responses,
			"page":  page,
			"size":  size,
			"total": total,
		})
	}
}

// handleUpdate は書籍更新を処理するハンドラを返す。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseBookID(c)
		if !ok {
			return
		}

		// 書籍の存在確認
		if _, err := s.queries.GetBookByID(c.Request.Context(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "書籍が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "書籍の取得に失敗しました"})
			log.Printf("書籍取得エラー: %v", err)
			return
		}

		var req createBookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		publishedDate, err := time.Parse(publishedDateFormat, req.PublishedDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "出版日はYYYY-MM-DD形式で指定してください"})
			return
		}

		updated, err := s.queries.UpdateBook(c.Request.Context(), bookdb.UpdateBookParams{
			Title:         req.Title,
			Author:        req.Author,
			Genre:         req.Genre,
			PublishedDate: publishedDate,
			ID:            id,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "書籍の更新に失敗しました"})
			log.Printf("書籍更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toBookResponse(updated))
	}
}

// handleDelete は書籍削除を処理するハンドラを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseBookID(c)
		if !ok {
			return
		}

		if _, err := s.queries.GetBookByID(c.Request.Context(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "書籍が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "書籍の取得に失敗しました"})
			log.Printf("書籍取得エラー: %v", err)
			return
		}

		if err := s.queries.DeleteBook(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "書籍の削除に失敗しました"})
			log.Printf("書籍削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "書籍を削除しました"})
	}
}

// handleDetails はレビューと評価を合成した書籍詳細を返すハンドラを返す。
// レビューサービスへの2つの問い合わせは並行して行い、どちらかが失敗しても
// 書籍情報だけは返す（レビューは空リスト、評価は0に縮退する）。
func (s *Server) handleDetails() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseBookID(c)
		if !ok {
			return
		}

		b, err := s.queries.GetBookByID(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "書籍が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "書籍の取得に失敗しました"})
			log.Printf("書籍取得エラー: %v", err)
			return
		}

		strategy := c.DefaultQuery("reviewStrategy", "averageRatingStrategy")
		ctx := c.Request.Context()

		reviews := make([]reviewSummary, 0)
		var rating ratingSummary
		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			var fetched []reviewSummary
			if err := s.reviewClient.GetJSON(ctx, fmt.Sprintf("/api/review/book/%d", id), &fetched); err != nil {
				log.Printf("レビュー取得に失敗（空リストに縮退）: book_id=%d error=%v", id, err)
				return
			}
			reviews = fetched
		}()

		go func() {
			defer wg.Done()
			path := fmt.Sprintf("/api/review/book/%d/average-rating?strategy=%s", id, url.QueryEscape(strategy))
			var fetched ratingSummary
			if err := s.reviewClient.GetJSON(ctx, path, &fetched); err != nil {
				log.Printf("平均評価取得に失敗（0に縮退）: book_id=%d error=%v", id, err)
				return
			}
			rating = fetched
		}()

		wg.Wait()

		c.JSON(http.StatusOK, gin.H{
			"book":           toBookResponse(b),
			"reviews":        reviews,
			"average_rating": rating.AverageRating,
			"review_count":   rating.ReviewCount,
			"strategy":       strategy,
		})
	}
}
