package book

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	bookdb "github.com/nao1215/bookverse/internal/book/db"
	"github.com/nao1215/bookverse/pkg/httpclient"
	"github.com/nao1215/bookverse/pkg/migration"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestServer はテスト用の書籍サーバーをインメモリSQLiteで構築する。
// レビューサービスのモックURLを指定できる。
func setupTestServer(t *testing.T, reviewURL string) (*Server, *gin.Engine) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if err := migration.Run(sqlDB, migrationsFS, "migrations"); err != nil {
		t.Fatalf("マイグレーションの適用に失敗: %v", err)
	}

	router := gin.New()
	s := &Server{
		router:       router,
		port:         "0",
		queries:      bookdb.New(sqlDB),
		db:           sqlDB,
		reviewClient: httpclient.New(reviewURL),
	}
	s.setupRoutes()

	return s, router
}

// createTestBook はテスト用に書籍をDBに直接挿入するヘルパー関数。
func createTestBook(t *testing.T, s *Server, title, author, genre, publishedDate string) bookdb.Book {
	t.Helper()
	date, err := time.Parse(publishedDateFormat, publishedDate)
	if err != nil {
		t.Fatalf("出版日のパースに失敗: %v", err)
	}
	b, err := s.queries.CreateBook(t.Context(), bookdb.CreateBookParams{
		Title:         title,
		Author:        author,
		Genre:         genre,
		PublishedDate: date,
	})
	if err != nil {
		t.Fatalf("テスト用書籍の作成に失敗: %v", err)
	}
	return b
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestBookCreate は書籍登録APIを検証する。
func TestBookCreate(t *testing.T) {
	_, router := setupTestServer(t, "http://review.invalid")

	t.Run("正常に書籍を登録できること", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/book", "alice", map[string]any{
			"title":          "The Go Programming Language",
			"author":         "Alan A. A. Donovan",
			"genre":          "Programming",
			"published_date": "2015-10-26",
		})

		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusCreated, w.Body.String())
		}

		var resp bookResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.ID == 0 {
			t.Error("IDが採番されていない")
		}
		if resp.Title != "The Go Programming Language" {
			t.Errorf("Title = %q, want %q", resp.Title, "The Go Programming Language")
		}
		if resp.PublishedDate != "2015-10-26" {
			t.Errorf("PublishedDate = %q, want %q", resp.PublishedDate, "2015-10-26")
		}
	})

	t.Run("識別ヘッダーなしでは401になること", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/book", "", map[string]any{
			"title":          "t",
			"author":         "a",
			"published_date": "2020-01-01",
		})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("タイトルなしで400になること", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/book", "alice", map[string]any{
			"author":         "a",
			"published_date": "2020-01-01",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("不正な日付形式で400になること", func(t *testing.T) {
		w := doRequest(router, http.MethodPost, "/book", "alice", map[string]any{
			"title":          "t",
			"author":         "a",
			"published_date": "26/10/2015",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestBookGetByID は書籍詳細取得APIを検証する。
func TestBookGetByID(t *testing.T) {
	s, router := setupTestServer(t, "http://review.invalid")
	created := createTestBook(t, s, "Clean Code", "Robert C. Martin", "Programming", "2008-08-01")

	t.Run("正常に書籍を取得できること", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, fmt.Sprintf("/book/%d", created.ID), "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		var resp bookResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Author != "Robert C. Martin" {
			t.Errorf("Author = %q, want %q", resp.Author, "Robert C. Martin")
		}
	})

	t.Run("存在しない書籍で404になること", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/book/99999", "", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("数値でないIDで400になること", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/book/abc", "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestBookSearch は書籍検索APIを検証する。
func TestBookSearch(t *testing.T) {
	s, router := setupTestServer(t, "http://review.invalid")
	createTestBook(t, s, "The Go Programming Language", "Alan A. A. Donovan", "Programming", "2015-10-26")
	createTestBook(t, s, "Learning Go", "Jon Bodner", "Programming", "2021-03-02")
	createTestBook(t, s, "Kafka on the Shore", "Haruki Murakami", "Fiction", "2002-09-12")

	// 検索レスポンスの構造
	type searchResponse struct {
		Books []bookResponse `json:"books"`
		Page  int            `json:"page"`
		Size  int            `json:"size"`
		Total int64          `json:"total"`
	}

	search := func(t *testing.T, path string) searchResponse {
		t.Helper()
		w := doRequest(router, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
		}
		var resp searchResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		return resp
	}

	t.Run("タイトルの部分一致で検索できること", func(t *testing.T) {
		resp := search(t, "/books/search?query=Go")
		if resp.Total != 2 {
			t.Errorf("Total = %d, want 2", resp.Total)
		}
	})

	t.Run("著者で絞り込めること", func(t *testing.T) {
		resp := search(t, "/books/search?author=Murakami")
		if resp.Total != 1 || len(resp.Books) != 1 {
			t.Fatalf("結果 = %+v, want Murakamiの1件", resp)
		}
		if resp.Books[0].Title != "Kafka on the Shore" {
			t.Errorf("Title = %q, want %q", resp.Books[0].Title, "Kafka on the Shore")
		}
	})

	t.Run("ジャンルは完全一致で絞り込まれること", func(t *testing.T) {
		resp := search(t, "/books/search?genre=Fiction")
		if resp.Total != 1 {
			t.Errorf("Total = %d, want 1", resp.Total)
		}
		if got := search(t, "/books/search?genre=Fict"); got.Total != 0 {
			t.Errorf("部分一致で件数 = %d, want 0", got.Total)
		}
	})

	t.Run("ページサイズで結果が分割されること", func(t *testing.T) {
		first := search(t, "/books/search?size=2&page=0")
		if len(first.Books) != 2 || first.Total != 3 {
			t.Fatalf("1ページ目 = %+v, want 2件(total 3)", first)
		}
		second := search(t, "/books/search?size=2&page=1")
		if len(second.Books) != 1 {
			t.Errorf("2ページ目 = %d件, want 1件", len(second.Books))
		}
	})

	t.Run("不正なページ番号で400になること", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/books/search?page=-1", "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestBookUpdateDelete は書籍の更新・削除APIを検証する。
func TestBookUpdateDelete(t *testing.T) {
	s, router := setupTestServer(t, "http://review.invalid")
	created := createTestBook(t, s, "Old Title", "Old Author", "Programming", "2010-01-01")

	t.Run("正常に書籍を更新できること", func(t *testing.T) {
		w := doRequest(router, http.MethodPut, fmt.Sprintf("/book/%d", created.ID), "alice", map[string]any{
			"title":          "New Title",
			"author":         "New Author",
			"genre":          "Programming",
			"published_date": "2011-02-02",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
		}

		var resp bookResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Title != "New Title" || resp.PublishedDate != "2011-02-02" {
			t.Errorf("更新結果 = %+v, want New Title/2011-02-02", resp)
		}
	})

	t.Run("存在しない書籍の更新で404になること", func(t *testing.T) {
		w := doRequest(router, http.MethodPut, "/book/99999", "alice", map[string]any{
			"title":          "t",
			"author":         "a",
			"published_date": "2020-01-01",
		})
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("正常に書籍を削除できること", func(t *testing.T) {
		w := doRequest(router, http.MethodDelete, fmt.Sprintf("/book/%d", created.ID), "alice", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		// 削除後の取得は404になる
		w = doRequest(router, http.MethodGet, fmt.Sprintf("/book/%d", created.ID), "", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("削除後の取得 = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("存在しない書籍の削除で404になること", func(t *testing.T) {
		w := doRequest(router, http.MethodDelete, "/book/99999", "alice", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestBookDetails はレビューと評価を合成した書籍詳細APIを検証する。
func TestBookDetails(t *testing.T) {
	t.Run("レビューと評価が合成されること", func(t *testing.T) {
		reviewSvc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch {
			case r.URL.Path == "/api/review/book/1/average-rating":
				fmt.Fprint(w, `{"book_id":1,"strategy":"averageRatingStrategy","average_rating":4.5,"review_count":2}`)
			case r.URL.Path == "/api/review/book/1":
				fmt.Fprint(w, `[{"id":1,"book_id":1,"reviewer":"alice","review_text":"great","rating":5},{"id":2,"book_id":1,"reviewer":"bob","review_text":"good","rating":4}]`)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		t.Cleanup(reviewSvc.Close)

		s, router := setupTestServer(t, reviewSvc.URL)
		createTestBook(t, s, "Clean Architecture", "Robert C. Martin", "Programming", "2017-09-20")

		w := doRequest(router, http.MethodGet, "/api/book/1/details", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
		}

		var resp struct {
			Book          bookResponse    `json:"book"`
			Reviews       []reviewSummary `json:"reviews"`
			AverageRating float64         `json:"average_rating"`
			ReviewCount   int             `json:"review_count"`
			Strategy      string          `json:"strategy"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Book.Title != "Clean Architecture" {
			t.Errorf("Book.Title = %q, want %q", resp.Book.Title, "Clean Architecture")
		}
		if len(resp.Reviews) != 2 {
			t.Errorf("レビュー件数 = %d, want 2", len(resp.Reviews))
		}
		if resp.AverageRating != 4.5 {
			t.Errorf("AverageRating = %v, want 4.5", resp.AverageRating)
		}
		if resp.Strategy != "averageRatingStrategy" {
			t.Errorf("Strategy = %q, want %q", resp.Strategy, "averageRatingStrategy")
		}
	})

	t.Run("レビューサービス停止時も書籍情報だけは返ること", func(t *testing.T) {
		dead := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		deadURL := dead.URL
		dead.Close()

		s, router := setupTestServer(t, deadURL)
		createTestBook(t, s, "Resilient Book", "Author", "Programming", "2020-01-01")

		w := doRequest(router, http.MethodGet, "/api/book/1/details", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
		}

		var resp struct {
			Book          bookResponse    `json:"book"`
			Reviews       []reviewSummary `json:"reviews"`
			AverageRating float64         `json:"average_rating"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Book.Title != "Resilient Book" {
			t.Errorf("Book.Title = %q, want %q", resp.Book.Title, "Resilient Book")
		}
		if len(resp.Reviews) != 0 {
			t.Errorf("レビュー = %v, want 空リスト", resp.Reviews)
		}
		if resp.AverageRating != 0 {
			t.Errorf("AverageRating = %v, want 0", resp.AverageRating)
		}
	})

	t.Run("存在しない書籍の詳細で404になること", func(t *testing.T) {
		_, router := setupTestServer(t, "http://review.invalid")
		w := doRequest(router, http.MethodGet, "/api/book/42/details", "", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestBookList は書籍一覧APIを検証する。
func TestBookList(t *testing.T) {
	s, router := setupTestServer(t, "http://review.invalid")

	t.Run("書籍がない場合は空リストが返ること", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/books", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var resp []bookResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if len(resp) != 0 {
			t.Errorf("件数 = %d, want 0", len(resp))
		}
	})

	t.Run("登録済みの書籍が一覧で返ること", func(t *testing.T) {
		createTestBook(t, s, "Book A", "Author A", "Programming", "2020-01-01")
		createTestBook(t, s, "Book B", "Author B", "Fiction", "2021-01-01")

		w := doRequest(router, http.MethodGet, "/books", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var resp []bookResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if len(resp) != 2 {
			t.Errorf("件数 = %d, want 2", len(resp))
		}
	})
}
