package gateway

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/bookverse/pkg/middleware"
	"github.com/nao1215/bookverse/pkg/token"
)

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// auth はリクエストごとの認証判断を行うステージ。
	auth *AuthStage
	// svcRouter は論理サービス名から転送先を解決するルーター。
	svcRouter *Router
	// httpClient は下流サービスへの転送に使用するHTTPクライアント。
	httpClient *http.Client
}

// NewServer は新しいGatewayサーバーを生成する。
// 設定の読み込みとパターンのコンパイルはここで完了させ、
// 不正な設定はリクエスト時ではなく起動時に失敗させる。
func NewServer(port string) (*Server, error) {
	cfg, err := LoadConfig(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		return nil, fmt.Errorf("gateway設定の読み込みに失敗: %w", err)
	}

	policy, err := CompilePolicy(cfg.PublicEndpoints)
	if err != nil {
		return nil, fmt.Errorf("公開エンドポイント表の構築に失敗: %w", err)
	}

	svcRouter, err := NewRouter(cfg.routeTable(), NewRegistry(cfg.serviceInstances()))
	if err != nil {
		return nil, fmt.Errorf("ルート表の構築に失敗: %w", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:3000")

	s := &Server{
		port:      port,
		auth:      NewAuthStage(policy, token.NewValidator(jwtSecret)),
		svcRouter: svcRouter,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	router := gin.New()
	router.Use(s.recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{frontendURL}))
	s.setupRoutes(router)
	s.router = router

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// gateway自身のエンドポイントはヘルスチェックのみで、
// それ以外のすべてのリクエストはプロキシパイプラインに入る。
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})

	router.NoRoute(s.handleProxy())
}

// handleProxy はリクエストごとのパイプラインを実行するハンドラを返す。
// 認証判断→ルート解決→下流転送を順に行い、どの段階の失敗も
// Translateを通して統一エラー応答に変換する。
func (s *Server) handleProxy() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		outcome := s.auth.Authenticate(c.Request.Method, path, c.GetHeader("Authorization"))
		if outcome.Kind == OutcomeRejected {
			s.writeError(c, &AuthError{Reason: outcome.Reason})
			return
		}

		target, rewritten, err := s.svcRouter.Resolve(path)
		if err != nil {
			log.Printf("ルート解決に失敗: method=%s path=%s error=%v", c.Request.Method, path, err)
			s.writeError(c, err)
			return
		}

		s.doProxy(c, outcome, target, rewritten)
	}
}

// doProxy はリクエストを解決済みのインスタンスに転送する。
// 認証済みの場合のみ識別ヘッダーを付与し、Authorizationヘッダーは
// そのまま通す。下流との通信失敗は503の統一エラー応答になる。
func (s *Server) doProxy(c *gin.Context, outcome Outcome, target, rewritten string) {
	proxyURL := target + rewritten
	if c.Request.URL.RawQuery != "" {
		proxyURL += "?" + c.Request.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, proxyURL, c.Request.Body)
	if err != nil {
		s.writeError(c, err)
		return
	}

	// 元のリクエストヘッダーを転送する
	req.Header = c.Request.Header.Clone()

	// リクエスト相関用のIDを付与する
	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)

	if outcome.Kind == OutcomeAuthenticated {
		req.Header.Set("X-User-ID", outcome.Subject)
		req.Header.Set("X-User-Roles", strings.Join(outcome.Roles, ","))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("下流への転送に失敗: request_id=%s url=%s error=%v", requestID, proxyURL, err)
		s.writeError(c, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("下流レスポンスの読み取りに失敗: request_id=%s error=%v", requestID, err)
		s.writeError(c, err)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}

// writeError は失敗を統一エラー応答に変換してレスポンスを書く。
// レスポンスへ至る経路はここだけであり、失敗の二重報告はしない。
func (s *Server) writeError(c *gin.Context, err error) {
	envelope := Translate(err, c.Request.URL.Path)
	c.AbortWithStatusJSON(envelope.Status, envelope)
}

// recovery はパニックを統一エラー応答に変換するGinミドルウェアを返す。
// gatewayでは未分類の失敗も下流接続失敗と同じ503として応答するため、
// 共通のRecoveryミドルウェアではなくTranslateを通す。
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				s.writeError(c, fmt.Errorf("回復したパニック: %v", r))
			}
		}()
		c.Next()
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
