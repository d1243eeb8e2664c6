package gateway

import (
	"errors"
	"net/http"
	"time"
)

// ErrRouteNotFound はパスに一致するルートがないことを表す。
// クライアントへは下流接続失敗と同じ503として応答する。
var ErrRouteNotFound = errors.New("パスに一致するルートがありません")

// ErrNoInstance は論理サービスに稼働インスタンスがないことを表す。
var ErrNoInstance = errors.New("稼働中のインスタンスがありません")

// AuthError は認証失敗を表す型付きエラー。
// AuthStageのRejected変種をパイプライン境界でエラー値に変換したもの。
type AuthError struct {
	// Reason は失敗種別。
	Reason RejectReason
}

// Error はエラーメッセージを返す。
func (e *AuthError) Error() string {
	switch e.Reason {
	case RejectMissingCredential:
		return "Authorizationヘッダーがありません"
	case RejectMalformedCredential:
		return "Authorizationヘッダーの形式が不正です"
	default:
		return "Authorizationトークンが無効です"
	}
}

// Envelope はこのパイプラインが返すエラー応答の統一形式。
// 常に5つのフィールドすべてを持ち、内部の例外情報は決して含めない。
type Envelope struct {
	// Timestamp は変換が行われた時刻（ISO-8601）。
	Timestamp time.Time `json:"timestamp"`
	// Status はHTTPステータスコード。
	Status int `json:"status"`
	// Error はステータスに対応する短いラベル。
	Error string `json:"error"`
	// Message はクライアント向けメッセージ。
	Message string `json:"message"`
	// Path は元のリクエストパス（書き換え前）。
	Path string `json:"path"`
}

// connectivityMessage は下流接続失敗時の固定メッセージ。
// 元の失敗原因はクライアントに決して開示しない。
const connectivityMessage = "Gateway could not connect to the downstream service. Please try again."

// Translate はパイプラインで発生したあらゆる失敗を統一エラー応答に変換する。
// 全ての失敗はレスポンスを書く前にちょうど1回ここを通る。
// 優先順位は認証失敗（401）、次いで下流接続失敗（503）。分類できない失敗も
// 下流接続失敗と同じ503として扱う（元システムの契約を維持する）。
func Translate(err error, path string) Envelope {
	now := time.Now()

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return Envelope{
			Timestamp: now,
			Status:    http.StatusUnauthorized,
			Error:     "Unauthorized",
			Message:   authMessage(authErr.Reason),
			Path:      path,
		}
	}

	// ルート未解決・インスタンスなし・接続拒否・タイムアウト・
	// その他の未分類の失敗はすべて下流接続失敗として503を返す。
	return Envelope{
		Timestamp: now,
		Status:    http.StatusServiceUnavailable,
		Error:     "Service Unavailable",
		Message:   connectivityMessage,
		Path:      path,
	}
}

// authMessage は認証失敗種別に対応する固定メッセージを返す。
func authMessage(reason RejectReason) string {
	switch reason {
	case RejectMissingCredential:
		return "Missing Authorization Header"
	case RejectMalformedCredential:
		return "Missing or Malformed Authorization Header"
	default:
		return "Invalid Authorization Token"
	}
}
