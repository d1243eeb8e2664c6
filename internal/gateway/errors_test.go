package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

// TestTranslate はErrorTranslatorの分類とステータス対応を検証する。
func TestTranslate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{
			name:        "MissingCredentialが401になること",
			err:         &AuthError{Reason: RejectMissingCredential},
			wantStatus:  http.StatusUnauthorized,
			wantError:   "Unauthorized",
			wantMessage: "Missing Authorization Header",
		},
		{
			name:        "MalformedCredentialが401になること",
			err:         &AuthError{Reason: RejectMalformedCredential},
			wantStatus:  http.StatusUnauthorized,
			wantError:   "Unauthorized",
			wantMessage: "Missing or Malformed Authorization Header",
		},
		{
			name:        "InvalidCredentialが401になること",
			err:         &AuthError{Reason: RejectInvalidCredential},
			wantStatus:  http.StatusUnauthorized,
			wantError:   "Unauthorized",
			wantMessage: "Invalid Authorization Token",
		},
		{
			name:        "ルート未解決が503になること",
			err:         fmt.Errorf("パス /unknown: %w", ErrRouteNotFound),
			wantStatus:  http.StatusServiceUnavailable,
			wantError:   "Service Unavailable",
			wantMessage: connectivityMessage,
		},
		{
			name:        "インスタンスなしが503になること",
			err:         fmt.Errorf("サービス book-service: %w", ErrNoInstance),
			wantStatus:  http.StatusServiceUnavailable,
			wantError:   "Service Unavailable",
			wantMessage: connectivityMessage,
		},
		{
			name:        "未分類のエラーも503になること",
			err:         errors.New("内部の予期しない失敗: secret detail"),
			wantStatus:  http.StatusServiceUnavailable,
			wantError:   "Service Unavailable",
			wantMessage: connectivityMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			envelope := Translate(tt.err, "/api/books")
			if envelope.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", envelope.Status, tt.wantStatus)
			}
			if envelope.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", envelope.Error, tt.wantError)
			}
			if envelope.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", envelope.Message, tt.wantMessage)
			}
			if envelope.Path != "/api/books" {
				t.Errorf("Path = %q, want %q", envelope.Path, "/api/books")
			}
			if envelope.Timestamp.IsZero() {
				t.Error("Timestampが設定されていない")
			}
		})
	}

	t.Run("元のエラー文言がメッセージに漏れないこと", func(t *testing.T) {
		t.Parallel()

		envelope := Translate(errors.New("connection refused to 10.0.0.1:8081"), "/api/books")
		if strings.Contains(envelope.Message, "10.0.0.1") {
			t.Errorf("内部情報がメッセージに漏れている: %q", envelope.Message)
		}
	})

	t.Run("ラップされたAuthErrorも分類されること", func(t *testing.T) {
		t.Parallel()

		wrapped := fmt.Errorf("パイプライン失敗: %w", &AuthError{Reason: RejectMissingCredential})
		envelope := Translate(wrapped, "/x")
		if envelope.Status != http.StatusUnauthorized {
			t.Errorf("Status = %d, want %d", envelope.Status, http.StatusUnauthorized)
		}
	})
}

// TestEnvelopeJSON は統一エラー応答のJSON形式を検証する。
func TestEnvelopeJSON(t *testing.T) {
	t.Parallel()

	envelope := Translate(&AuthError{Reason: RejectMissingCredential}, "/api/books")
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("Marshal()でエラーが発生: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal()でエラーが発生: %v", err)
	}

	for _, key := range []string{"timestamp", "status", "error", "message", "path"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("JSONにフィールド %q がない", key)
		}
	}

	// timestampがISO-8601としてパースできること
	ts, ok := fields["timestamp"].(string)
	if !ok {
		t.Fatalf("timestampが文字列でない: %v", fields["timestamp"])
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestampがISO-8601形式でない: %q", ts)
	}
}
