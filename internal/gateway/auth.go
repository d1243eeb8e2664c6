package gateway

import (
	"strings"

	"github.com/nao1215/bookverse/pkg/token"
)

// OutcomeKind は認証ステージの終端状態の種類。
type OutcomeKind int

const (
	// OutcomePublic は公開エンドポイントへのリクエスト。識別ヘッダーは付与しない。
	OutcomePublic OutcomeKind = iota + 1
	// OutcomeAuthenticated はトークン検証に成功したリクエスト。
	OutcomeAuthenticated
	// OutcomeRejected は認証に失敗したリクエスト。Reasonに失敗種別を持つ。
	OutcomeRejected
)

// RejectReason は認証失敗の種別。ErrorTranslatorが文字列比較なしで
// ステータスとメッセージを選択できるよう、閉じた集合として定義する。
type RejectReason int

const (
	// RejectMissingCredential はAuthorizationヘッダーがないことを表す。
	RejectMissingCredential RejectReason = iota + 1
	// RejectMalformedCredential はヘッダーがBearer形式でないことを表す。
	RejectMalformedCredential
	// RejectInvalidCredential はトークンの署名不一致または期限切れを表す。
	RejectInvalidCredential
)

// Outcome は認証ステージの結果。リクエストごとにちょうど1つの変種が成立する。
// 例外の伝播ではなく値として返し、パイプラインの境界で分岐する。
type Outcome struct {
	// Kind は終端状態の種類。
	Kind OutcomeKind
	// Subject は認証済みユーザーの識別子。Authenticatedのときのみ有効。
	Subject string
	// Roles はトークンから取り出した権限の順序付きリスト。Authenticatedのときのみ有効。
	Roles []string
	// Reason は失敗種別。Rejectedのときのみ有効。
	Reason RejectReason
}

// bearerPrefix はAuthorizationヘッダーの要求プレフィックス。
// 大文字小文字を区別し、空白は1つだけ許す。
const bearerPrefix = "Bearer "

// AuthStage はリクエストごとの認証判断を行うステージ。
// CPUバウンドなメモリ内処理のみでブロックせず、状態を持たない。
type AuthStage struct {
	// policy は公開エンドポイント表。
	policy *Policy
	// validator はJWTトークンの検証器。
	validator *token.Validator
}

// NewAuthStage は公開エンドポイント表とトークン検証器からAuthStageを生成する。
func NewAuthStage(policy *Policy, validator *token.Validator) *AuthStage {
	return &AuthStage{policy: policy, validator: validator}
}

// Authenticate はリクエストの認証判断を行う。
// 判定は次の順で短絡する。
//  1. 公開エンドポイントならPublic
//  2. Authorizationヘッダーがなければ Rejected(MissingCredential)
//  3. "Bearer "で始まらなければ Rejected(MalformedCredential)
//  4. トークンが無効なら Rejected(InvalidCredential)
//  5. subjectとrolesを取り出して Authenticated
func (a *AuthStage) Authenticate(method, path, authHeader string) Outcome {
	if a.policy.IsPublic(method, path) {
		return Outcome{Kind: OutcomePublic}
	}
	if authHeader == "" {
		return Outcome{Kind: OutcomeRejected, Reason: RejectMissingCredential}
	}
	tokenString, found := strings.CutPrefix(authHeader, bearerPrefix)
	if !found {
		return Outcome{Kind: OutcomeRejected, Reason: RejectMalformedCredential}
	}
	if !a.validator.IsValid(tokenString) {
		return Outcome{Kind: OutcomeRejected, Reason: RejectInvalidCredential}
	}
	return Outcome{
		Kind:    OutcomeAuthenticated,
		Subject: a.validator.Subject(tokenString),
		Roles:   a.validator.Roles(tokenString),
	}
}
