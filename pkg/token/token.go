package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims はJWTトークンのクレーム（ペイロード）を表す。
// subjectにユーザー名、rolesに権限のリストを保持する。
type Claims struct {
	jwt.RegisteredClaims
	// Roles はユーザーに付与された権限の順序付きリスト。
	Roles []string `json:"roles,omitempty"`
}

// Generate はユーザー情報からJWTトークンを生成する。
// userサービスがログイン成功後に呼び出す。
func Generate(secret, subject string, roles []string, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "bookverse-user",
		},
		Roles: roles,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Validator はJWTトークンの署名と有効期限を検証する。
// 状態を持たないため、複数goroutineから同時に使用できる。
type Validator struct {
	// secret はHMAC署名の検証に使用する秘密鍵。
	secret []byte
}

// NewValidator は指定された秘密鍵で検証するValidatorを生成する。
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// ExtractClaims はトークンを検証してクレームを取り出す。
// 構造不正・署名不一致・期限切れのいずれでもエラーを返す。
func (v *Validator) ExtractClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("トークンのパースに失敗: %w", err)
	}
	if !t.Valid {
		return nil, fmt.Errorf("トークンが無効")
	}
	return claims, nil
}

// IsValid はトークンが有効かどうかを返す。
// 署名が検証でき、かつ有効期限が現在時刻より後の場合のみtrue。
// パース中のいかなる失敗もfalseに変換し、エラーを伝播しない。
func (v *Validator) IsValid(tokenString string) bool {
	_, err := v.ExtractClaims(tokenString)
	return err == nil
}

// Subject はトークンからsubject（ユーザー名）を取り出す。
// 取り出せない場合は空文字列を返す。
func (v *Validator) Subject(tokenString string) string {
	claims, err := v.ExtractClaims(tokenString)
	if err != nil {
		return ""
	}
	return claims.Subject
}

// Roles はトークンからrolesクレームを順序を保って取り出す。
// 取り出せない場合は空リストを返し、エラーにはしない。
func (v *Validator) Roles(tokenString string) []string {
	claims, err := v.ExtractClaims(tokenString)
	if err != nil {
		return []string{}
	}
	if claims.Roles == nil {
		return []string{}
	}
	return claims.Roles
}
