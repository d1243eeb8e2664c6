// Package token はJWTトークンの発行と検証を提供する。
//
// userサービスがログイン時にトークンを発行し、gatewayサービスが
// リクエストごとにトークンを検証する。検証は署名と有効期限のみを
// 対象とするステートレスな処理であり、トークンの保存や失効管理は
// 行わない。
package token
