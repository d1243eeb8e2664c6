// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// gatewayが付与した識別ヘッダーの取り込み、パニックリカバリ、
// CORS設定など、全サービスで共通して使用するミドルウェアを含む。
// JWTトークンの検証はgatewayサービスのみが行い、内部サービスは
// gatewayを信頼してヘッダーから識別情報を受け取る。
package middleware
