// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として
// 機能する。公開エンドポイント表の照合、JWTトークンの検証、識別ヘッダーの
// 付与、論理サービス名から稼働インスタンスへの解決、そしてあらゆる失敗の
// 統一エラー応答への変換を、リクエストごとに一直線のパイプラインとして行う。
package gateway
