// Package user はユーザー認証サービスを提供する。
// ユーザー登録・ログインとJWTトークンの発行、ユーザー情報のCRUDを行う。
// トークンの検証はgatewayが行い、本サービスは発行側を担う。
package user
