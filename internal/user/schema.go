package user

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。db/schema.sql と同期すること。
const schema = `
CREATE TABLE IF NOT EXISTS users (
    -- ユーザーの一意識別子
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    -- ユーザー名（ログインIDを兼ねる）
    username TEXT NOT NULL UNIQUE,
    -- メールアドレス
    email TEXT NOT NULL,
    -- bcryptでハッシュ化したパスワード
    password_hash TEXT NOT NULL,
    -- 権限（USER / ADMIN）
    role TEXT NOT NULL DEFAULT 'USER',
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    -- 更新日時
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
