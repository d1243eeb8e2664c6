package review

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。db/schema.sql と同期すること。
const schema = `
CREATE TABLE IF NOT EXISTS reviews (
    -- レビューの一意識別子
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    -- 対象書籍のID
    book_id INTEGER NOT NULL,
    -- レビュー投稿者のユーザーID
    reviewer TEXT NOT NULL,
    -- レビュー本文
    review_text TEXT NOT NULL,
    -- 評価（1〜5）
    rating INTEGER NOT NULL,
    -- 投稿日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    -- 更新日時
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- 書籍IDでの検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_reviews_book_id
    ON reviews(book_id);

-- 投稿者での検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_reviews_reviewer
    ON reviews(reviewer);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
