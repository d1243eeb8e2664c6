// Package book は書籍カタログサービスを提供する。
// 書籍のCRUDと検索に加えて、レビューサービスから取得した
// レビューと評価を合成した書籍詳細ビューを返す。
package book
