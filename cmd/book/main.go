// 書籍サービスのエントリポイント。
// 書籍のCRUDと検索、レビューサービスと連携した書籍詳細の合成を担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/bookverse/internal/book"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server, err := book.NewServer(port)
	if err != nil {
		log.Fatalf("書籍サーバーの初期化に失敗: %v", err)
	}

	log.Printf("書籍サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("書籍サービスの起動に失敗: %v", err)
	}
}
