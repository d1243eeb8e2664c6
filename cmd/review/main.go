// レビューサービスのエントリポイント。
// レビューのCRUDと評価戦略に基づく平均評価の算出を担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/bookverse/internal/review"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	server, err := review.NewServer(port)
	if err != nil {
		log.Fatalf("レビューサーバーの初期化に失敗: %v", err)
	}

	log.Printf("レビューサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("レビューサービスの起動に失敗: %v", err)
	}
}
