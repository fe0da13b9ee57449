package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"GeoDine-Crawler/internal/cli"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:   "geodine",
		Short: "GeoDine - 都市の飲食店を網羅的に収集する適応検索クローラー",
		Long: `GeoDineは都市全域をタイルグリッドで覆い、Google Places APIの
ページネーション上限に当たったタイルを再帰的に分割することで、
少ないクエリ数で飲食店を網羅的に収集するクローラーです。`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.CrawlCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.LoadCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
