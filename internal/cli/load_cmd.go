package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"GeoDine-Crawler/internal/infrastructure/database"
	repoImpl "GeoDine-Crawler/internal/repository"
)

// LoadCmd 収集済みCSVをデータウェアハウスへ取り込むコマンド
// place_id単位で冪等なので、同じファイルを何度取り込んでも安全
func LoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [city] [csv-file]",
		Short: "収集済みCSVをウェアハウス(Supabase Postgres)へ取り込む",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			city := args[0]
			csvPath := args[1]
			logger := newLogger(false)

			places, err := repoImpl.ReadPlacesCSV(csvPath, logger)
			if err != nil {
				return fmt.Errorf("CSVの読み込みに失敗: %w", err)
			}
			color.Cyan("📥 %s から %d 件を読み込みました", csvPath, len(places))

			client, err := database.NewPostgreSQLClientWithRetry(3, 2*time.Second)
			if err != nil {
				return err
			}
			defer client.Close()

			warehouse := repoImpl.NewPostgresPlacesRepository(client)

			ctx := context.Background()
			if err := warehouse.EnsureSchema(ctx); err != nil {
				return err
			}

			inserted, err := warehouse.BulkInsert(ctx, city, places)
			if err != nil {
				return fmt.Errorf("ウェアハウスへの取り込みに失敗: %w", err)
			}

			color.Green("✅ 取り込み完了: 新規 %d 件 / スキップ %d 件", inserted, len(places)-inserted)
			return nil
		},
	}

	return cmd
}
