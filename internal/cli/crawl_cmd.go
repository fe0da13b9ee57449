package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"GeoDine-Crawler/internal/config"
	"GeoDine-Crawler/internal/infrastructure/maps"
	repoImpl "GeoDine-Crawler/internal/repository"
	"GeoDine-Crawler/internal/usecase"
)

// CrawlCmd 都市の飲食店を適応検索で収集するコマンド
func CrawlCmd() *cobra.Command {
	var verbose bool
	var date string

	cmd := &cobra.Command{
		Use:   "crawl [city]",
		Short: "都市の飲食店を適応タイル検索で収集する",
		Long: `指定した都市のビューポートをタイルグリッドで覆い、
飽和したタイルを再帰的に分割しながら飲食店を網羅的に収集します。
中断してもチェックポイントから再開できます。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			city := args[0]

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := newLogger(verbose)
			tag := date
			if tag == "" {
				tag = dateTag()
			}

			provider := maps.NewGooglePlacesProvider(
				cfg.APIKey, cfg.LocationType, cfg.MaxPages, cfg.RequestsPerSecond, logger)
			checkpoint := repoImpl.NewFileCheckpointRepository(
				filepath.Join(cfg.DataDir, "checkpoints"), city, tag, logger)
			writer := repoImpl.NewCSVResultsWriter(
				cfg.DataDir, city, tag, cfg.ChunkSize, logger)

			search := usecase.NewAdaptiveSearchUseCase(city, cfg, provider, checkpoint, writer, logger)

			// クエリの合間のシグナルで安全に中断できる
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			color.Cyan("🔍 %s の適応検索を開始します...", city)

			if err := search.Run(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					color.Yellow("⚠️  中断されました。チェックポイント: %s", checkpoint.Path())
					color.Yellow("   同じコマンドを再実行すると続きから再開します")
					return nil
				}
				return fmt.Errorf("検索の実行に失敗: %w", err)
			}

			color.Green("✅ 検索完了: %d 件を書き出しました", writer.Written())
			color.Green("   出力ファイル: %s", writer.Path())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "デバッグログを出力する")
	cmd.Flags().StringVar(&date, "date", "", "実行日タグ (YYYYMMDD、省略時は今日)")
	return cmd
}
