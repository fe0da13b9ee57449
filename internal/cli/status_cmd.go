package cli

import (
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"GeoDine-Crawler/internal/config"
	repoImpl "GeoDine-Crawler/internal/repository"
)

// StatusCmd チェックポイントから実行の進捗を表示するコマンド
// ライブ状態には一切触れず、スナップショットをデコードするだけ
func StatusCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "status [city]",
		Short: "中断中の検索の進捗を表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			city := args[0]

			logger := newLogger(false)
			tag := date
			if tag == "" {
				tag = dateTag()
			}

			checkpoint := repoImpl.NewFileCheckpointRepository(
				filepath.Join(config.DataDir(), "checkpoints"), city, tag, logger)

			state, err := checkpoint.Load()
			if err != nil {
				return err
			}
			if state == nil {
				color.Yellow("⚠️  %s (%s) のチェックポイントは見つかりませんでした", city, tag)
				return nil
			}

			processed := 0
			for _, t := range state.InitialTiles {
				if state.IsProcessed(t) {
					processed++
				}
			}

			color.Cyan("📋 %s の検索進捗 (%s)", city, tag)
			color.White("   初期タイル:       %d / %d 処理済み", processed, len(state.InitialTiles))
			color.White("   高密度スタック:   %d 枚", len(state.HighDensityStack))
			color.White("   ディープダイブ:   %d 回", state.DeepCount)
			color.White("   ユニーク店舗数:   %d 件", state.UniquePlaceCount())
			if state.IsInitialScanComplete() {
				color.Green("   フェーズ1は完了済み。再開するとフェーズ2から始まります")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "実行日タグ (YYYYMMDD、省略時は今日)")
	return cmd
}
