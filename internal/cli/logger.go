package cli

import (
	"log/slog"
	"os"
	"time"
)

// newLogger 構造化ログ（JSON）をstderrへ出すロガーを作成する
// stdoutは進捗表示用に空けておく
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// dateTag 実行日タグ（出力ファイル・チェックポイント名の決定的な一部）
func dateTag() string {
	return time.Now().Format("20060102")
}
