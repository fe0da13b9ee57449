package repository

import "GeoDine-Crawler/internal/domain/model"

// ResultsWriter 重複排除済みの店舗を出力アーティファクトへ書き出すバッファ付きライター
type ResultsWriter interface {
	// Add 店舗をバッファに追加する。容量に達したら自動でフラッシュする
	Add(place model.Place) error

	// Flush バッファの内容をすべて書き出す（実行完了時の最終フラッシュ用）
	Flush() error

	// Buffered 現在バッファ中の件数
	Buffered() int

	// Written これまでに書き出した件数
	Written() int
}
