package model

import "errors"

var (
	// ErrCityNotFound ジオコーディングで都市が見つからなかった（リトライ不可・即時中断）
	ErrCityNotFound = errors.New("指定された都市が見つかりません")

	// ErrMissingAPIKey APIキーが環境変数に設定されていない（起動時の致命的エラー）
	ErrMissingAPIKey = errors.New("GOOGLE_PLACES_API_KEY環境変数が設定されていません")

	// ErrInvalidCSVRecord CSVレコードの列数が不足している
	ErrInvalidCSVRecord = errors.New("CSVレコードの形式が不正です")
)
