package config

import (
	"os"
	"strconv"

	"GeoDine-Crawler/internal/domain/model"
)

// SearchConfig 適応検索の環境変数駆動の設定
type SearchConfig struct {
	APIKey             string  // Google Places APIキー（必須）
	InitialStep        float64 // 初期グリッドのタイルサイズ（度）
	MinStep            float64 // 分割の最小タイルサイズ（度）
	LocationType       string  // 検索対象の施設タイプ
	MaxPages           int     // クエリあたりの最大ページ数（APIの制限）
	ResultsPerPage     int     // 1ページあたりの最大結果数（APIの制限）
	ChunkSize          int     // CSV書き出しのバッファ容量
	CheckpointInterval int     // チェックポイント保存の間隔（タイル/イテレーション数）
	MaxDeepDives       int     // フェーズ2の上限（0で無制限）
	RequestsPerSecond  float64 // 外向きAPIコールのペース制限
	DataDir            string  // 出力・チェックポイントの格納先
}

// Load 環境変数から設定を読み込む。APIキーの欠如は起動時の致命的エラー
func Load() (*SearchConfig, error) {
	apiKey := os.Getenv("GOOGLE_PLACES_API_KEY")
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}

	return &SearchConfig{
		APIKey:             apiKey,
		InitialStep:        envFloat("INITIAL_STEP", 0.01),
		MinStep:            envFloat("MIN_STEP", 0.0025),
		LocationType:       envString("LOCATION_TYPE", "restaurant"),
		MaxPages:           envInt("MAX_PAGES", 3),
		ResultsPerPage:     envInt("MAX_RESULTS_PER_PAGE", 20),
		ChunkSize:          envInt("CHUNK_SIZE", 500),
		CheckpointInterval: envInt("CHECKPOINT_INTERVAL", 5),
		MaxDeepDives:       envInt("MAX_DEEP_DIVES", 1000),
		RequestsPerSecond:  envFloat("REQUESTS_PER_SECOND", 10),
		DataDir:            envString("DATA_DIR", "data"),
	}, nil
}

// DataDir APIキーなしで参照できる格納先ディレクトリ（statusコマンド用）
func DataDir() string {
	return envString("DATA_DIR", "data")
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
