package test

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"GeoDine-Crawler/internal/domain/repository"
	"GeoDine-Crawler/internal/infrastructure/database"
	"GeoDine-Crawler/internal/infrastructure/maps"
	repoimpl "GeoDine-Crawler/internal/repository"
)

// setupTestEnvironment は統一されたテスト環境のセットアップを行う
func setupTestEnvironment() {
	if err := godotenv.Load("../.env"); err != nil {
		// CI環境等では.envが存在しない場合があるため警告のみ
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestWarehouse Supabase接続付きの倉庫リポジトリをセットアップする（リトライ付き）
// SUPABASE_URLが未設定ならnilを返し、呼び出し側でスキップする
func setupTestWarehouse() (repository.PlacesWarehouseRepository, func(), error) {
	setupTestEnvironment()
	if os.Getenv("SUPABASE_URL") == "" {
		return nil, func() {}, nil
	}

	// 接続テストでは短いリトライ間隔を使用
	postgresClient, err := database.NewPostgreSQLClientWithRetry(3, 1*time.Second)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		postgresClient.Close()
	}

	return repoimpl.NewPostgresPlacesRepository(postgresClient), cleanup, nil
}

// setupTestPlacesProvider 実APIに向けたプロバイダをセットアップする
// GOOGLE_PLACES_API_KEYが未設定ならnilを返し、呼び出し側でスキップする
func setupTestPlacesProvider() *maps.GooglePlacesProvider {
	setupTestEnvironment()
	apiKey := os.Getenv("GOOGLE_PLACES_API_KEY")
	if apiKey == "" {
		return nil
	}
	return maps.NewGooglePlacesProvider(apiKey, "restaurant", 3, 5, testLogger())
}
