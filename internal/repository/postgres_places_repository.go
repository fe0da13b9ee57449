package repository

import (
	"context"
	"fmt"
	"strings"

	"GeoDine-Crawler/internal/domain/model"
	"GeoDine-Crawler/internal/domain/repository"
	"GeoDine-Crawler/internal/infrastructure/database"
)

type PostgresPlacesRepository struct {
	client *database.PostgreSQLClient
}

func NewPostgresPlacesRepository(client *database.PostgreSQLClient) repository.PlacesWarehouseRepository {
	return &PostgresPlacesRepository{
		client: client,
	}
}

// EnsureSchema 取り込み先テーブルを作成する
func (r *PostgresPlacesRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS restaurants (
			place_id           TEXT PRIMARY KEY,
			city               TEXT NOT NULL,
			name               TEXT NOT NULL,
			vicinity           TEXT,
			latitude           DOUBLE PRECISION NOT NULL,
			longitude          DOUBLE PRECISION NOT NULL,
			rating             DOUBLE PRECISION,
			user_ratings_total INTEGER,
			types              TEXT,
			business_status    TEXT,
			collected_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	if _, err := r.client.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("restaurantsテーブルの作成に失敗: %w", err)
	}
	return nil
}

// BulkInsert 店舗を一括登録する
// place_idが登録済みの行はON CONFLICTでスキップするため、
// 同じCSVを何度取り込んでも冪等になる
func (r *PostgresPlacesRepository) BulkInsert(ctx context.Context, city string, places []*model.Place) (int, error) {
	if len(places) == 0 {
		return 0, nil
	}

	tx, err := r.client.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO restaurants (
			place_id, city, name, vicinity, latitude, longitude,
			rating, user_ratings_total, types, business_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (place_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("INSERT文の準備に失敗: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range places {
		if p == nil || p.PlaceID == "" {
			continue
		}
		result, err := stmt.ExecContext(ctx,
			p.PlaceID, city, p.Name, p.Vicinity, p.Lat, p.Lng,
			p.Rating, p.UserRatingsTotal, strings.Join(p.Types, "|"), p.BusinessStatus,
		)
		if err != nil {
			return 0, fmt.Errorf("店舗の登録に失敗 (place_id=%s): %w", p.PlaceID, err)
		}
		if rows, err := result.RowsAffected(); err == nil {
			inserted += int(rows)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}

	return inserted, nil
}
