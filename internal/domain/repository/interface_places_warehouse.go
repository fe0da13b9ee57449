package repository

import (
	"context"

	"GeoDine-Crawler/internal/domain/model"
)

// PlacesWarehouseRepository 収集済みCSVをデータウェアハウスへ取り込む境界
type PlacesWarehouseRepository interface {
	// EnsureSchema 取り込み先テーブルを作成する（存在すれば何もしない）
	EnsureSchema(ctx context.Context) error

	// BulkInsert 店舗を一括登録する。登録済みのplace_idはスキップし、
	// 実際に挿入された件数を返す
	BulkInsert(ctx context.Context, city string, places []*model.Place) (int, error)
}
