package repository

import (
	"context"

	"github.com/paulmach/orb"

	"GeoDine-Crawler/internal/domain/model"
)

// PlacesProvider 外部の地図APIとの境界
type PlacesProvider interface {
	// Geocode 都市名から中心座標とビューポートを取得する
	// 都市が見つからない場合はmodel.ErrCityNotFoundを返す
	Geocode(ctx context.Context, city string) (model.LatLng, orb.Bound, error)

	// SearchNearby 中心座標と半径（メートル）で周辺の店舗を検索する
	// ページネーションを内部で追従し、(店舗一覧, APIが返した総件数, 取得ページ数)を返す
	SearchNearby(ctx context.Context, lat, lng, radiusMeters float64) ([]model.Place, int, int, error)
}
