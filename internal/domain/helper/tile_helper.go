package helper

import (
	"github.com/paulmach/orb"

	"GeoDine-Crawler/internal/domain/model"
)

// ViewportPadding 境界上の店舗を取りこぼさないためのビューポート余白（度）
const ViewportPadding = 0.05

// GenerateInitialTiles 都市のビューポートを覆う初期タイルのグリッドを生成する
// ビューポートは各辺ViewportPadding分だけ拡張し、行優先（南西→北東）の
// 決定的な順序でタイルを並べる。全タイルのサイズはinitialStepで均一
func GenerateInitialTiles(center model.LatLng, viewport orb.Bound, initialStep float64) []model.Tile {
	bound := viewport.Extend(orb.Point{center.Lng, center.Lat})
	bound = bound.Pad(ViewportPadding)

	latMin := bound.Min.Lat()
	latMax := bound.Max.Lat()
	lngMin := bound.Min.Lon()
	lngMax := bound.Max.Lon()

	var tiles []model.Tile
	for lat := latMin; lat <= latMax; lat += initialStep {
		for lng := lngMin; lng <= lngMax; lng += initialStep {
			tiles = append(tiles, model.NewTile(lat, lng, initialStep))
		}
	}

	return tiles
}
