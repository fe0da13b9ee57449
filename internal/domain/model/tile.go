package model

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// 緯度1度あたりのメートル数（赤道基準の近似値）
const metersPerDegreeLat = 111320.0

// Tile 検索対象エリアを表す正方形タイル
// Size は1辺の長さ（度単位）で、常に正であること
type Tile struct {
	CenterLat float64 `json:"center_lat"`
	CenterLng float64 `json:"center_lng"`
	Size      float64 `json:"size"`
}

// NewTile 中心座標とサイズからタイルを作成
func NewTile(lat, lng, size float64) Tile {
	return Tile{CenterLat: lat, CenterLng: lng, Size: size}
}

// IsValid タイルが有効かどうかをチェック
func (t Tile) IsValid() bool {
	return t.Size > 0
}

// Key タイルの幾何学的な識別子を返す
// チェックポイントの処理済み判定に使うため、丸め桁数は固定
func (t Tile) Key() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f", t.CenterLat, t.CenterLng, t.Size)
}

// Subdivide タイルを4つの象限（SW, SE, NW, NE）に分割する
// 4つの子タイルは親タイルの領域を隙間・重複なく分割する
func (t Tile) Subdivide() [4]Tile {
	newSize := t.Size / 2
	offset := newSize / 2

	return [4]Tile{
		NewTile(t.CenterLat-offset, t.CenterLng-offset, newSize), // SW
		NewTile(t.CenterLat-offset, t.CenterLng+offset, newSize), // SE
		NewTile(t.CenterLat+offset, t.CenterLng-offset, newSize), // NW
		NewTile(t.CenterLat+offset, t.CenterLng+offset, newSize), // NE
	}
}

// SearchRadius タイル全体を覆う検索半径（メートル）を計算する
// APIは中心＋半径の円形検索のため、正方形タイルの外接円半径を使う
// 度→メートル変換は緯度・経度のスケールを平均した近似
func (t Tile) SearchRadius() float64 {
	metersPerDegreeLng := metersPerDegreeLat * math.Cos(t.CenterLat*math.Pi/180)
	metersPerDegreeAvg := (metersPerDegreeLat + metersPerDegreeLng) / 2

	radiusDegrees := (t.Size / 2) * math.Sqrt2

	return radiusDegrees * metersPerDegreeAvg
}

// Bound タイルの境界ボックスをorb.Boundとして返す
func (t Tile) Bound() orb.Bound {
	half := t.Size / 2
	return orb.Bound{
		Min: orb.Point{t.CenterLng - half, t.CenterLat - half},
		Max: orb.Point{t.CenterLng + half, t.CenterLat + half},
	}
}

// Contains 指定座標がタイルの境界ボックス内にあるかどうか
func (t Tile) Contains(lat, lng float64) bool {
	return t.Bound().Contains(orb.Point{lng, lat})
}
