package model

// SearchState 1都市の検索実行の進捗をすべて保持する再開可能な状態
// 実行中はオーケストレーターのみが所有し、チェックポイントは
// スナップショットのシリアライズのみを行う
type SearchState struct {
	City             string          // 検索対象の都市名
	InitialTiles     []Tile          // フェーズ1の全タイル（生成後は不変）
	HighDensityStack []Tile          // フェーズ2で分割待ちの高密度タイル（LIFO）
	Processed        map[string]bool // 検索済みタイルキーの集合
	SeenPlaceIDs     map[string]bool // 出力済みplace_idの集合（単調増加）
	DeepCount        int             // フェーズ2の実行回数
}

// NewSearchState 初期タイル群から新しい検索状態を作成
func NewSearchState(city string, tiles []Tile) *SearchState {
	return &SearchState{
		City:             city,
		InitialTiles:     tiles,
		HighDensityStack: []Tile{},
		Processed:        make(map[string]bool),
		SeenPlaceIDs:     make(map[string]bool),
		DeepCount:        0,
	}
}

// IsProcessed タイルが検索済みかどうか
func (s *SearchState) IsProcessed(t Tile) bool {
	return s.Processed[t.Key()]
}

// MarkProcessed タイルを検索済みとして記録
func (s *SearchState) MarkProcessed(t Tile) {
	s.Processed[t.Key()] = true
}

// PushHighDensity 高密度タイルをスタックに積む
func (s *SearchState) PushHighDensity(t Tile) {
	s.HighDensityStack = append(s.HighDensityStack, t)
}

// PopHighDensity スタックから1枚取り出す（LIFO・深さ優先）
func (s *SearchState) PopHighDensity() (Tile, bool) {
	if len(s.HighDensityStack) == 0 {
		return Tile{}, false
	}
	last := len(s.HighDensityStack) - 1
	t := s.HighDensityStack[last]
	s.HighDensityStack = s.HighDensityStack[:last]
	return t, true
}

// IsInitialScanComplete 初期スキャンが完了済みかどうか
// 初期タイルがすべて処理済みならフェーズ1を省略できる
func (s *SearchState) IsInitialScanComplete() bool {
	if len(s.InitialTiles) == 0 {
		return false
	}
	for _, t := range s.InitialTiles {
		if !s.Processed[t.Key()] {
			return false
		}
	}
	return true
}

// UniquePlaceCount これまでに発見したユニークな店舗数
func (s *SearchState) UniquePlaceCount() int {
	return len(s.SeenPlaceIDs)
}
