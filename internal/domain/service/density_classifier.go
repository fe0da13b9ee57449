package service

// DensityClassifier 1回のクエリ結果からタイルが飽和しているかを判定する
//
// APIはクエリあたり最大 maxPages × resultsPerPage 件しか返さないため、
// ちょうど上限に達した場合のみ「ページネーションの天井に当たった＝
// 結果が切り捨てられた可能性がある」と判断できる。これがAPIの公開する
// 唯一の切り捨てシグナルなので、判定は「以上」ではなく厳密な一致で行う
type DensityClassifier struct {
	maxPages       int
	resultsPerPage int
}

// NewDensityClassifier 新しいDensityClassifierインスタンスを作成
func NewDensityClassifier(maxPages, resultsPerPage int) *DensityClassifier {
	return &DensityClassifier{
		maxPages:       maxPages,
		resultsPerPage: resultsPerPage,
	}
}

// IsSaturated タイルが飽和している（分割候補である）かどうか
func (c *DensityClassifier) IsSaturated(resultCount, pageCount int) bool {
	return resultCount == c.maxPages*c.resultsPerPage && pageCount == c.maxPages
}

// SaturationThreshold 飽和と判定される結果件数
func (c *DensityClassifier) SaturationThreshold() int {
	return c.maxPages * c.resultsPerPage
}
