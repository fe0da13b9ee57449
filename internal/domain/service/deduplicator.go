package service

// Deduplicator 実行全体を通してplace_idの重複を排除する
// seenはSearchStateのSeenPlaceIDsをそのまま共有するため、
// 重複排除の進捗もチェックポイントに含まれる。シングルスレッド前提
type Deduplicator struct {
	seen          map[string]bool
	totalReturned int
	uniqueEmitted int
}

// NewDeduplicator 既存のseen集合（再開時はチェックポイント由来）から作成
func NewDeduplicator(seen map[string]bool) *Deduplicator {
	return &Deduplicator{seen: seen}
}

// IsNew 未知のIDなら登録してtrueを返す（test-and-insert）
func (d *Deduplicator) IsNew(placeID string) bool {
	d.totalReturned++
	if d.seen[placeID] {
		return false
	}
	d.seen[placeID] = true
	d.uniqueEmitted++
	return true
}

// UniqueCount これまでに登録したユニークなIDの総数
func (d *Deduplicator) UniqueCount() int {
	return len(d.seen)
}

// TotalReturned この実行でチェックした件数（重複込み）
func (d *Deduplicator) TotalReturned() int {
	return d.totalReturned
}

// UniqueEmitted この実行で新規に出力した件数
func (d *Deduplicator) UniqueEmitted() int {
	return d.uniqueEmitted
}

// EfficiencyRatio ユニーク率（観測用のみで制御には使わない）
func (d *Deduplicator) EfficiencyRatio() float64 {
	if d.totalReturned == 0 {
		return 0
	}
	return float64(d.uniqueEmitted) / float64(d.totalReturned)
}
