package repository

import "GeoDine-Crawler/internal/domain/model"

// CheckpointRepository 検索進捗の永続スナップショット
type CheckpointRepository interface {
	// Save 状態をスナップショットとして保存する（一時ファイル→リネームで原子的に）
	Save(state *model.SearchState) error

	// Load 保存済みの状態を復元する
	// チェックポイントが存在しない・読めない場合は(nil, nil)を返し、
	// 呼び出し側は「前回実行なし」として扱う
	Load() (*model.SearchState, error)

	// Delete チェックポイントを削除する（実行が完全に完了したときのみ呼ぶ）
	Delete() error
}
