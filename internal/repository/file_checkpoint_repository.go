package repository

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"GeoDine-Crawler/internal/domain/model"
)

// チェックポイントのフォーマットバージョン
// フィールド追加時はインクリメントし、未知のバージョンは明示的に拒否する
const checkpointVersion = 1

// checkpointRecord SearchStateの永続化形式
// map集合はスライスに展開し、スタックは順序を保ったまま保存する
type checkpointRecord struct {
	Version          int
	SavedAt          int64
	City             string
	InitialTiles     []model.Tile
	HighDensityStack []model.Tile
	Processed        []string
	SeenPlaceIDs     []string
	DeepCount        int
}

// FileCheckpointRepository gobエンコード＋gzip圧縮のチェックポイントファイル実装
// 一時ファイルへ書いてからリネームするため、書き込み途中のファイルが
// 観測されることはない（プロセスがクラッシュしても前回分は壊れない）
type FileCheckpointRepository struct {
	path   string
	city   string
	logger *slog.Logger
}

// NewFileCheckpointRepository 都市と実行日タグから決定的なパスでリポジトリを作成
func NewFileCheckpointRepository(dir, city, dateTag string, logger *slog.Logger) *FileCheckpointRepository {
	filename := fmt.Sprintf("checkpoint_%s_%s.ckpt", strings.ToLower(city), dateTag)
	return &FileCheckpointRepository{
		path:   filepath.Join(dir, filename),
		city:   city,
		logger: logger,
	}
}

// Path チェックポイントファイルのパス
func (r *FileCheckpointRepository) Path() string {
	return r.path
}

// Save 状態をスナップショットとして保存する
func (r *FileCheckpointRepository) Save(state *model.SearchState) error {
	record := checkpointRecord{
		Version:          checkpointVersion,
		SavedAt:          time.Now().Unix(),
		City:             state.City,
		InitialTiles:     state.InitialTiles,
		HighDensityStack: state.HighDensityStack,
		Processed:        keysOf(state.Processed),
		SeenPlaceIDs:     keysOf(state.SeenPlaceIDs),
		DeepCount:        state.DeepCount,
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("チェックポイントディレクトリの作成に失敗: %w", err)
	}

	tmpPath := r.path + ".tmp"
	if err := r.writeRecord(tmpPath, &record); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("チェックポイントの置き換えに失敗: %w", err)
	}

	r.logger.Info("saved checkpoint",
		slog.String("operation", "save_checkpoint"),
		slog.String("city", r.city),
		slog.String("path", r.path),
		slog.Int("processed", len(record.Processed)),
		slog.Int("stack_depth", len(record.HighDensityStack)),
		slog.Int("deep_count", record.DeepCount),
	)
	return nil
}

func (r *FileCheckpointRepository) writeRecord(path string, record *checkpointRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := gob.NewEncoder(gz).Encode(record); err != nil {
		gz.Close()
		return fmt.Errorf("チェックポイントのエンコードに失敗: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("チェックポイントの圧縮に失敗: %w", err)
	}
	return f.Sync()
}

// Load 保存済みの状態を復元する
// ファイルが存在しない・壊れている・バージョンが未知の場合は(nil, nil)を
// 返し、呼び出し側は新規実行として扱う。致命的エラーにはしない
func (r *FileCheckpointRepository) Load() (*model.SearchState, error) {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		r.logger.Info("no checkpoint found",
			slog.String("operation", "load_checkpoint"),
			slog.String("city", r.city),
			slog.String("path", r.path),
		)
		return nil, nil
	}

	record, err := r.readRecord()
	if err != nil {
		r.logger.Error("failed to load checkpoint, starting fresh",
			slog.String("operation", "load_checkpoint"),
			slog.String("city", r.city),
			slog.String("path", r.path),
			slog.String("error", err.Error()),
		)
		os.Remove(r.path + ".tmp")
		return nil, nil
	}

	if record.Version != checkpointVersion {
		r.logger.Error("unsupported checkpoint version, starting fresh",
			slog.String("operation", "load_checkpoint"),
			slog.String("city", r.city),
			slog.Int("version", record.Version),
			slog.Int("supported", checkpointVersion),
		)
		return nil, nil
	}

	state := &model.SearchState{
		City:             record.City,
		InitialTiles:     record.InitialTiles,
		HighDensityStack: record.HighDensityStack,
		Processed:        setOf(record.Processed),
		SeenPlaceIDs:     setOf(record.SeenPlaceIDs),
		DeepCount:        record.DeepCount,
	}

	r.logger.Info("loaded checkpoint",
		slog.String("operation", "load_checkpoint"),
		slog.String("city", r.city),
		slog.Int64("age_seconds", time.Now().Unix()-record.SavedAt),
		slog.Int("processed", len(record.Processed)),
		slog.Int("stack_depth", len(record.HighDensityStack)),
		slog.Int("unique_places", len(record.SeenPlaceIDs)),
	)
	return state, nil
}

func (r *FileCheckpointRepository) readRecord() (*checkpointRecord, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("チェックポイントのオープンに失敗: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("チェックポイントの展開に失敗: %w", err)
	}
	defer gz.Close()

	var record checkpointRecord
	if err := gob.NewDecoder(gz).Decode(&record); err != nil {
		return nil, fmt.Errorf("チェックポイントのデコードに失敗: %w", err)
	}
	return &record, nil
}

// Delete チェックポイントを削除する（両フェーズ完了後のみ呼ばれる）
func (r *FileCheckpointRepository) Delete() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("チェックポイントの削除に失敗: %w", err)
	}
	r.logger.Info("removed checkpoint",
		slog.String("operation", "remove_checkpoint"),
		slog.String("city", r.city),
		slog.String("path", r.path),
	)
	return nil
}

func keysOf(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

func setOf(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
