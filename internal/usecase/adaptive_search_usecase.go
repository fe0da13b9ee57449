package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"GeoDine-Crawler/internal/config"
	"GeoDine-Crawler/internal/domain/helper"
	"GeoDine-Crawler/internal/domain/model"
	"GeoDine-Crawler/internal/domain/repository"
	"GeoDine-Crawler/internal/domain/service"
)

type AdaptiveSearchUseCase interface {
	// Run は初期スキャンとディープダイブの両フェーズを実行する
	// チェックポイントがあれば続きから再開し、完了時に削除する
	Run(ctx context.Context) error
}

// adaptiveSearchUseCaseImpl 2フェーズの適応検索を駆動するステートマシン
//
// INIT → PHASE1_SCAN → PHASE2_DEEPDIVE → DONE
//
// 実行は厳密に逐次（同時に1クエリのみ）。クエリとクエリの間で中断されても、
// 直近のチェックポイント以降の分を除いて進捗は失われない
type adaptiveSearchUseCaseImpl struct {
	city       string
	cfg        *config.SearchConfig
	provider   repository.PlacesProvider
	checkpoint repository.CheckpointRepository
	writer     repository.ResultsWriter
	classifier *service.DensityClassifier
	dedup      *service.Deduplicator
	state      *model.SearchState
	sessionID  string
	logger     *slog.Logger
	startedAt  time.Time
}

// NewAdaptiveSearchUseCase 新しいAdaptiveSearchUseCaseインスタンスを作成
func NewAdaptiveSearchUseCase(
	city string,
	cfg *config.SearchConfig,
	provider repository.PlacesProvider,
	checkpoint repository.CheckpointRepository,
	writer repository.ResultsWriter,
	logger *slog.Logger,
) AdaptiveSearchUseCase {
	return &adaptiveSearchUseCaseImpl{
		city:       city,
		cfg:        cfg,
		provider:   provider,
		checkpoint: checkpoint,
		writer:     writer,
		classifier: service.NewDensityClassifier(cfg.MaxPages, cfg.ResultsPerPage),
		sessionID:  uuid.New().String()[:8],
		logger:     logger,
	}
}

// Run 検索全体を実行する
func (u *adaptiveSearchUseCaseImpl) Run(ctx context.Context) error {
	u.startedAt = time.Now()

	u.logger.Info("starting adaptive search",
		slog.String("operation", "adaptive_search"),
		slog.String("session_id", u.sessionID),
		slog.String("city", u.city),
		slog.Float64("initial_step", u.cfg.InitialStep),
		slog.Float64("min_step", u.cfg.MinStep),
		slog.String("location_type", u.cfg.LocationType),
	)

	if err := u.init(ctx); err != nil {
		return err
	}

	if u.state.IsInitialScanComplete() {
		u.logger.Info("initial scan already complete, skipping phase 1",
			slog.String("operation", "adaptive_search"),
			slog.String("session_id", u.sessionID),
			slog.String("phase", "initial_scan"),
			slog.Int("stack_depth", len(u.state.HighDensityStack)),
		)
	} else {
		if err := u.runInitialScan(ctx); err != nil {
			return u.suspend(err)
		}
	}

	if err := u.runDeepDive(ctx); err != nil {
		return u.suspend(err)
	}

	// 上限到達で止まった場合は未完了なのでチェックポイントを残す
	if len(u.state.HighDensityStack) > 0 {
		if err := u.writer.Flush(); err != nil {
			return fmt.Errorf("最終フラッシュに失敗: %w", err)
		}
		u.saveCheckpoint()
		u.logger.Warn("search stopped before exhausting stack",
			slog.String("operation", "adaptive_search"),
			slog.String("session_id", u.sessionID),
			slog.Int("remaining_stack", len(u.state.HighDensityStack)),
			slog.Int("deep_count", u.state.DeepCount),
		)
		return nil
	}

	return u.finish()
}

// suspend 中断時の退避: バッファを書き切ってから進捗を保存する
// 次回実行はこのチェックポイントから再開する
func (u *adaptiveSearchUseCaseImpl) suspend(cause error) error {
	if err := u.writer.Flush(); err != nil {
		u.logger.Error("failed to flush buffer on suspend",
			slog.String("operation", "flush_chunk"),
			slog.String("session_id", u.sessionID),
			slog.String("error", err.Error()),
		)
	}
	u.saveCheckpoint()

	u.logger.Warn("search suspended",
		slog.String("operation", "adaptive_search"),
		slog.String("session_id", u.sessionID),
		slog.String("city", u.city),
		slog.String("reason", cause.Error()),
		slog.Int("unique_places", u.state.UniquePlaceCount()),
	)
	return cause
}

// init チェックポイントからの復元、なければジオコーディングとグリッド生成
func (u *adaptiveSearchUseCaseImpl) init(ctx context.Context) error {
	state, err := u.checkpoint.Load()
	if err != nil {
		return fmt.Errorf("チェックポイントの読み込みに失敗: %w", err)
	}

	if state != nil {
		u.state = state
		u.logger.Info("resuming from checkpoint",
			slog.String("operation", "resume_search"),
			slog.String("session_id", u.sessionID),
			slog.String("city", u.city),
			slog.Bool("initial_scan_complete", state.IsInitialScanComplete()),
			slog.Int("stack_depth", len(state.HighDensityStack)),
			slog.Int("unique_places", state.UniquePlaceCount()),
			slog.Int("deep_count", state.DeepCount),
		)
	} else {
		center, viewport, err := u.provider.Geocode(ctx, u.city)
		if err != nil {
			return fmt.Errorf("都市のジオコーディングに失敗: %w", err)
		}

		tiles := helper.GenerateInitialTiles(center, viewport, u.cfg.InitialStep)
		u.state = model.NewSearchState(u.city, tiles)

		u.logger.Info("generated initial tiles",
			slog.String("operation", "generate_tiles"),
			slog.String("session_id", u.sessionID),
			slog.Int("tile_count", len(tiles)),
			slog.Float64("initial_step", u.cfg.InitialStep),
		)
	}

	u.dedup = service.NewDeduplicator(u.state.SeenPlaceIDs)
	return nil
}

// runInitialScan フェーズ1: 初期グリッドを順に走査して高密度タイルを特定する
func (u *adaptiveSearchUseCaseImpl) runInitialScan(ctx context.Context) error {
	u.logger.Info("beginning initial scan",
		slog.String("operation", "adaptive_search"),
		slog.String("session_id", u.sessionID),
		slog.String("phase", "initial_scan"),
		slog.Int("tile_count", len(u.state.InitialTiles)),
	)

	failedTiles := 0
	var lastErr error

	for i, tile := range u.state.InitialTiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if u.state.IsProcessed(tile) {
			continue
		}

		places, count, pages, err := u.provider.SearchNearby(ctx, tile.CenterLat, tile.CenterLng, tile.SearchRadius())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// 失敗したタイルは未処理のまま残して走査を続け、
			// フェーズ1の最後にエラーを返す。実行は中断扱いになり
			// チェックポイントが残るため、再開時に拾い直される
			failedTiles++
			lastErr = err
			u.logger.Error("tile query failed, leaving unprocessed",
				slog.String("operation", "adaptive_search"),
				slog.String("session_id", u.sessionID),
				slog.String("phase", "initial_scan"),
				slog.String("tile", tile.Key()),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := u.absorb(places); err != nil {
			return err
		}
		u.state.MarkProcessed(tile)

		if u.classifier.IsSaturated(count, pages) {
			u.state.PushHighDensity(tile)
			u.logger.Info("found high density tile",
				slog.String("operation", "adaptive_search"),
				slog.String("session_id", u.sessionID),
				slog.String("phase", "initial_scan"),
				slog.String("tile", tile.Key()),
				slog.Int("result_count", count),
			)
		}

		if (i+1)%u.cfg.CheckpointInterval == 0 {
			u.saveCheckpoint()
		}
	}

	u.saveCheckpoint()

	// 未処理のタイルを残したまま完了扱いにすると、その領域は
	// 二度と検索されない。網羅性を守るため実行自体を失敗させる
	if failedTiles > 0 {
		return fmt.Errorf("初期スキャンで%d枚のタイルのクエリに失敗: %w", failedTiles, lastErr)
	}

	u.logger.Info("completed initial scan",
		slog.String("operation", "adaptive_search"),
		slog.String("session_id", u.sessionID),
		slog.String("phase", "initial_scan"),
		slog.Int("stack_depth", len(u.state.HighDensityStack)),
		slog.Int("unique_places", u.state.UniquePlaceCount()),
		slog.Duration("elapsed", time.Since(u.startedAt)),
	)
	return nil
}

// runDeepDive フェーズ2: 高密度タイルをLIFOで取り出して再帰的に分割する
// LIFOのため分割された領域は兄弟タイルへ移る前に深さ優先で解決される
func (u *adaptiveSearchUseCaseImpl) runDeepDive(ctx context.Context) error {
	u.logger.Info("beginning deep dive",
		slog.String("operation", "adaptive_search"),
		slog.String("session_id", u.sessionID),
		slog.String("phase", "deep_dive"),
		slog.Int("stack_depth", len(u.state.HighDensityStack)),
	)

	var failedTiles []model.Tile
	var lastErr error

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tile, ok := u.state.PopHighDensity()
		if !ok {
			break
		}
		if u.cfg.MaxDeepDives > 0 && u.state.DeepCount >= u.cfg.MaxDeepDives {
			u.logger.Warn("deep dive limit reached, stopping",
				slog.String("operation", "adaptive_search"),
				slog.String("session_id", u.sessionID),
				slog.String("phase", "deep_dive"),
				slog.Int("deep_count", u.state.DeepCount),
				slog.Int("remaining_stack", len(u.state.HighDensityStack)+1),
			)
			u.state.PushHighDensity(tile)
			break
		}

		// 処理済みのタイルがスタックに載っているのは飽和したときだけ
		// （同じ半径のクエリは同じ切り捨て結果を返す）ので、
		// 再クエリせず直接分割する
		if u.state.IsProcessed(tile) {
			u.subdivideInto(tile)
			continue
		}

		places, count, pages, err := u.provider.SearchNearby(ctx, tile.CenterLat, tile.CenterLng, tile.SearchRadius())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// すぐ積み直すと同じタイルを即座にポップしてループするため
			// 脇へ避けておき、スタックを使い切ってからまとめて積み直す
			failedTiles = append(failedTiles, tile)
			lastErr = err
			u.logger.Error("deep dive query failed, leaving on stack for resume",
				slog.String("operation", "adaptive_search"),
				slog.String("session_id", u.sessionID),
				slog.String("phase", "deep_dive"),
				slog.String("tile", tile.Key()),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := u.absorb(places); err != nil {
			return err
		}
		u.state.MarkProcessed(tile)
		u.state.DeepCount++

		u.logger.Info("deep dive tile resolved",
			slog.String("operation", "adaptive_search"),
			slog.String("session_id", u.sessionID),
			slog.String("phase", "deep_dive"),
			slog.Int("deep_count", u.state.DeepCount),
			slog.String("tile", tile.Key()),
			slog.Int("result_count", count),
			slog.Int("stack_depth", len(u.state.HighDensityStack)),
		)

		if u.classifier.IsSaturated(count, pages) {
			u.subdivideInto(tile)
		}

		if u.state.DeepCount%u.cfg.CheckpointInterval == 0 {
			u.saveCheckpoint()
		}
	}

	// 失敗したタイルをスタックへ戻してから実行を失敗させる。
	// チェックポイントに残るため、再開時に再クエリされる
	if len(failedTiles) > 0 {
		for _, t := range failedTiles {
			u.state.PushHighDensity(t)
		}
		return fmt.Errorf("ディープダイブで%d枚のタイルのクエリに失敗: %w", len(failedTiles), lastErr)
	}

	return nil
}

// subdivideInto タイルが最小解像度より大きければ4分割してスタックに積む
func (u *adaptiveSearchUseCaseImpl) subdivideInto(tile model.Tile) {
	if tile.Size <= u.cfg.MinStep {
		return
	}
	for _, child := range tile.Subdivide() {
		u.state.PushHighDensity(child)
	}
}

// absorb クエリ結果を重複排除してからライターへ流す
func (u *adaptiveSearchUseCaseImpl) absorb(places []model.Place) error {
	for i := range places {
		if !u.dedup.IsNew(places[i].PlaceID) {
			continue
		}
		if err := u.writer.Add(places[i]); err != nil {
			return fmt.Errorf("結果の書き出しに失敗: %w", err)
		}
	}
	return nil
}

// saveCheckpoint チェックポイントを保存する。失敗してもログに残して続行し、
// 次回の定期保存で再試行する
func (u *adaptiveSearchUseCaseImpl) saveCheckpoint() {
	if err := u.checkpoint.Save(u.state); err != nil {
		u.logger.Error("failed to save checkpoint, continuing in memory",
			slog.String("operation", "save_checkpoint"),
			slog.String("session_id", u.sessionID),
			slog.String("city", u.city),
			slog.String("error", err.Error()),
		)
	}
}

// finish DONE: 最終フラッシュとチェックポイントの後始末
func (u *adaptiveSearchUseCaseImpl) finish() error {
	if err := u.writer.Flush(); err != nil {
		return fmt.Errorf("最終フラッシュに失敗: %w", err)
	}

	if err := u.checkpoint.Delete(); err != nil {
		u.logger.Error("failed to remove checkpoint",
			slog.String("operation", "remove_checkpoint"),
			slog.String("session_id", u.sessionID),
			slog.String("error", err.Error()),
		)
	}

	u.logger.Info("adaptive search complete",
		slog.String("operation", "adaptive_search"),
		slog.String("session_id", u.sessionID),
		slog.String("city", u.city),
		slog.Int("unique_places", u.state.UniquePlaceCount()),
		slog.Int("deep_count", u.state.DeepCount),
		slog.Int("total_checked", u.dedup.TotalReturned()),
		slog.Int("unique_emitted", u.dedup.UniqueEmitted()),
		slog.Float64("efficiency_ratio", u.dedup.EfficiencyRatio()),
		slog.Duration("duration", time.Since(u.startedAt)),
	)
	return nil
}
