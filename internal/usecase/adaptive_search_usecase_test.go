package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GeoDine-Crawler/internal/config"
	"GeoDine-Crawler/internal/domain/helper"
	"GeoDine-Crawler/internal/domain/model"
	repoImpl "GeoDine-Crawler/internal/repository"
)

// ---- テスト用のフェイク実装 ----

type queryRecord struct {
	Lat, Lng, Radius float64
}

// fakeProvider ネットワークに出ないPlacesProvider
type fakeProvider struct {
	center       model.LatLng
	viewport     orb.Bound
	geocodeCalls int
	queries      []queryRecord
	searchFn     func(lat, lng, radius float64) ([]model.Place, int, int, error)
}

func (f *fakeProvider) Geocode(ctx context.Context, city string) (model.LatLng, orb.Bound, error) {
	f.geocodeCalls++
	return f.center, f.viewport, nil
}

func (f *fakeProvider) SearchNearby(ctx context.Context, lat, lng, radius float64) ([]model.Place, int, int, error) {
	f.queries = append(f.queries, queryRecord{Lat: lat, Lng: lng, Radius: radius})
	return f.searchFn(lat, lng, radius)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.SearchConfig {
	return &config.SearchConfig{
		InitialStep:        0.1,
		MinStep:            0.03,
		LocationType:       "restaurant",
		MaxPages:           3,
		ResultsPerPage:     20,
		ChunkSize:          1000,
		CheckpointInterval: 2,
		MaxDeepDives:       1000,
		RequestsPerSecond:  1000,
	}
}

// パディング0.05の後、step 0.1で2x2=4タイルになる小さなビューポート
func smallViewport() (model.LatLng, orb.Bound) {
	center := model.LatLng{Lat: 0.01, Lng: 0.01}
	viewport := orb.Bound{
		Min: orb.Point{0, 0},
		Max: orb.Point{0.019, 0.019},
	}
	return center, viewport
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func saturatedPlaces(prefix string, n int) []model.Place {
	places := make([]model.Place, n)
	for i := range places {
		places[i] = model.Place{
			PlaceID: fmt.Sprintf("%s-%d", prefix, i),
			Name:    fmt.Sprintf("%s店%d", prefix, i),
			Lat:     1,
			Lng:     1,
		}
	}
	return places
}

func newTestHarness(t *testing.T, provider *fakeProvider, cfg *config.SearchConfig) (AdaptiveSearchUseCase, *repoImpl.FileCheckpointRepository, *repoImpl.CSVResultsWriter) {
	t.Helper()
	dir := t.TempDir()
	checkpoint := repoImpl.NewFileCheckpointRepository(dir, "testcity", "20260823", testLogger())
	writer := repoImpl.NewCSVResultsWriter(dir, "testcity", "20260823", cfg.ChunkSize, testLogger())
	search := NewAdaptiveSearchUseCase("testcity", cfg, provider, checkpoint, writer, testLogger())
	return search, checkpoint, writer
}

// ---- シナリオテスト ----

// 4タイルのグリッドで1枚だけ飽和するシナリオ:
// 飽和タイルだけがスタックに積まれ、フェーズ2でその4子タイルが
// それぞれ1回ずつクエリされる（親の再クエリはしない）
func TestRunSubdividesOnlySaturatedTile(t *testing.T) {
	center, viewport := smallViewport()
	require.Len(t, helper.GenerateInitialTiles(center, viewport, 0.1), 4)

	shared := []model.Place{
		{PlaceID: "shared-1", Name: "共通店1"},
		{PlaceID: "shared-2", Name: "共通店2"},
	}

	// 初期タイルは半径が大きい。タイル(-0.05, 0.05)だけ飽和させる
	provider := &fakeProvider{
		center:   center,
		viewport: viewport,
		searchFn: func(lat, lng, radius float64) ([]model.Place, int, int, error) {
			if radius > 5000 && near(lat, -0.05) && near(lng, 0.05) {
				return saturatedPlaces("sat", 60), 60, 3, nil
			}
			// 他のタイルは同じ2店舗を返す（タイル境界の重複を模す）
			return shared, 2, 1, nil
		},
	}

	cfg := testConfig()
	search, checkpoint, writer := newTestHarness(t, provider, cfg)

	require.NoError(t, search.Run(context.Background()))

	// 初期4タイル + 子4タイル = 8クエリ。親の再クエリなし
	require.Len(t, provider.queries, 8)

	parentQueries := 0
	childCenters := map[string]int{}
	for _, q := range provider.queries {
		if near(q.Lat, -0.05) && near(q.Lng, 0.05) {
			parentQueries++
		}
		key := fmt.Sprintf("%.6f,%.6f", q.Lat, q.Lng)
		childCenters[key]++
	}
	assert.Equal(t, 1, parentQueries, "飽和タイルはフェーズ1の1回だけクエリされる")

	// 飽和タイル(-0.05, 0.05)の4象限がちょうど1回ずつ
	for _, c := range []struct{ lat, lng float64 }{
		{-0.075, 0.025}, {-0.075, 0.075}, {-0.025, 0.025}, {-0.025, 0.075},
	} {
		key := fmt.Sprintf("%.6f,%.6f", c.lat, c.lng)
		assert.Equal(t, 1, childCenters[key], "子タイル %s のクエリ回数が不正", key)
	}

	// 出力: 共通2店舗 + 飽和タイルの60店舗。子タイルの返す共通店舗は重複排除される
	assert.Equal(t, 62, writer.Written())
	assert.Equal(t, 0, writer.Buffered())

	// 完了後はチェックポイントが削除されている
	state, err := checkpoint.Load()
	require.NoError(t, err)
	assert.Nil(t, state)
}

// 常に飽和するプロバイダでも、最小解像度で分割が止まり必ず終了する
func TestRunTerminatesOnPerpetualSaturation(t *testing.T) {
	center, viewport := smallViewport()

	counter := 0
	provider := &fakeProvider{
		center:   center,
		viewport: viewport,
		searchFn: func(lat, lng, radius float64) ([]model.Place, int, int, error) {
			counter++
			return saturatedPlaces(fmt.Sprintf("q%d", counter), 60), 60, 3, nil
		},
	}

	cfg := testConfig() // step 0.1 → 0.05 → 0.025 (≤ MinStep 0.03 で停止)
	search, _, _ := newTestHarness(t, provider, cfg)

	require.NoError(t, search.Run(context.Background()))

	// 初期4 + 各タイルにつき子4・孫16 = 4 + 4*20 = 84クエリ
	assert.Len(t, provider.queries, 84)

	// 最小解像度より小さいタイルはクエリされない
	minRadius := math.Inf(1)
	for _, q := range provider.queries {
		minRadius = math.Min(minRadius, q.Radius)
	}
	smallest := model.NewTile(0, 0, 0.025)
	assert.Greater(t, minRadius, smallest.SearchRadius()*0.5)
}

// チェックポイントで初期タイルが全部処理済みならフェーズ1を完全に省略し、
// 復元されたスタックの2タイルだけを処理する
func TestRunResumesSkippingPhase1(t *testing.T) {
	center, viewport := smallViewport()

	provider := &fakeProvider{
		center:   center,
		viewport: viewport,
		searchFn: func(lat, lng, radius float64) ([]model.Place, int, int, error) {
			return []model.Place{{PlaceID: fmt.Sprintf("p-%f-%f", lat, lng)}}, 1, 1, nil
		},
	}

	cfg := testConfig()
	search, checkpoint, _ := newTestHarness(t, provider, cfg)

	// 全初期タイル処理済み + スタック2枚のチェックポイントを仕込む
	tiles := helper.GenerateInitialTiles(center, viewport, cfg.InitialStep)
	state := model.NewSearchState("testcity", tiles)
	for _, tile := range tiles {
		state.MarkProcessed(tile)
	}
	stackA := model.NewTile(10.0, 10.0, 0.05)
	stackB := model.NewTile(20.0, 20.0, 0.05)
	state.PushHighDensity(stackA)
	state.PushHighDensity(stackB)
	require.NoError(t, checkpoint.Save(state))

	require.NoError(t, search.Run(context.Background()))

	// ジオコーディングは呼ばれない（フェーズ1省略）
	assert.Equal(t, 0, provider.geocodeCalls)

	// スタックの2枚だけがLIFO順でクエリされる
	require.Len(t, provider.queries, 2)
	assert.True(t, near(provider.queries[0].Lat, 20.0), "後に積んだタイルが先に処理される")
	assert.True(t, near(provider.queries[1].Lat, 10.0))

	// 完了後はチェックポイントが削除される
	restored, err := checkpoint.Load()
	require.NoError(t, err)
	assert.Nil(t, restored)
}

// キャンセルされたら進捗を退避し、再実行で続きから再開できる
func TestRunSuspendsOnCancelAndResumes(t *testing.T) {
	center, viewport := smallViewport()

	ctx, cancel := context.WithCancel(context.Background())
	firstQueries := 0
	provider := &fakeProvider{
		center:   center,
		viewport: viewport,
		searchFn: func(lat, lng, radius float64) ([]model.Place, int, int, error) {
			firstQueries++
			if firstQueries == 2 {
				cancel() // 2タイル目の直後に中断
			}
			return []model.Place{{PlaceID: fmt.Sprintf("p-%f-%f", lat, lng)}}, 1, 1, nil
		},
	}

	cfg := testConfig()
	dir := t.TempDir()
	checkpoint := repoImpl.NewFileCheckpointRepository(dir, "testcity", "20260823", testLogger())
	writer := repoImpl.NewCSVResultsWriter(dir, "testcity", "20260823", cfg.ChunkSize, testLogger())
	search := NewAdaptiveSearchUseCase("testcity", cfg, provider, checkpoint, writer, testLogger())

	err := search.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// 中断時点の進捗が保存されている
	state, loadErr := checkpoint.Load()
	require.NoError(t, loadErr)
	require.NotNil(t, state)
	assert.Equal(t, 2, len(state.Processed))
	assert.Equal(t, 2, state.UniquePlaceCount())

	// 再実行: 残りの2タイルだけがクエリされる
	resumed := &fakeProvider{
		center:   center,
		viewport: viewport,
		searchFn: func(lat, lng, radius float64) ([]model.Place, int, int, error) {
			return []model.Place{{PlaceID: fmt.Sprintf("p-%f-%f", lat, lng)}}, 1, 1, nil
		},
	}
	writer2 := repoImpl.NewCSVResultsWriter(dir, "testcity", "20260823", cfg.ChunkSize, testLogger())
	search2 := NewAdaptiveSearchUseCase("testcity", cfg, resumed, checkpoint, writer2, testLogger())
	require.NoError(t, search2.Run(context.Background()))

	assert.Equal(t, 0, resumed.geocodeCalls)
	assert.Len(t, resumed.queries, 2)
}

// フェーズ1でクエリに失敗したタイルがあると実行はエラーで終わり、
// チェックポイントが残る。完了扱いで領域を取りこぼしてはいけない
func TestRunFailsAndKeepsCheckpointOnInitialScanQueryFailure(t *testing.T) {
	center, viewport := smallViewport()
	queryErr := errors.New("一時的な接続エラー")

	provider := &fakeProvider{
		center:   center,
		viewport: viewport,
		searchFn: func(lat, lng, radius float64) ([]model.Place, int, int, error) {
			if near(lat, -0.05) && near(lng, 0.05) {
				return nil, 0, 0, queryErr
			}
			return []model.Place{{PlaceID: fmt.Sprintf("p-%f-%f", lat, lng)}}, 1, 1, nil
		},
	}

	cfg := testConfig()
	dir := t.TempDir()
	checkpoint := repoImpl.NewFileCheckpointRepository(dir, "testcity", "20260823", testLogger())
	writer := repoImpl.NewCSVResultsWriter(dir, "testcity", "20260823", cfg.ChunkSize, testLogger())
	search := NewAdaptiveSearchUseCase("testcity", cfg, provider, checkpoint, writer, testLogger())

	err := search.Run(context.Background())
	require.ErrorIs(t, err, queryErr)

	// 失敗タイル以外は走査済みで、成功分はフラッシュされている
	require.Len(t, provider.queries, 4)
	assert.Equal(t, 3, writer.Written())

	// チェックポイントは削除されず、失敗タイルだけが未処理で残る
	state, loadErr := checkpoint.Load()
	require.NoError(t, loadErr)
	require.NotNil(t, state)
	assert.Equal(t, 3, len(state.Processed))
	assert.False(t, state.IsInitialScanComplete())

	// 再実行: 失敗していた1タイルだけがクエリされ、完了する
	recovered := &fakeProvider{
		center:   center,
		viewport: viewport,
		searchFn: func(lat, lng, radius float64) ([]model.Place, int, int, error) {
			return []model.Place{{PlaceID: "recovered-1"}}, 1, 1, nil
		},
	}
	writer2 := repoImpl.NewCSVResultsWriter(dir, "testcity", "20260823", cfg.ChunkSize, testLogger())
	search2 := NewAdaptiveSearchUseCase("testcity", cfg, recovered, checkpoint, writer2, testLogger())
	require.NoError(t, search2.Run(context.Background()))

	require.Len(t, recovered.queries, 1)
	assert.True(t, near(recovered.queries[0].Lat, -0.05))
	assert.True(t, near(recovered.queries[0].Lng, 0.05))

	restored, loadErr := checkpoint.Load()
	require.NoError(t, loadErr)
	assert.Nil(t, restored)
}

// フェーズ2でクエリに失敗した子タイルはスタックに戻され、
// 実行はエラーで終わる。再開時に失敗分だけが再クエリされる
func TestRunDeepDiveFailureKeepsTilesOnStack(t *testing.T) {
	center, viewport := smallViewport()
	queryErr := errors.New("一時的な接続エラー")

	// 1タイルだけ飽和させ、その子タイル（半径が小さい）は常に失敗させる
	provider := &fakeProvider{
		center:   center,
		viewport: viewport,
		searchFn: func(lat, lng, radius float64) ([]model.Place, int, int, error) {
			if radius > 5000 && near(lat, -0.05) && near(lng, 0.05) {
				return saturatedPlaces("sat", 60), 60, 3, nil
			}
			if radius <= 5000 {
				return nil, 0, 0, queryErr
			}
			return []model.Place{{PlaceID: fmt.Sprintf("p-%f-%f", lat, lng)}}, 1, 1, nil
		},
	}

	cfg := testConfig()
	dir := t.TempDir()
	checkpoint := repoImpl.NewFileCheckpointRepository(dir, "testcity", "20260823", testLogger())
	writer := repoImpl.NewCSVResultsWriter(dir, "testcity", "20260823", cfg.ChunkSize, testLogger())
	search := NewAdaptiveSearchUseCase("testcity", cfg, provider, checkpoint, writer, testLogger())

	err := search.Run(context.Background())
	require.ErrorIs(t, err, queryErr)

	// 初期4タイル + 子4タイル。失敗した子を即座にポップし直す
	// ループには陥らない
	require.Len(t, provider.queries, 8)

	// 失敗した4子タイルはチェックポイントのスタックに残っている
	state, loadErr := checkpoint.Load()
	require.NoError(t, loadErr)
	require.NotNil(t, state)
	assert.Len(t, state.HighDensityStack, 4)

	// 再実行: スタックの4子タイルだけが再クエリされ、完了する
	recovered := &fakeProvider{
		center:   center,
		viewport: viewport,
		searchFn: func(lat, lng, radius float64) ([]model.Place, int, int, error) {
			return []model.Place{{PlaceID: fmt.Sprintf("p-%f-%f", lat, lng)}}, 1, 1, nil
		},
	}
	writer2 := repoImpl.NewCSVResultsWriter(dir, "testcity", "20260823", cfg.ChunkSize, testLogger())
	search2 := NewAdaptiveSearchUseCase("testcity", cfg, recovered, checkpoint, writer2, testLogger())
	require.NoError(t, search2.Run(context.Background()))

	assert.Equal(t, 0, recovered.geocodeCalls)
	assert.Len(t, recovered.queries, 4)

	restored, loadErr := checkpoint.Load()
	require.NoError(t, loadErr)
	assert.Nil(t, restored)
}

// ディープダイブの上限に達したら残りをスタックに残したまま停止する
func TestRunHonorsMaxDeepDives(t *testing.T) {
	center, viewport := smallViewport()

	provider := &fakeProvider{
		center:   center,
		viewport: viewport,
		searchFn: func(lat, lng, radius float64) ([]model.Place, int, int, error) {
			return saturatedPlaces(fmt.Sprintf("q-%f-%f", lat, lng), 60), 60, 3, nil
		},
	}

	cfg := testConfig()
	cfg.MaxDeepDives = 3
	search, checkpoint, _ := newTestHarness(t, provider, cfg)

	require.NoError(t, search.Run(context.Background()))

	// フェーズ2のクエリは上限の3回まで
	assert.Len(t, provider.queries, 4+3)

	// 上限停止は完了ではないので、残りの作業はチェックポイントに残る
	state, err := checkpoint.Load()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 3, state.DeepCount)
	assert.NotEmpty(t, state.HighDensityStack)
}
