package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"GeoDine-Crawler/internal/domain/model"
)

// CSVResultsWriter 重複排除済みの店舗をCSVへチャンク単位で追記するライター
// バッファはフラッシュが成功したときだけクリアするため、
// 各店舗はちょうど1回だけファイルに書かれる
type CSVResultsWriter struct {
	path     string
	capacity int
	buffer   []model.Place
	written  int
	logger   *slog.Logger
}

// NewCSVResultsWriter 都市と実行日タグから決定的なパスでライターを作成
func NewCSVResultsWriter(dir, city, dateTag string, capacity int, logger *slog.Logger) *CSVResultsWriter {
	filename := fmt.Sprintf("%s_restaurants_%s.csv", strings.ToLower(city), dateTag)
	return &CSVResultsWriter{
		path:     filepath.Join(dir, filename),
		capacity: capacity,
		logger:   logger,
	}
}

// Path 出力ファイルのパス
func (w *CSVResultsWriter) Path() string {
	return w.path
}

// Add 店舗をバッファに追加する。容量に達したらフラッシュする
func (w *CSVResultsWriter) Add(place model.Place) error {
	w.buffer = append(w.buffer, place)
	if len(w.buffer) >= w.capacity {
		return w.Flush()
	}
	return nil
}

// Flush バッファの内容をCSVへ追記する
// ファイルが無ければ作成してヘッダーを書き、あれば追記する
func (w *CSVResultsWriter) Flush() error {
	if len(w.buffer) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}

	writeHeader := false
	if info, err := os.Stat(w.path); os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		writeHeader = true
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("出力ファイルのオープンに失敗: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(model.PlaceCSVHeader()); err != nil {
			return fmt.Errorf("CSVヘッダーの書き込みに失敗: %w", err)
		}
	}
	for i := range w.buffer {
		if err := cw.Write(w.buffer[i].CSVRecord()); err != nil {
			return fmt.Errorf("CSVレコードの書き込みに失敗: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("CSVのフラッシュに失敗: %w", err)
	}

	flushed := len(w.buffer)
	w.written += flushed
	w.buffer = w.buffer[:0]

	w.logger.Info("flushed chunk to csv",
		slog.String("operation", "flush_chunk"),
		slog.String("path", w.path),
		slog.Int("flushed", flushed),
		slog.Int("total_written", w.written),
	)
	return nil
}

// Buffered 現在バッファ中の件数
func (w *CSVResultsWriter) Buffered() int {
	return len(w.buffer)
}

// Written これまでに書き出した件数
func (w *CSVResultsWriter) Written() int {
	return w.written
}

// ReadPlacesCSV 出力アーティファクトを読み戻す（ウェアハウス取り込み用）
// パースできない行は個別にスキップして続行する
func ReadPlacesCSV(path string, logger *slog.Logger) ([]*model.Place, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("CSVファイルのオープンに失敗: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	// ヘッダー行を読み飛ばす
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("CSVヘッダーの読み込みに失敗: %w", err)
	}

	var places []*model.Place
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSVの読み込みに失敗: %w", err)
		}

		place, err := model.PlaceFromCSVRecord(record)
		if err != nil {
			logger.Warn("skipping unparsable csv record",
				slog.String("operation", "read_csv"),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		places = append(places, place)
	}

	return places, nil
}
