// Package export writes load history snapshots as Parquet files, locally
// and optionally to a GCS bucket.
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"gridpulse/internal/config"
	"gridpulse/internal/domain/model"
	"gridpulse/internal/store"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

const moduleName = "export"

// loadRow is the Parquet schema for exported load samples. Timestamps are
// written as epoch milliseconds.
type loadRow struct {
	IntervalStartUTC int64   `parquet:"name=interval_start_utc, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	IntervalEndUTC   int64   `parquet:"name=interval_end_utc, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	LoadMW           float64 `parquet:"name=load_mw, type=DOUBLE"`
}

// Sink receives a finished Parquet file.
type Sink interface {
	Put(ctx context.Context, objectName string, data []byte) error
	Close() error
}

// Exporter snapshots recent load history into partitioned Parquet files.
type Exporter struct {
	store store.Store
	cfg   config.ExportConfig
	sinks []Sink
	now   func() time.Time
}

// NewExporter creates an exporter writing to the given sinks.
func NewExporter(s store.Store, cfg config.ExportConfig, sinks []Sink) *Exporter {
	return &Exporter{store: s, cfg: cfg, sinks: sinks, now: time.Now}
}

// Export writes the last 24 hours of load samples to every sink. Partitions
// follow a Hive-style dt=YYYY-MM-DD layout keyed by interval start date.
func (e *Exporter) Export(ctx context.Context) error {
	samples, err := e.store.GetLoadSince(ctx, e.now().UTC().Add(-24*time.Hour))
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		logger.Infof("No load samples to export, skipping.")
		return nil
	}

	partitions := make(map[string][]model.LoadSample)
	for _, s := range samples {
		key := "dt=" + s.IntervalStartUTC.UTC().Format("2006-01-02")
		partitions[key] = append(partitions[key], s)
	}

	stamp := e.now().UTC().Format("20060102150405")
	for key, part := range partitions {
		data, err := encodeParquet(part)
		if err != nil {
			return err
		}
		objectName := filepath.Join(key, fmt.Sprintf("load_%s.parquet", stamp))
		for _, sink := range e.sinks {
			if err := sink.Put(ctx, objectName, data); err != nil {
				return err
			}
		}
		logger.Infof("Exported %d load samples to %s (%d bytes).", len(part), objectName, len(data))
	}
	return nil
}

// encodeParquet serializes samples into a single-row-group SNAPPY Parquet file.
func encodeParquet(samples []model.LoadSample) ([]byte, error) {
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(loadRow), int64(len(samples)))
	if err != nil {
		return nil, errs.InternalError(moduleName, "failed to create parquet writer", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, s := range samples {
		row := loadRow{
			IntervalStartUTC: s.IntervalStartUTC.UTC().UnixMilli(),
			IntervalEndUTC:   s.IntervalEndUTC.UTC().UnixMilli(),
			LoadMW:           s.LoadMW,
		}
		if err := pw.Write(row); err != nil {
			return nil, errs.InternalError(moduleName, "failed to write parquet row", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, errs.InternalError(moduleName, "failed to finalize parquet file", err)
	}
	return buf.Bytes(), nil
}

// LocalSink writes Parquet files below a base directory.
type LocalSink struct {
	baseDir string
}

// NewLocalSink creates a sink rooted at baseDir.
func NewLocalSink(baseDir string) *LocalSink {
	return &LocalSink{baseDir: baseDir}
}

func (s *LocalSink) Put(_ context.Context, objectName string, data []byte) error {
	path := filepath.Join(s.baseDir, objectName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.InternalError(moduleName, "failed to create export directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.InternalError(moduleName, fmt.Sprintf("failed to write export file %s", path), err)
	}
	return nil
}

func (s *LocalSink) Close() error { return nil }
