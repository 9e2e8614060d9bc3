package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/gwakaf/weather-stats-app/internal/logging"
	"github.com/gwakaf/weather-stats-app/internal/weather"
)

const parquetContentType = "application/octet-stream"

// Writer serializes day batches to parquet and uploads them at their
// partitioned key. It reports success as a boolean: a failed write is a
// failed day for the orchestrator, never a reason to abort a run.
type Writer struct {
	store  ObjectStore
	bucket string
}

// NewWriter creates a Writer targeting the given bucket. A nil store is
// tolerated (local development without credentials); every write then fails
// softly.
func NewWriter(store ObjectStore, bucket string) *Writer {
	return &Writer{store: store, bucket: bucket}
}

// WriteDay persists one batch of hourly records for (location, date). It
// returns true only when the serialized object was fully uploaded.
func (w *Writer) WriteDay(ctx context.Context, batch weather.DayBatch, location, date string) bool {
	if w.store == nil {
		logging.Errorf("object store unavailable; cannot write %s on %s", location, date)
		return false
	}
	if len(batch) == 0 {
		logging.Warnf("empty batch for %s on %s; nothing to write", location, date)
		return false
	}

	buf, err := serializeParquet(batch)
	if err != nil {
		logging.Errorf("failed to serialize weather data for %s on %s: %v", location, date, err)
		return false
	}

	key := ObjectKey(location, date)
	if err := w.store.Upload(ctx, w.bucket, key, buf, parquetContentType); err != nil {
		logging.Errorf("failed to upload weather data to %s/%s: %v", w.bucket, key, err)
		return false
	}

	logging.Infof("successfully uploaded weather data to %s/%s (location: %s, date: %s, records: %d)",
		w.bucket, key, location, date, len(batch))
	return true
}

// serializeParquet writes the batch into an in-memory parquet file with one
// row group, SNAPPY-compressed. The parquet library panics on some schema
// problems, so finalization is wrapped with a recover.
func serializeParquet(batch weather.DayBatch) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(weather.HourlyObservation), int64(len(batch)))
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	var multiErr error
	for i, obs := range batch {
		if err := pw.Write(obs); err != nil {
			multiErr = multierror.Append(multiErr, fmt.Errorf("write record %d: %w", i, err))
			break
		}
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				multiErr = multierror.Append(multiErr, fmt.Errorf("parquet writer panicked during finalize: %v", r))
			}
		}()
		if err := pw.WriteStop(); err != nil {
			multiErr = multierror.Append(multiErr, fmt.Errorf("finalize parquet file: %w", err))
		}
	}()

	if multiErr != nil {
		return nil, multiErr
	}
	return buf, nil
}
