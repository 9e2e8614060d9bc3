package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/gwakaf/weather-stats-app/internal/logging"
	"github.com/gwakaf/weather-stats-app/internal/weather"
)

// Reader retrieves previously stored day batches. Absence of data and an
// unavailable store both surface as "no records", so callers downstream of
// the pipeline (the quality checks in particular) can keep going.
type Reader struct {
	store  ObjectStore
	bucket string
}

// NewReader creates a Reader over the given bucket.
func NewReader(store ObjectStore, bucket string) *Reader {
	return &Reader{store: store, bucket: bucket}
}

// ReadDay fetches the stored records for (location, date). A missing object
// or unavailable store yields (nil, nil); only malformed stored data is an
// error.
func (r *Reader) ReadDay(ctx context.Context, location, date string) ([]weather.HourlyObservation, error) {
	if r.store == nil {
		logging.Warnf("object store unavailable; no stored data for %s on %s", location, date)
		return nil, nil
	}

	key := ObjectKey(location, date)
	rc, err := r.store.Download(ctx, r.bucket, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			logging.Infof("no stored object at %s/%s", r.bucket, key)
			return nil, nil
		}
		logging.Warnf("failed to download %s/%s: %v", r.bucket, key, err)
		return nil, nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}

	records, err := deserializeParquet(data)
	if err != nil {
		return nil, fmt.Errorf("parse parquet object %s: %w", key, err)
	}
	logging.Infof("read %d stored records from %s/%s", len(records), r.bucket, key)
	return records, nil
}

func deserializeParquet(data []byte) ([]weather.HourlyObservation, error) {
	bf, err := buffer.NewBufferFile(data)
	if err != nil {
		return nil, fmt.Errorf("open parquet buffer: %w", err)
	}
	defer bf.Close()

	pr, err := reader.NewParquetReader(bf, new(weather.HourlyObservation), 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	records := make([]weather.HourlyObservation, num)
	if err := pr.Read(&records); err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return records, nil
}
