package metrics

import (
	"errors"
	"path"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

var (
	storage tstorage.Storage
	mu      sync.RWMutex
)

// InitMetrics opens the time series store under <workdir>/data/metrics.
// An empty workdir keeps everything in memory.
func InitMetrics(workdir string) error {
	opts := []tstorage.Option{
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(7 * 24 * time.Hour),
	}
	if workdir != "" {
		opts = append(opts, tstorage.WithDataPath(path.Join(workdir, "data", "metrics")))
	}
	s, err := tstorage.NewStorage(opts...)
	if err != nil {
		return err
	}
	mu.Lock()
	storage = s
	mu.Unlock()
	return nil
}

// SetGauge records the current value of a gauge
func SetGauge(name string, value int64) {
	mu.RLock()
	s := storage
	mu.RUnlock()
	if s == nil {
		return
	}
	_ = s.InsertRows([]tstorage.Row{{
		Metric:    name,
		DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
	}})
}

// Latest returns the most recent value recorded within the window.
func Latest(name string, window time.Duration) (float64, bool) {
	mu.RLock()
	s := storage
	mu.RUnlock()
	if s == nil {
		return 0, false
	}
	end := time.Now().Unix() + 1
	points, err := s.Select(name, nil, end-int64(window.Seconds()), end)
	if err != nil || len(points) == 0 {
		return 0, false
	}
	return points[len(points)-1].Value, true
}

// Series returns the points of a metric within the window
func Series(name string, window time.Duration) ([]*tstorage.DataPoint, error) {
	mu.RLock()
	s := storage
	mu.RUnlock()
	if s == nil {
		return nil, nil
	}
	end := time.Now().Unix() + 1
	points, err := s.Select(name, nil, end-int64(window.Seconds()), end)
	if errors.Is(err, tstorage.ErrNoDataPoints) {
		return nil, nil
	}
	return points, err
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}

// Reader adapts the package store to value readers
type Reader struct{}

func (Reader) Latest(name string, window time.Duration) (float64, bool) {
	return Latest(name, window)
}
