package services

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"commercial-analytics/internal/abc"
	"commercial-analytics/internal/cascade"
	"commercial-analytics/internal/customers"
	"commercial-analytics/internal/fields"
	"commercial-analytics/internal/goals"
	"commercial-analytics/internal/importer"
	"commercial-analytics/internal/models"
	"commercial-analytics/internal/observability"
	"commercial-analytics/internal/period"
)

const cacheVersion = "v3"

// ErrNoData is returned by every query while no dataset is loaded.
var ErrNoData = errors.New("no dataset loaded")

func init() {
	// record values decoded from the cache are stored behind interfaces
	gob.Register(time.Time{})
}

// Options configures the analysis layer. Zero values fall back to the
// engine defaults.
type Options struct {
	Mapping          models.Mapping
	Recency          customers.Thresholds
	ABCThresholds    []abc.Threshold
	ItemThresholds   []abc.Threshold
	UnspecifiedLabel string
	CriticalSharePct float64
	Calendar         period.Calendar
	Goals            goals.Repository
	CacheDir         string
	Logger           *slog.Logger
	Metrics          *observability.Metrics
}

// Dataset is the loaded record set plus what was learned while loading it.
type Dataset struct {
	Records    []models.Record
	Headers    []string
	Detected   models.Mapping
	Mapping    models.Mapping
	Source     string
	LoadedAt   time.Time
	Skipped    int
	ErrorCount int
	FirstDate  time.Time
	LastDate   time.Time
}

// Analytics holds the current dataset and answers every report from it.
// Reports are recomputed per call; the dataset is replaced wholesale.
type Analytics struct {
	mu               sync.RWMutex
	data             *Dataset
	opts             Options
	recordsProcessed atomic.Int64
	logger           *slog.Logger
	metrics          *observability.Metrics
}

func NewAnalytics(opts Options) *Analytics {
	if opts.Recency == (customers.Thresholds{}) {
		opts.Recency = customers.DefaultThresholds
	}
	if len(opts.ABCThresholds) == 0 {
		opts.ABCThresholds = abc.DefaultThresholds
	}
	if len(opts.ItemThresholds) == 0 {
		opts.ItemThresholds = abc.ItemThresholds
	}
	if opts.CriticalSharePct == 0 {
		opts.CriticalSharePct = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// SetData replaces the dataset with records. A nil mapping keeps the
// configured one.
func (a *Analytics) SetData(records []models.Record, mapping models.Mapping) {
	ds := &Dataset{
		Records:  records,
		Detected: mapping,
		Source:   "memory",
		LoadedAt: time.Now(),
	}
	a.install(ds)
}

// LoadFromFile imports path, reusing the gob cache when it is newer than
// the file.
func (a *Analytics) LoadFromFile(ctx context.Context, path string) error {
	if cached, err := a.loadFromCache(path); err == nil {
		info, err := os.Stat(path)
		if err == nil && info.ModTime().Before(cached.LoadedAt) {
			a.install(cached)
			a.logger.Info("loaded from cache", "records", len(cached.Records), "source", path)
			return nil
		}
	}

	start := time.Now()
	a.logger.Info("importing dataset", "filename", path)

	res, err := importer.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	ds := &Dataset{
		Records:  res.Records,
		Headers:  res.Headers,
		Detected: res.Mapping,
		Source:   path,
		LoadedAt: time.Now(),
		Skipped:  res.Skipped,
	}
	a.install(ds)
	if a.metrics != nil {
		a.metrics.RowsImported.Add(float64(len(res.Records)))
	}

	if err := a.saveToCache(path, ds); err != nil {
		a.logger.Warn("failed to save cache", "error", err)
	}

	duration := time.Since(start)
	a.logger.Info("import complete",
		"records", len(ds.Records),
		"skipped", ds.Skipped,
		"row_errors", ds.ErrorCount,
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(ds.Records))/duration.Seconds()))
	return nil
}

// mergeMapping lets configured columns override detected ones.
func (a *Analytics) mergeMapping(detected models.Mapping) models.Mapping {
	out := make(models.Mapping, len(detected)+len(a.opts.Mapping))
	for k, v := range detected {
		out[k] = v
	}
	for k, v := range a.opts.Mapping {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// install derives the effective mapping from the detected one, so the
// configured overrides of this instance always apply.
func (a *Analytics) install(ds *Dataset) {
	ds.Mapping = a.mergeMapping(ds.Detected)
	sum := cascade.Many(ds.Records, ds.Mapping)
	ds.ErrorCount = sum.ErrorCount
	ds.FirstDate, ds.LastDate = time.Time{}, time.Time{}
	for _, rec := range ds.Records {
		d, ok := fields.Date(rec, models.FieldDate, ds.Mapping)
		if !ok {
			continue
		}
		if ds.FirstDate.IsZero() || d.Before(ds.FirstDate) {
			ds.FirstDate = d
		}
		if d.After(ds.LastDate) {
			ds.LastDate = d
		}
	}

	a.mu.Lock()
	a.data = ds
	a.mu.Unlock()

	a.recordsProcessed.Store(int64(len(ds.Records)))
	if a.metrics != nil {
		a.metrics.DatasetRecords.Set(float64(len(ds.Records)))
		a.metrics.RowErrors.Add(float64(ds.ErrorCount))
	}
}

func (a *Analytics) dataset() (*Dataset, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.data == nil || len(a.data.Records) == 0 {
		return nil, ErrNoData
	}
	return a.data, nil
}

// Cache management
func (a *Analytics) cacheFilename(path string) string {
	dir := a.opts.CacheDir
	if dir == "" {
		dir = ".cache"
	}
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(path)
	return filepath.Join(dir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

func (a *Analytics) saveToCache(path string, ds *Dataset) error {
	filename := a.cacheFilename(path)
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	// Only the detected mapping is persisted; overrides belong to the
	// instance that reads the cache.
	stored := *ds
	stored.Mapping = nil
	return gob.NewEncoder(file).Encode(&stored)
}

func (a *Analytics) loadFromCache(path string) (*Dataset, error) {
	file, err := os.Open(a.cacheFilename(path))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var ds Dataset
	if err := gob.NewDecoder(file).Decode(&ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Stats is a monitoring snapshot of the loaded dataset.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.data == nil {
		return map[string]any{"record_count": 0, "loaded": false}
	}
	stats := map[string]any{
		"loaded":            true,
		"record_count":      len(a.data.Records),
		"records_processed": a.recordsProcessed.Load(),
		"skipped_rows":      a.data.Skipped,
		"row_errors":        a.data.ErrorCount,
		"source":            a.data.Source,
		"last_processed":    a.data.LoadedAt,
		"mapped_fields":     len(a.data.Mapping),
	}
	if !a.data.LastDate.IsZero() {
		stats["first_date"] = a.data.FirstDate.Format(time.DateOnly)
		stats["last_date"] = a.data.LastDate.Format(time.DateOnly)
	}
	return stats
}
