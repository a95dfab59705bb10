package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sourcing-hub/marketplace/internal/jobs"
	"github.com/sourcing-hub/marketplace/internal/listing"
	"github.com/sourcing-hub/marketplace/internal/refdata"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Refresher reloads reference data.
type Refresher interface {
	Refresh(ctx context.Context) (refdata.Options, error)
}

// RefdataRefreshJob reloads the filter options and publishes the new version
// to every API instance.
type RefdataRefreshJob struct {
	Cache   Refresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewRefdataRefreshJob wires dependencies for the refresh handler.
func NewRefdataRefreshJob(cache Refresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *RefdataRefreshJob {
	return &RefdataRefreshJob{Cache: cache, Logger: logger, Metrics: metrics, Timeout: 30 * time.Second}
}

// Handle processes refdata refresh tasks.
func (j *RefdataRefreshJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Cache == nil {
		return errors.New("refdata refresh: handler not configured")
	}
	var payload RefdataRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskRefdataRefresh)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	logger.Info("starting refdata refresh")

	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	opts, err := j.Cache.Refresh(runCtx)
	if err != nil {
		logger.Error("refresh filter options", slog.Any("error", err))
		return err
	}

	j.metrics().SetOptionCount(listing.FilterCategory, len(opts.Categories))
	j.metrics().SetOptionCount(listing.FilterIndustry, len(opts.Industries))
	j.metrics().SetOptionCount(listing.FilterLocation, len(opts.Locations))
	j.metrics().SetOptionCount(listing.FilterCertification, len(opts.Certifications))
	logger.Info("completed refdata refresh",
		slog.Int("industries", len(opts.Industries)),
		slog.Int("locations", len(opts.Locations)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *RefdataRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskRefdataRefresh))
	}
	return slog.Default().With(slog.String("job", TaskRefdataRefresh))
}

func (j *RefdataRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
