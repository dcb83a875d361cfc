package analysis

import (
	"context"
	"time"

	"github.com/otp-analysis/internal/common/logger"
)

// Progress is emitted after every completed origin of an OD-matrix run.
type Progress struct {
	RunID        string        `json:"runId"`
	Origin       string        `json:"origin"`
	Destinations int           `json:"destinations"`
	Processed    int           `json:"processed"`
	Remaining    int           `json:"remaining"`
	Total        int           `json:"total"`
	Elapsed      time.Duration `json:"elapsed"`
	ETA          time.Duration `json:"eta"`
}

// estimateRemaining extrapolates linearly from the throughput so far:
// elapsed*total/processed - elapsed.
func estimateRemaining(elapsed time.Duration, processed, total int) time.Duration {
	if processed <= 0 {
		return 0
	}
	projected := time.Duration(float64(elapsed) * float64(total) / float64(processed))
	return projected - elapsed
}

// ProgressReporter receives per-origin progress. Implementations must not
// block the run for long.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, p Progress)
}

// LogReporter writes progress lines through the logger.
type LogReporter struct {
	logger logger.Logger
}

func NewLogReporter(log logger.Logger) *LogReporter {
	return &LogReporter{logger: log}
}

func (r *LogReporter) ReportProgress(_ context.Context, p Progress) {
	r.logger.Info("Calculating ODs",
		"run_id", p.RunID,
		"origin", p.Origin,
		"destinations", p.Destinations,
		"remaining_origins", p.Remaining,
		"eta", p.ETA.Round(time.Second).String(),
	)
}

// EventPublisher sends a JSON document to a subject.
type EventPublisher interface {
	PublishJSON(subject string, v interface{}) error
}

// PublishReporter forwards progress events to a message broker.
type PublishReporter struct {
	pub     EventPublisher
	subject string
	logger  logger.Logger
}

func NewPublishReporter(pub EventPublisher, subject string, log logger.Logger) *PublishReporter {
	return &PublishReporter{pub: pub, subject: subject, logger: log}
}

func (r *PublishReporter) ReportProgress(_ context.Context, p Progress) {
	if err := r.pub.PublishJSON(r.subject, p); err != nil {
		r.logger.Warn("Failed to publish progress", "subject", r.subject, "error", err)
	}
}

// MultiReporter fans progress out to several reporters in order.
type MultiReporter []ProgressReporter

func (m MultiReporter) ReportProgress(ctx context.Context, p Progress) {
	for _, r := range m {
		if r != nil {
			r.ReportProgress(ctx, p)
		}
	}
}
