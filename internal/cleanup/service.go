// Package cleanup prunes archived catalogue exports once they pass the
// retention window.
package cleanup

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/birbparty/shelf/internal/storage"
)

// Archive is the part of the export archive the service needs
type Archive interface {
	ListAll(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Config contains configuration for the cleanup service
type Config struct {
	// Retention is how long an export is kept, counted from its archive day
	Retention time.Duration
	Interval  time.Duration
	DryRun    bool
}

// Report summarizes one cleanup cycle
type Report struct {
	Examined int
	Pruned   []string
	Failed   map[string]error
}

// Service removes expired exports from the archive
type Service struct {
	archive Archive
	config  Config
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewService creates a new cleanup service
func NewService(archive Archive, config Config, logger logrus.FieldLogger) *Service {
	// Set defaults
	if config.Retention <= 0 {
		config.Retention = 30 * 24 * time.Hour
	}
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Service{
		archive: archive,
		config:  config,
		logger:  logger.WithField("component", "cleanup"),
		now:     time.Now,
	}
}

// Start runs a cycle immediately and then once per interval until ctx ends
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		"dry_run":   s.config.DryRun,
		"interval":  s.config.Interval,
		"retention": s.config.Retention,
	}).Info("Cleanup service started")

	s.cycle(ctx)

	for {
		select {
		case <-ticker.C:
			s.cycle(ctx)
		case <-ctx.Done():
			s.logger.Info("Cleanup service stopped")
			return
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WithError(err).Error("Cleanup cycle failed")
	}
}

// RunOnce examines every archived export and deletes the expired ones.
// Keys that do not carry an archive date are left alone. A failed delete
// is recorded in the report and does not stop the cycle.
func (s *Service) RunOnce(ctx context.Context) (*Report, error) {
	keys, err := s.archive.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Examined: len(keys), Pruned: []string{}, Failed: map[string]error{}}
	cutoff := s.Cutoff()
	for _, key := range keys {
		if !s.expired(key, cutoff) {
			continue
		}
		if s.config.DryRun {
			s.logger.WithField("key", key).Info("DRY RUN: would prune export")
			report.Pruned = append(report.Pruned, key)
			continue
		}
		if err := s.archive.Delete(ctx, key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Failed to prune export")
			report.Failed[key] = err
			continue
		}
		report.Pruned = append(report.Pruned, key)
	}

	s.logger.WithFields(logrus.Fields{
		"examined": report.Examined,
		"pruned":   len(report.Pruned),
		"failed":   len(report.Failed),
	}).Info("Cleanup cycle completed")
	return report, nil
}

// Cutoff is the first archive day still inside the retention window
func (s *Service) Cutoff() time.Time {
	return s.now().UTC().Add(-s.config.Retention).Truncate(24 * time.Hour)
}

func (s *Service) expired(key string, cutoff time.Time) bool {
	day, ok := storage.ArchivedOn(key)
	return ok && day.Before(cutoff)
}
