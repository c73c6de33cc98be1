package cleanup

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockArchive struct {
	mock.Mock
}

func (m *mockArchive) ListAll(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockArchive) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(archive Archive, config Config) *Service {
	s := NewService(archive, config, quietLogger())
	s.now = func() time.Time { return time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC) }
	return s
}

var archived = []string{
	"exports/2026-08-30/products.csv",
	"exports/2026-09-01/products.csv",
	"exports/2026-09-18/products.csv",
	"exports/2026-09-19/products.csv",
	"exports/2026-10-18/products.csv",
	"exports/notes.txt",
}

func TestService_RunOnce(t *testing.T) {
	archive := new(mockArchive)
	archive.On("ListAll", mock.Anything).Return(archived, nil)
	archive.On("Delete", mock.Anything, "exports/2026-09-01/products.csv").Return(nil)
	archive.On("Delete", mock.Anything, "exports/2026-08-30/products.csv").Return(errors.New("AccessDenied"))

	s := newTestService(archive, Config{Retention: 30 * 24 * time.Hour})
	assert.Equal(t, time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC), s.Cutoff())

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, report.Examined)
	assert.Equal(t, []string{"exports/2026-09-01/products.csv"}, report.Pruned)
	assert.Contains(t, report.Failed, "exports/2026-08-30/products.csv")
	archive.AssertExpectations(t)
	archive.AssertNotCalled(t, "Delete", mock.Anything, "exports/2026-09-18/products.csv")
	archive.AssertNotCalled(t, "Delete", mock.Anything, "exports/notes.txt")
}

func TestService_DryRun(t *testing.T) {
	archive := new(mockArchive)
	archive.On("ListAll", mock.Anything).Return(archived, nil)

	report, err := newTestService(archive, Config{Retention: 30 * 24 * time.Hour, DryRun: true}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"exports/2026-08-30/products.csv", "exports/2026-09-01/products.csv"}, report.Pruned)
	archive.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestService_ListFailure(t *testing.T) {
	archive := new(mockArchive)
	archive.On("ListAll", mock.Anything).Return(nil, errors.New("NoSuchBucket"))

	_, err := newTestService(archive, Config{}).RunOnce(context.Background())
	assert.ErrorContains(t, err, "NoSuchBucket")
}

func TestService_StartStopsWithContext(t *testing.T) {
	listed := make(chan struct{}, 1)
	archive := new(mockArchive)
	archive.On("ListAll", mock.Anything).Return([]string{}, nil).Run(func(mock.Arguments) {
		select {
		case listed <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestService(archive, Config{Interval: time.Hour}).Start(ctx)
		close(done)
	}()

	select {
	case <-listed:
	case <-time.After(time.Second):
		t.Fatal("first cycle did not run")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup service did not stop")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SHELF_ARCHIVE_RETENTION", "168h")
	t.Setenv("SHELF_ARCHIVE_PRUNE_INTERVAL", "soon")
	t.Setenv("SHELF_ARCHIVE_PRUNE_DRY_RUN", "true")

	cfg := LoadConfig()
	assert.Equal(t, 168*time.Hour, cfg.Retention)
	assert.Equal(t, time.Hour, cfg.Interval)
	assert.True(t, cfg.DryRun)
}
