package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/core/ports"
)

// SettingsStore serves the singleton settings row, falling back to the
// configured defaults until the first update is saved.
type SettingsStore struct {
	repo     ports.SettingsRepository
	defaults domain.Settings
	logger   *slog.Logger
	now      func() time.Time

	// serializes read-modify-write of partial updates within this process
	mu sync.Mutex
}

func NewSettingsStore(repo ports.SettingsRepository, defaults domain.Settings, logger *slog.Logger) *SettingsStore {
	if logger == nil {
		logger = slog.Default()
	}
	defaults.ConfidenceThreshold = domain.ClampConfidence(defaults.ConfidenceThreshold)
	return &SettingsStore{
		repo:     repo,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *SettingsStore) Get(ctx context.Context) (domain.Settings, error) {
	settings, err := s.repo.LoadSettings(ctx)
	if errors.Is(err, domain.ErrSettingsNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

func (s *SettingsStore) Update(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if patch.Empty() {
		return current, nil
	}

	next, err := current.Apply(patch)
	if err != nil {
		return domain.Settings{}, err
	}
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.SaveSettings(ctx, next); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.logger.Info("settings_updated",
		"watch_folder", next.WatchFolder,
		"auto_process", next.AutoProcess,
		"require_review", next.RequireReview,
		"confidence_threshold", next.ConfidenceThreshold,
	)
	return next, nil
}
