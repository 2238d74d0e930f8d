package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

var settingsDefaults = domain.Settings{
	WatchFolder:         "./fax_inbox",
	AutoProcess:         true,
	RequireReview:       true,
	ConfidenceThreshold: 0.7,
}

func TestSettingsStoreFallsBackToDefaults(t *testing.T) {
	store := NewSettingsStore(&settingsRepoFake{}, settingsDefaults, nil)

	got, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != settingsDefaults {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestSettingsStoreUpdatePersistsMergedSettings(t *testing.T) {
	repo := &settingsRepoFake{}
	store := NewSettingsStore(repo, settingsDefaults, nil)

	threshold := 0.85
	folder := " /srv/fax "
	got, err := store.Update(context.Background(), domain.SettingsPatch{ConfidenceThreshold: &threshold, WatchFolder: &folder})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.ConfidenceThreshold != 0.85 || got.WatchFolder != "/srv/fax" || !got.RequireReview {
		t.Fatalf("unexpected merged settings: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at to be set")
	}

	reloaded, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if reloaded.ConfidenceThreshold != 0.85 {
		t.Fatalf("expected persisted threshold, got %v", reloaded.ConfidenceThreshold)
	}
}

func TestSettingsStoreRejectsInvalidPatchWithoutSaving(t *testing.T) {
	repo := &settingsRepoFake{}
	store := NewSettingsStore(repo, settingsDefaults, nil)

	empty := ""
	if _, err := store.Update(context.Background(), domain.SettingsPatch{WatchFolder: &empty}); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if repo.saves != 0 {
		t.Fatalf("invalid patch must not be saved")
	}
}

func TestSettingsStoreEmptyPatchIsNoop(t *testing.T) {
	repo := &settingsRepoFake{}
	store := NewSettingsStore(repo, settingsDefaults, nil)

	if _, err := store.Update(context.Background(), domain.SettingsPatch{}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if repo.saves != 0 {
		t.Fatalf("empty patch must not be saved")
	}
}

func TestSettingsStorePropagatesLoadFailure(t *testing.T) {
	store := NewSettingsStore(&settingsRepoFake{loadErr: errors.New("db down")}, settingsDefaults, nil)

	if _, err := store.Get(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
