package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"NewsCurator/internal/domain"
)

// SyncSources upserts every source from the config file. Active flags of
// existing rows are left alone so operator toggles survive.
func (a *Application) SyncSources(ctx context.Context) (int, error) {
	for _, src := range a.cfg.Sources {
		if err := a.sources.Upsert(ctx, src); err != nil {
			return 0, err
		}
	}
	a.logger.Info("sources synced", "count", len(a.cfg.Sources))
	return len(a.cfg.Sources), nil
}

// ListSources returns every registered source, active or not.
func (a *Application) ListSources(ctx context.Context) ([]domain.Source, error) {
	return a.sources.List(ctx)
}

// SetSourceActive enables or disables scraping for one source.
func (a *Application) SetSourceActive(ctx context.Context, id string, active bool) error {
	return a.sources.SetActive(ctx, id, active)
}

// Settings returns the stored run-time settings merged over config defaults.
func (a *Application) Settings(ctx context.Context) (domain.RunSettings, error) {
	return a.orchestrator.ResolveSettings(ctx, domain.RunOptions{})
}

// SetSetting validates and stores one run-time setting.
func (a *Application) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	keys := make([]any, len(domain.SettingKeys))
	for i, k := range domain.SettingKeys {
		keys[i] = k
	}
	if err := validation.Validate(key, validation.Required, validation.In(keys...)); err != nil {
		return fmt.Errorf("%w: setting %q: %v", domain.ErrInvalidInput, key, err)
	}
	if err := validateSettingValue(key, value); err != nil {
		return fmt.Errorf("%w: setting %s: %v", domain.ErrInvalidInput, key, err)
	}
	return a.settings.Set(ctx, key, value)
}

func validateSettingValue(key, value string) error {
	switch key {
	case domain.SettingAIEnabled:
		_, err := strconv.ParseBool(value)
		return err
	case domain.SettingAutoApproveThreshold:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		return validation.Validate(v, validation.Min(0.0), validation.Max(1.0))
	case domain.SettingFetchIntervalHours, domain.SettingMaxArticlesPerFetch, domain.SettingClassificationBatch:
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		return validation.Validate(v, validation.Min(1))
	}
	return validation.Validate(value, validation.Required)
}
