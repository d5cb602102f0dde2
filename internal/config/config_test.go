package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsCurator/internal/domain"
)

const sampleYAML = `
database:
  dsn: postgres://u:p@db:5432/news
scraper:
  workers: 8
  pageDelay: 250ms
classifier:
  provider: ml
ml:
  endpoint: http://ml:9000
pipeline:
  aiClassificationEnabled: true
  autoApproveThreshold: 0.9
  maxArticlesPerFetch: 30
  classificationBatchSize: 10
sources:
  - id: bbc
    name: BBC News
    baseUrl: https://www.bbc.com
    active: true
    scrape:
      strategy: selectors
      listUrl: https://www.bbc.com/news?page={page}
      list:
        item: article
        title: h2
        link: a
  - id: hn
    name: Hacker News
    baseUrl: https://news.ycombinator.com
    active: true
    scrape:
      feedUrl: https://news.ycombinator.com/rss
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/news", cfg.Database.DSN)
	assert.Equal(t, 8, cfg.Scraper.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Scraper.PageDelay)
	assert.Equal(t, 3, cfg.Scraper.MaxConsecutiveFailures, "untouched defaults survive")
	assert.Equal(t, ProviderML, cfg.Classifier.Provider)

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, domain.StrategySelectors, cfg.Sources[0].StrategyName())
	assert.Equal(t, domain.StrategyFeed, cfg.Sources[1].StrategyName())

	defaults := cfg.RunDefaults()
	assert.Equal(t, 0.9, defaults.AutoApproveThreshold)
	assert.Equal(t, 10, defaults.BatchSize)
	assert.Equal(t, "gpt-4o-mini", defaults.Model)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(databaseDSNEnv, "postgres://env@db/news")
	t.Setenv(redisAddressEnv, "redis:6379")
	t.Setenv(chatGPTModelEnv, "gpt-4.1")
	t.Setenv(schedulerEnabledEnv, "true")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env@db/news", cfg.Database.DSN)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, "gpt-4.1", cfg.RunDefaults().Model)
	assert.True(t, cfg.Scheduler.Enabled)
}

func TestLoadUsesConfigPathEnv(t *testing.T) {
	t.Setenv(configPathEnv, writeConfig(t, sampleYAML))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Len(t, cfg.Sources, 2)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"threshold above one": "pipeline:\n  autoApproveThreshold: 1.5\n",
		"unknown provider":    "classifier:\n  provider: oracle\n",
		"ml without endpoint": "classifier:\n  provider: ml\n",
		"bad log format":      "logging:\n  format: xml\n",
		"duplicate source": `sources:
  - {id: a, name: A, baseUrl: "https://a.example"}
  - {id: a, name: A2, baseUrl: "https://a2.example"}
`,
		"source without url": "sources:\n  - {id: a, name: A}\n",
		"bad timezone":       "scheduler:\n  timezone: Mars/Olympus\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.UTC.String(), cfg.Scheduler.Location().String())
}
