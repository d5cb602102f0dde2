package storage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"NewsCurator/internal/domain"
	"NewsCurator/internal/infrastructure/storage"
)

// setupPostgres starts a throwaway Postgres and applies the embedded migrations.
func setupPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("curator"),
		postgres.WithUsername("curator"),
		postgres.WithPassword("curator"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := storage.Open(ctx, connStr, storage.PoolConfig{})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := storage.Migrate(db.DB, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func TestPostgres_CurationLifecycle(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	sources := storage.NewSourceRepository(db)
	news := storage.NewNewsRepository(db)
	curation := storage.NewCurationRepository(db)

	if _, err := db.ExecContext(ctx, `INSERT INTO categories (id, name, slug) VALUES ('tech', 'Technology', 'technology')`); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	if err := sources.Upsert(ctx, domain.Source{ID: "bbc", Name: "BBC", BaseURL: "https://bbc.com", Active: true}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	item := domain.ScrapedNews{
		ID:            uuid.NewString(),
		SourceID:      "bbc",
		Title:         "Go 2 released",
		OriginalURL:   "https://bbc.com/go2?utm_source=x",
		NormalizedURL: "https://bbc.com/go2",
		IngestedAt:    time.Now().UTC(),
	}
	inserted, err := news.InsertIfAbsent(ctx, item)
	if err != nil || !inserted {
		t.Fatalf("first insert = %v, %v", inserted, err)
	}
	dup := item
	dup.ID = uuid.NewString()
	inserted, err = news.InsertIfAbsent(ctx, dup)
	if err != nil || inserted {
		t.Fatalf("duplicate insert = %v, %v", inserted, err)
	}

	pending, err := news.ListUnclassified(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListUnclassified() = %d items, %v", len(pending), err)
	}

	category := "tech"
	curID := uuid.NewString()
	ok, err := curation.InsertIfAbsent(ctx, domain.CurationItem{
		ID:               curID,
		ScrapedNewsID:    item.ID,
		Status:           domain.StatusApproved,
		AICategoryID:     &category,
		AIConfidence:     0.93,
		ManualCategoryID: &category,
	})
	if err != nil || !ok {
		t.Fatalf("curation insert = %v, %v", ok, err)
	}

	if _, err := curation.Transition(ctx, curID, domain.StatusPending, domain.CurationUpdate{Status: domain.StatusRejected}); !errors.Is(err, domain.ErrStatusChanged) {
		t.Fatalf("expected stale transition to fail, got %v", err)
	}

	published, err := curation.Publish(ctx, curID, domain.Article{
		ID:         uuid.NewString(),
		Title:      item.Title,
		Slug:       "go-2-released",
		SourceURL:  item.OriginalURL,
		CategoryID: category,
		Status:     domain.ArticleStatusPublished,
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if published.Status != domain.StatusPublished || published.ArticleID == nil {
		t.Fatalf("unexpected published item: %+v", published)
	}

	if err := news.Delete(ctx, item.ID); !errors.Is(err, domain.ErrPublishedImmutable) {
		t.Fatalf("expected published delete to be refused, got %v", err)
	}

	page, err := curation.List(ctx, domain.CurationFilter{Query: "go 2"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 1 || page.Items[0].SourceName != "BBC" {
		t.Fatalf("unexpected page: %+v", page)
	}
}
