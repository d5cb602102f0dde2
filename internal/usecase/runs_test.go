package usecase

import (
	"context"
	"errors"
	"testing"

	"NewsCurator/internal/domain"
)

func TestRunRegistry(t *testing.T) {
	t.Parallel()

	r := NewRunRegistry()
	ctx, id, release, err := r.Begin(context.Background(), "", domain.StepCollect)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated run id")
	}
	if _, _, _, err := r.Begin(context.Background(), id, domain.StepFull); !errors.Is(err, domain.ErrRunInProgress) {
		t.Fatalf("duplicate begin = %v, want ErrRunInProgress", err)
	}

	runs := r.List()
	if len(runs) != 1 || runs[0].RunID != id || runs[0].Step != domain.StepCollect {
		t.Fatalf("unexpected runs %+v", runs)
	}

	if !r.Cancel(id) {
		t.Fatal("cancel of active run must succeed")
	}
	if ctx.Err() == nil {
		t.Fatal("run context must be cancelled")
	}

	release()
	release()
	if len(r.List()) != 0 {
		t.Fatal("released run must be removed")
	}
	if r.Cancel(id) {
		t.Fatal("cancel of finished run must report false")
	}
	if _, _, done, err := r.Begin(context.Background(), id, domain.StepCollect); err != nil {
		t.Fatalf("run id must be reusable after release: %v", err)
	} else {
		done()
	}
}
