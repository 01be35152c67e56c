package service

import (
	"context"
	"testing"

	"adsim/internal/models"
	"adsim/internal/repository"
)

func TestRunOnce_StepsUnfinishedRuns(t *testing.T) {
	runs, repo := newTestRunService(t)
	ctx := context.Background()

	seedA, seedB := int64(7), int64(11)
	a, err := runs.Create(ctx, CreateRunParams{ScenarioSlug: "test-market", Seed: &seedA})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := runs.Create(ctx, CreateRunParams{ScenarioSlug: "test-market", Seed: &seedB})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	adv := &AutoAdvanceService{Runs: runs, Repo: repo}
	if err := adv.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	for _, id := range []uint64{a.ID, b.ID} {
		run, err := runs.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if run.CurrentDay != 1 {
			t.Fatalf("run %d day=%d want 1 after one tick", id, run.CurrentDay)
		}
		if run.Status != models.RunStatusRunning {
			t.Fatalf("run %d status=%s want running", id, run.Status)
		}
	}
}

func TestRunOnce_DrivesRunToCompletion(t *testing.T) {
	runs, repo := newTestRunService(t)
	ctx := context.Background()

	seed := int64(3)
	run, err := runs.Create(ctx, CreateRunParams{ScenarioSlug: "test-market", Seed: &seed, DurationDays: DurationShort})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	adv := &AutoAdvanceService{Runs: runs, Repo: repo, BatchSize: 5}
	// One extra tick past the duration exercises the completed-run skip.
	for i := 0; i < DurationShort+1; i++ {
		if err := adv.RunOnce(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	got, err := runs.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.RunStatusCompleted || got.CurrentDay != DurationShort {
		t.Fatalf("status=%s day=%d want completed at day %d", got.Status, got.CurrentDay, DurationShort)
	}
}

func TestRunOnce_RespectsBatchSize(t *testing.T) {
	runs, repo := newTestRunService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seed := int64(i + 1)
		if _, err := runs.Create(ctx, CreateRunParams{ScenarioSlug: "test-market", Seed: &seed}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	adv := &AutoAdvanceService{Runs: runs, Repo: repo, BatchSize: 2}
	if err := adv.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	stepped := 0
	all, err := runs.List(ctx, repository.ListRunsParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, run := range all {
		if run.CurrentDay > 0 {
			stepped++
		}
	}
	if stepped != 2 {
		t.Fatalf("stepped=%d want batch size 2", stepped)
	}
}
