package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/releasegate/releasegate-backend/internal/repos/testutil"
	"github.com/releasegate/releasegate-backend/internal/types"
)

func TestReleaseUpdateStatusCAS(t *testing.T) {
	db := testutil.DB(t)
	repo := NewReleaseRepo(db, testutil.Logger(t))
	ctx := context.Background()

	release := testutil.SeedRelease(t, db, uuid.New(), types.ReleaseStatusInReview)

	swapped, err := repo.UpdateStatusCAS(ctx, nil, release.ID, types.ReleaseStatusInReview, types.ReleaseStatusApproved, nil)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if !swapped {
		t.Fatalf("expected swap from matching state")
	}

	// Second writer still assuming in_review loses.
	swapped, err = repo.UpdateStatusCAS(ctx, nil, release.ID, types.ReleaseStatusInReview, types.ReleaseStatusCancelled, nil)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if swapped {
		t.Fatalf("stale writer must not win")
	}

	got, err := repo.GetByID(ctx, nil, release.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.ReleaseStatusApproved {
		t.Fatalf("want approved, got %s", got.Status)
	}
}

func TestReleaseCASSetsReleasedAt(t *testing.T) {
	db := testutil.DB(t)
	repo := NewReleaseRepo(db, testutil.Logger(t))
	ctx := context.Background()

	release := testutil.SeedRelease(t, db, uuid.New(), types.ReleaseStatusApproved)
	at := time.Now().UTC()

	swapped, err := repo.UpdateStatusCAS(ctx, nil, release.ID, types.ReleaseStatusApproved, types.ReleaseStatusReleased, &at)
	if err != nil || !swapped {
		t.Fatalf("cas: swapped=%v err=%v", swapped, err)
	}
	got, err := repo.GetByID(ctx, nil, release.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReleasedAt == nil {
		t.Fatalf("released_at not persisted")
	}
}

func TestReleaseGetByIDMissing(t *testing.T) {
	db := testutil.DB(t)
	repo := NewReleaseRepo(db, testutil.Logger(t))

	got, err := repo.GetByID(context.Background(), nil, uuid.New())
	if err != nil {
		t.Fatalf("expected nil error for missing row, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil release")
	}
}

func TestReleaseCountByStatus(t *testing.T) {
	db := testutil.DB(t)
	repo := NewReleaseRepo(db, testutil.Logger(t))
	ctx := context.Background()

	productID := uuid.New()
	testutil.SeedRelease(t, db, productID, types.ReleaseStatusDraft)
	testutil.SeedRelease(t, db, productID, types.ReleaseStatusDraft)
	testutil.SeedRelease(t, db, productID, types.ReleaseStatusCancelled)

	counts, err := repo.CountByStatus(ctx, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[types.ReleaseStatusDraft] != 2 || counts[types.ReleaseStatusCancelled] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
