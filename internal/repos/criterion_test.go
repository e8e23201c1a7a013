package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/releasegate/releasegate-backend/internal/repos/testutil"
	"github.com/releasegate/releasegate-backend/internal/types"
)

func TestCriterionNameExistsNormalizes(t *testing.T) {
	db := testutil.DB(t)
	repo := NewCriterionRepo(db, testutil.Logger(t))
	ctx := context.Background()

	release := testutil.SeedRelease(t, db, uuid.New(), types.ReleaseStatusDraft)
	criterion := testutil.SeedCriterion(t, db, release.ID, "QA Complete", true)

	for _, name := range []string{"QA Complete", "qa complete", "  QA COMPLETE "} {
		exists, err := repo.NameExists(ctx, nil, release.ID, name, uuid.Nil)
		if err != nil {
			t.Fatalf("name exists: %v", err)
		}
		if !exists {
			t.Fatalf("name %q should collide", name)
		}
	}

	// Excluding the row itself allows a rename to the same name.
	exists, err := repo.NameExists(ctx, nil, release.ID, "qa complete", criterion.ID)
	if err != nil {
		t.Fatalf("name exists: %v", err)
	}
	if exists {
		t.Fatalf("self-exclusion broken")
	}

	// Scope is per release.
	other := testutil.SeedRelease(t, db, uuid.New(), types.ReleaseStatusDraft)
	exists, err = repo.NameExists(ctx, nil, other.ID, "QA Complete", uuid.Nil)
	if err != nil {
		t.Fatalf("name exists: %v", err)
	}
	if exists {
		t.Fatalf("collision leaked across releases")
	}
}

func TestCriterionGetByIDForUpdate(t *testing.T) {
	db := testutil.DB(t)
	repo := NewCriterionRepo(db, testutil.Logger(t))
	ctx := context.Background()

	release := testutil.SeedRelease(t, db, uuid.New(), types.ReleaseStatusDraft)
	criterion := testutil.SeedCriterion(t, db, release.ID, "QA Complete", true)

	err := db.Transaction(func(tx *gorm.DB) error {
		got, err := repo.GetByIDForUpdate(ctx, tx, criterion.ID)
		if err != nil {
			return err
		}
		if got == nil || got.ID != criterion.ID {
			t.Fatalf("locked read returned %+v, want criterion %s", got, criterion.ID)
		}
		missing, err := repo.GetByIDForUpdate(ctx, tx, uuid.New())
		if err != nil {
			return err
		}
		if missing != nil {
			t.Fatalf("locked read of unknown id returned %+v", missing)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestCriterionListOrder(t *testing.T) {
	db := testutil.DB(t)
	repo := NewCriterionRepo(db, testutil.Logger(t))
	ctx := context.Background()

	release := testutil.SeedRelease(t, db, uuid.New(), types.ReleaseStatusDraft)
	b := testutil.SeedCriterion(t, db, release.ID, "beta", false)
	a := testutil.SeedCriterion(t, db, release.ID, "alpha", false)
	first := testutil.SeedCriterion(t, db, release.ID, "zulu", false)
	if err := repo.UpdateFields(ctx, nil, first.ID, map[string]interface{}{"order_index": -1}); err != nil {
		t.Fatalf("set order: %v", err)
	}

	got, err := repo.ListByRelease(ctx, nil, release.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []uuid.UUID{first.ID, a.ID, b.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d: want %s, got %s (%q)", i, want[i], got[i].ID, got[i].Name)
		}
	}
}
