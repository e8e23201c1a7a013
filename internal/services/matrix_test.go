package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/releasegate/releasegate-backend/internal/platform/apierr"
	"github.com/releasegate/releasegate-backend/internal/repos/testutil"
	"github.com/releasegate/releasegate-backend/internal/types"
)

func cellFor(t *testing.T, row MatrixRow, userID uuid.UUID) MatrixCell {
	t.Helper()
	for _, c := range row.Cells {
		if c.UserID == userID {
			return c
		}
	}
	t.Fatalf("no cell for user %s on row %q", userID, row.CriterionName)
	return MatrixCell{}
}

// Walks a full review: two mandatory criteria, two stakeholders, partial
// approval, a rejection, and the approval gate staying shut throughout.
func TestMatrixEndToEnd(t *testing.T) {
	h := newHarness(t)
	admin := uuid.New()
	product := testutil.SeedProduct(t, h.db, "atlas")
	release := testutil.SeedRelease(t, h.db, product.ID, types.ReleaseStatusInReview)
	critA := testutil.SeedCriterion(t, h.db, release.ID, "A", true)
	critB := testutil.SeedCriterion(t, h.db, release.ID, "B", true)
	u1, u2 := uuid.New(), uuid.New()
	testutil.SeedStakeholder(t, h.db, release.ID, u1)
	testutil.SeedStakeholder(t, h.db, release.ID, u2)
	ctx := asAdmin(admin)

	// U1 approves A.
	if _, err := h.ledger.Record(asUser(u1), critA.ID, types.SignOffStatusApproved, "ship it", "https://ci.example.com/1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	m, err := h.matrix.Build(ctx, release.ID)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(m.Rows) != 2 || len(m.Stakeholders) != 2 {
		t.Fatalf("matrix shape: %d rows, %d stakeholders", len(m.Rows), len(m.Stakeholders))
	}
	rowA := m.Rows[0]
	if rowA.CriterionID != critA.ID {
		t.Fatalf("row order: expected %q first, got %q", critA.Name, rowA.CriterionName)
	}
	c1 := cellFor(t, rowA, u1)
	if c1.Status == nil || *c1.Status != types.SignOffStatusApproved {
		t.Fatalf("cell(A,u1) not approved: %v", c1.Status)
	}
	if c1.Comment != "ship it" || c1.Link != "https://ci.example.com/1" || c1.SignedAt == nil {
		t.Fatalf("cell(A,u1) missing event detail")
	}
	if c2 := cellFor(t, rowA, u2); c2.Status != nil {
		t.Fatalf("cell(A,u2) should be empty, got %v", *c2.Status)
	}
	if rowA.ComputedStatus != types.CriterionStatusBlocked {
		t.Fatalf("row A: want blocked, got %s", rowA.ComputedStatus)
	}

	// U2 approves A: the row flips to approved.
	if _, err := h.ledger.Record(asUser(u2), critA.ID, types.SignOffStatusApproved, "", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	m, err = h.matrix.Build(ctx, release.ID)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.Rows[0].ComputedStatus != types.CriterionStatusApproved {
		t.Fatalf("row A after both approvals: want approved, got %s", m.Rows[0].ComputedStatus)
	}

	// U1 rejects B: rejection dominates regardless of u2's silence.
	if _, err := h.ledger.Record(asUser(u1), critB.ID, types.SignOffStatusRejected, "regression", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	m, err = h.matrix.Build(ctx, release.ID)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if m.Rows[1].ComputedStatus != types.CriterionStatusRejected {
		t.Fatalf("row B: want rejected, got %s", m.Rows[1].ComputedStatus)
	}

	// One of two mandatory criteria approved: 50 percent, gate shut.
	detail, err := h.release.Get(ctx, release.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Progress.MandatoryApproved != 1 || detail.Progress.MandatoryTotal != 2 {
		t.Fatalf("progress: %d/%d", detail.Progress.MandatoryApproved, detail.Progress.MandatoryTotal)
	}
	if detail.Progress.MandatoryPercent != 50 {
		t.Fatalf("progress percent: %v", detail.Progress.MandatoryPercent)
	}
	if _, err := h.lifecycle.Transition(ctx, release.ID, types.ReleaseStatusApproved); !apierr.IsCode(err, apierr.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition, got %v", err)
	}
}

func TestMatrixHidesRevokedEntries(t *testing.T) {
	h := newHarness(t)
	admin := uuid.New()
	product := testutil.SeedProduct(t, h.db, "atlas")
	release := testutil.SeedRelease(t, h.db, product.ID, types.ReleaseStatusInReview)
	criterion := testutil.SeedCriterion(t, h.db, release.ID, "qa", true)
	user := uuid.New()
	testutil.SeedStakeholder(t, h.db, release.ID, user)

	if _, err := h.ledger.Record(asUser(user), criterion.ID, types.SignOffStatusApproved, "", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := h.ledger.Revoke(asUser(user), criterion.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	m, err := h.matrix.Build(asAdmin(admin), release.ID)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	cell := cellFor(t, m.Rows[0], user)
	if cell.Status != nil {
		t.Fatalf("revoked entry leaked into matrix cell: %v", *cell.Status)
	}
	if m.Rows[0].ComputedStatus != types.CriterionStatusPending {
		t.Fatalf("row after revoke: want pending, got %s", m.Rows[0].ComputedStatus)
	}
}

func TestMatrixUnknownRelease(t *testing.T) {
	h := newHarness(t)
	if _, err := h.matrix.Build(asAdmin(uuid.New()), uuid.New()); apierr.KindOf(err) != apierr.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}
