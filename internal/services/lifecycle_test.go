package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/releasegate/releasegate-backend/internal/platform/apierr"
	"github.com/releasegate/releasegate-backend/internal/repos/testutil"
	"github.com/releasegate/releasegate-backend/internal/types"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to types.ReleaseStatus
		ok       bool
	}{
		{types.ReleaseStatusDraft, types.ReleaseStatusInReview, true},
		{types.ReleaseStatusDraft, types.ReleaseStatusApproved, false},
		{types.ReleaseStatusDraft, types.ReleaseStatusCancelled, false},
		{types.ReleaseStatusInReview, types.ReleaseStatusApproved, true},
		{types.ReleaseStatusInReview, types.ReleaseStatusCancelled, true},
		{types.ReleaseStatusInReview, types.ReleaseStatusDraft, false},
		{types.ReleaseStatusInReview, types.ReleaseStatusReleased, false},
		{types.ReleaseStatusApproved, types.ReleaseStatusReleased, true},
		{types.ReleaseStatusApproved, types.ReleaseStatusCancelled, true},
		{types.ReleaseStatusApproved, types.ReleaseStatusInReview, false},
		{types.ReleaseStatusReleased, types.ReleaseStatusCancelled, false},
		{types.ReleaseStatusCancelled, types.ReleaseStatusDraft, false},
	}
	for _, c := range cases {
		if got := canTransition(c.from, c.to); got != c.ok {
			t.Fatalf("%s -> %s: want %v, got %v", c.from, c.to, c.ok, got)
		}
	}
}

func TestTransitionApprovalRequiresAllMandatory(t *testing.T) {
	h := newHarness(t)
	admin := uuid.New()
	product := testutil.SeedProduct(t, h.db, "atlas")
	release := testutil.SeedRelease(t, h.db, product.ID, types.ReleaseStatusInReview)
	a := testutil.SeedCriterion(t, h.db, release.ID, "qa", true)
	b := testutil.SeedCriterion(t, h.db, release.ID, "security", true)
	u1 := uuid.New()
	testutil.SeedStakeholder(t, h.db, release.ID, u1)
	ctx := asAdmin(admin)

	if _, err := h.ledger.Record(asUser(u1), a.ID, types.SignOffStatusApproved, "", ""); err != nil {
		t.Fatalf("record: %v", err)
	}

	// b is still pending: approval must fail.
	if _, err := h.lifecycle.Transition(ctx, release.ID, types.ReleaseStatusApproved); !apierr.IsCode(err, apierr.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition with pending mandatory criterion, got %v", err)
	}

	if _, err := h.ledger.Record(asUser(u1), b.ID, types.SignOffStatusApproved, "", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	updated, err := h.lifecycle.Transition(ctx, release.ID, types.ReleaseStatusApproved)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != types.ReleaseStatusApproved {
		t.Fatalf("want approved, got %s", updated.Status)
	}
}

func TestTransitionApprovalIgnoresStaleCache(t *testing.T) {
	h := newHarness(t)
	admin := uuid.New()
	product := testutil.SeedProduct(t, h.db, "atlas")
	release := testutil.SeedRelease(t, h.db, product.ID, types.ReleaseStatusInReview)
	criterion := testutil.SeedCriterion(t, h.db, release.ID, "qa", true)

	// Corrupt the cached column; the guard re-resolves from the ledger
	// and must not trust it.
	if err := h.criteria.UpdateStatus(asAdmin(admin), nil, criterion.ID, types.CriterionStatusApproved); err != nil {
		t.Fatalf("force cache: %v", err)
	}
	if _, err := h.lifecycle.Transition(asAdmin(admin), release.ID, types.ReleaseStatusApproved); !apierr.IsCode(err, apierr.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition from empty ledger, got %v", err)
	}
}

func TestTransitionVacuousMandatory(t *testing.T) {
	h := newHarness(t)
	admin := uuid.New()
	product := testutil.SeedProduct(t, h.db, "atlas")
	release := testutil.SeedRelease(t, h.db, product.ID, types.ReleaseStatusInReview)
	testutil.SeedCriterion(t, h.db, release.ID, "nice to have", false)

	// Zero mandatory criteria: the gate is vacuously satisfied.
	updated, err := h.lifecycle.Transition(asAdmin(admin), release.ID, types.ReleaseStatusApproved)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != types.ReleaseStatusApproved {
		t.Fatalf("want approved, got %s", updated.Status)
	}
}

func TestTransitionReleasedSetsTimestamp(t *testing.T) {
	h := newHarness(t)
	admin := uuid.New()
	product := testutil.SeedProduct(t, h.db, "atlas")
	release := testutil.SeedRelease(t, h.db, product.ID, types.ReleaseStatusApproved)

	updated, err := h.lifecycle.Transition(asAdmin(admin), release.ID, types.ReleaseStatusReleased)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.ReleasedAt == nil {
		t.Fatalf("released_at not set")
	}

	// Terminal: nothing leaves released.
	for _, to := range []types.ReleaseStatus{
		types.ReleaseStatusDraft,
		types.ReleaseStatusInReview,
		types.ReleaseStatusApproved,
		types.ReleaseStatusCancelled,
	} {
		if _, err := h.lifecycle.Transition(asAdmin(admin), release.ID, to); !apierr.IsCode(err, apierr.CodeInvalidTransition) {
			t.Fatalf("released -> %s: expected invalid_transition, got %v", to, err)
		}
	}
}

func TestTransitionAfterConcurrentCancel(t *testing.T) {
	h := newHarness(t)
	admin := uuid.New()
	product := testutil.SeedProduct(t, h.db, "atlas")
	release := testutil.SeedRelease(t, h.db, product.ID, types.ReleaseStatusInReview)

	// Simulate a concurrent transition landing between the guard check
	// and the status write by flipping the row out from under the CAS.
	swapped, err := h.releases.UpdateStatusCAS(asAdmin(admin), nil, release.ID, types.ReleaseStatusInReview, types.ReleaseStatusCancelled, nil)
	if err != nil || !swapped {
		t.Fatalf("setup CAS: swapped=%v err=%v", swapped, err)
	}
	if _, err := h.lifecycle.Transition(asAdmin(admin), release.ID, types.ReleaseStatusApproved); !apierr.IsCode(err, apierr.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition after concurrent cancel, got %v", err)
	}
}

func TestTransitionRequiresEditRights(t *testing.T) {
	h := newHarness(t)
	product := testutil.SeedProduct(t, h.db, "atlas")
	release := testutil.SeedRelease(t, h.db, product.ID, types.ReleaseStatusDraft)

	// A stakeholder without ownership can sign off but not transition.
	outsider := uuid.New()
	if _, err := h.lifecycle.Transition(asUser(outsider), release.ID, types.ReleaseStatusInReview); apierr.KindOf(err) != apierr.KindPermission {
		t.Fatalf("expected permission error, got %v", err)
	}

	owner := uuid.New()
	testutil.SeedOwner(t, h.db, product.ID, owner)
	if _, err := h.lifecycle.Transition(asUser(owner), release.ID, types.ReleaseStatusInReview); err != nil {
		t.Fatalf("owner transition: %v", err)
	}
}

func TestDeleteDraftGuards(t *testing.T) {
	h := newHarness(t)
	admin := uuid.New()
	product := testutil.SeedProduct(t, h.db, "atlas")
	ctx := asAdmin(admin)

	// Non-draft releases cannot be deleted.
	inReview := testutil.SeedRelease(t, h.db, product.ID, types.ReleaseStatusInReview)
	if err := h.lifecycle.DeleteDraft(ctx, inReview.ID); !apierr.IsCode(err, apierr.CodeReleaseNotDraft) {
		t.Fatalf("expected release_not_draft, got %v", err)
	}

	// Drafts with any ledger rows cannot be deleted, revoked included.
	draft := testutil.SeedRelease(t, h.db, product.ID, types.ReleaseStatusDraft)
	criterion := testutil.SeedCriterion(t, h.db, draft.ID, "qa", true)
	user := uuid.New()
	testutil.SeedStakeholder(t, h.db, draft.ID, user)
	if _, err := h.ledger.Record(asUser(user), criterion.ID, types.SignOffStatusApproved, "", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := h.ledger.Revoke(asUser(user), criterion.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := h.lifecycle.DeleteDraft(ctx, draft.ID); !apierr.IsCode(err, apierr.CodeDraftHasSignOffs) {
		t.Fatalf("expected draft_has_sign_offs, got %v", err)
	}
}

func TestDeleteDraftRemovesEverything(t *testing.T) {
	h := newHarness(t)
	admin := uuid.New()
	product := testutil.SeedProduct(t, h.db, "atlas")
	draft := testutil.SeedRelease(t, h.db, product.ID, types.ReleaseStatusDraft)
	testutil.SeedCriterion(t, h.db, draft.ID, "qa", true)
	testutil.SeedStakeholder(t, h.db, draft.ID, uuid.New())
	ctx := asAdmin(admin)

	if err := h.lifecycle.DeleteDraft(ctx, draft.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}

	gone, err := h.releases.GetByID(ctx, nil, draft.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gone != nil {
		t.Fatalf("release still present after delete")
	}
	criteria, err := h.criteria.ListByRelease(ctx, nil, draft.ID)
	if err != nil {
		t.Fatalf("list criteria: %v", err)
	}
	if len(criteria) != 0 {
		t.Fatalf("criteria not deleted: %d left", len(criteria))
	}
	members, err := h.members.ListByRelease(ctx, nil, draft.ID)
	if err != nil {
		t.Fatalf("list stakeholders: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("stakeholders not deleted: %d left", len(members))
	}
}
