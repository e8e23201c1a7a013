package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/releasegate/releasegate-backend/internal/types"
)

func signOffEvent(actor uuid.UUID, status types.SignOffStatus, at time.Time) *types.SignOff {
	return &types.SignOff{
		ID:          uuid.New(),
		CriterionID: uuid.New(),
		SignedByID:  actor,
		Status:      status,
		SignedAt:    at,
	}
}

func TestLatestByActorShadowsEarlierEvents(t *testing.T) {
	actor := uuid.New()
	base := time.Now().UTC()
	events := []*types.SignOff{
		signOffEvent(actor, types.SignOffStatusApproved, base),
		signOffEvent(actor, types.SignOffStatusRevoked, base.Add(time.Minute)),
	}

	latest := LatestByActor(events)
	if len(latest) != 1 {
		t.Fatalf("expected 1 actor, got %d", len(latest))
	}
	if got := latest[actor].Status; got != types.SignOffStatusRevoked {
		t.Fatalf("expected latest event revoked, got %s", got)
	}
}

func TestResolveNoEventsIsPending(t *testing.T) {
	criterion := &types.ReleaseCriterion{ID: uuid.New(), IsMandatory: true}
	got := ResolveCriterionStatus(criterion, map[uuid.UUID]*types.SignOff{}, nil)
	if got != types.CriterionStatusPending {
		t.Fatalf("expected pending, got %s", got)
	}
}

func TestResolveSingleApproverModel(t *testing.T) {
	// No stakeholders assigned: one approval from anyone resolves the
	// criterion, mandatory or not.
	criterion := &types.ReleaseCriterion{ID: uuid.New(), IsMandatory: true}
	actor := uuid.New()
	latest := map[uuid.UUID]*types.SignOff{
		actor: signOffEvent(actor, types.SignOffStatusApproved, time.Now().UTC()),
	}

	if got := ResolveCriterionStatus(criterion, latest, nil); got != types.CriterionStatusApproved {
		t.Fatalf("expected approved, got %s", got)
	}
}

func TestResolveRejectionDominates(t *testing.T) {
	criterion := &types.ReleaseCriterion{ID: uuid.New(), IsMandatory: true}
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()
	latest := map[uuid.UUID]*types.SignOff{
		u1: signOffEvent(u1, types.SignOffStatusApproved, now),
		u2: signOffEvent(u2, types.SignOffStatusRejected, now),
		u3: signOffEvent(u3, types.SignOffStatusApproved, now),
	}

	got := ResolveCriterionStatus(criterion, latest, []uuid.UUID{u1, u2, u3})
	if got != types.CriterionStatusRejected {
		t.Fatalf("expected rejected to dominate, got %s", got)
	}
}

func TestResolveMandatoryPartialApprovalIsBlocked(t *testing.T) {
	criterion := &types.ReleaseCriterion{ID: uuid.New(), IsMandatory: true}
	u1, u2 := uuid.New(), uuid.New()
	latest := map[uuid.UUID]*types.SignOff{
		u1: signOffEvent(u1, types.SignOffStatusApproved, time.Now().UTC()),
	}

	got := ResolveCriterionStatus(criterion, latest, []uuid.UUID{u1, u2})
	if got != types.CriterionStatusBlocked {
		t.Fatalf("expected blocked, got %s", got)
	}

	// Second stakeholder approves and the criterion flips.
	latest[u2] = signOffEvent(u2, types.SignOffStatusApproved, time.Now().UTC())
	got = ResolveCriterionStatus(criterion, latest, []uuid.UUID{u1, u2})
	if got != types.CriterionStatusApproved {
		t.Fatalf("expected approved after full approval, got %s", got)
	}
}

func TestResolveOptionalApprovesOnFirstApproval(t *testing.T) {
	criterion := &types.ReleaseCriterion{ID: uuid.New(), IsMandatory: false}
	u1, u2 := uuid.New(), uuid.New()
	latest := map[uuid.UUID]*types.SignOff{
		u1: signOffEvent(u1, types.SignOffStatusApproved, time.Now().UTC()),
	}

	got := ResolveCriterionStatus(criterion, latest, []uuid.UUID{u1, u2})
	if got != types.CriterionStatusApproved {
		t.Fatalf("expected approved, got %s", got)
	}
}

func TestResolveIgnoresNonStakeholdersUnderGating(t *testing.T) {
	criterion := &types.ReleaseCriterion{ID: uuid.New(), IsMandatory: true}
	member, outsider := uuid.New(), uuid.New()
	latest := map[uuid.UUID]*types.SignOff{
		outsider: signOffEvent(outsider, types.SignOffStatusRejected, time.Now().UTC()),
	}

	// The outsider's rejection does not count; nothing from the member yet.
	got := ResolveCriterionStatus(criterion, latest, []uuid.UUID{member})
	if got != types.CriterionStatusPending {
		t.Fatalf("expected pending, got %s", got)
	}
}

func TestResolveRevokedEntriesDoNotCount(t *testing.T) {
	criterion := &types.ReleaseCriterion{ID: uuid.New(), IsMandatory: true}
	actor := uuid.New()
	latest := map[uuid.UUID]*types.SignOff{
		actor: signOffEvent(actor, types.SignOffStatusRevoked, time.Now().UTC()),
	}

	got := ResolveCriterionStatus(criterion, latest, []uuid.UUID{actor})
	if got != types.CriterionStatusPending {
		t.Fatalf("expected pending after revoke, got %s", got)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	criterion := &types.ReleaseCriterion{ID: uuid.New(), IsMandatory: true}
	u1, u2 := uuid.New(), uuid.New()
	latest := map[uuid.UUID]*types.SignOff{
		u1: signOffEvent(u1, types.SignOffStatusApproved, time.Now().UTC()),
	}
	stakeholders := []uuid.UUID{u1, u2}

	first := ResolveCriterionStatus(criterion, latest, stakeholders)
	for i := 0; i < 5; i++ {
		if got := ResolveCriterionStatus(criterion, latest, stakeholders); got != first {
			t.Fatalf("resolution changed on repeat call: %s then %s", first, got)
		}
	}
}
