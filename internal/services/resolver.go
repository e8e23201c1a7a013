package services

import (
	"github.com/google/uuid"

	"github.com/releasegate/releasegate-backend/internal/types"
)

// LatestByActor folds a time-ordered ledger into each actor's most recent
// event. A later revoked event shadows the actor's earlier approve/reject.
func LatestByActor(events []*types.SignOff) map[uuid.UUID]*types.SignOff {
	latest := make(map[uuid.UUID]*types.SignOff, len(events))
	for _, ev := range events {
		latest[ev.SignedByID] = ev
	}
	return latest
}

// ResolveCriterionStatus derives a criterion's status from the ledger and
// the release's current stakeholder set. Pure: same inputs, same output.
//
// A release uses multi-stakeholder gating iff it has at least one assigned
// stakeholder; in that mode only stakeholder events count and a mandatory
// criterion needs every stakeholder's approval. With no stakeholders any
// actor's single approval resolves the criterion. Rejection always dominates.
func ResolveCriterionStatus(criterion *types.ReleaseCriterion, latestByActor map[uuid.UUID]*types.SignOff, stakeholderIDs []uuid.UUID) types.CriterionStatus {
	gating := len(stakeholderIDs) > 0
	members := make(map[uuid.UUID]struct{}, len(stakeholderIDs))
	for _, id := range stakeholderIDs {
		members[id] = struct{}{}
	}

	active := make(map[uuid.UUID]types.SignOffStatus, len(latestByActor))
	for actor, ev := range latestByActor {
		if !ev.Status.Active() {
			continue
		}
		if gating {
			if _, ok := members[actor]; !ok {
				continue
			}
		}
		active[actor] = ev.Status
	}

	if len(active) == 0 {
		return types.CriterionStatusPending
	}
	for _, status := range active {
		if status == types.SignOffStatusRejected {
			return types.CriterionStatusRejected
		}
	}
	// Everything active is an approval from here on.
	if gating && criterion.IsMandatory && len(active) < len(stakeholderIDs) {
		return types.CriterionStatusBlocked
	}
	return types.CriterionStatusApproved
}
