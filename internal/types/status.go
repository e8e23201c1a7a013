package types

// ReleaseStatus is the lifecycle state of a release.
// draft → in_review → approved → released, with cancelled reachable from
// in_review or approved. released and cancelled are terminal.
type ReleaseStatus string

const (
	ReleaseStatusDraft     ReleaseStatus = "draft"
	ReleaseStatusInReview  ReleaseStatus = "in_review"
	ReleaseStatusApproved  ReleaseStatus = "approved"
	ReleaseStatusReleased  ReleaseStatus = "released"
	ReleaseStatusCancelled ReleaseStatus = "cancelled"
)

func (s ReleaseStatus) Valid() bool {
	switch s {
	case ReleaseStatusDraft, ReleaseStatusInReview, ReleaseStatusApproved,
		ReleaseStatusReleased, ReleaseStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no outbound transition exists from s.
func (s ReleaseStatus) Terminal() bool {
	return s == ReleaseStatusReleased || s == ReleaseStatusCancelled
}

// Editable reports whether criteria and stakeholder sets may still change.
func (s ReleaseStatus) Editable() bool {
	return s == ReleaseStatusDraft || s == ReleaseStatusInReview
}

// CriterionStatus is the derived status of a release criterion. It is a pure
// projection of the sign-off ledger; the stored column is a cache refreshed
// on every ledger write, never independently settable state.
type CriterionStatus string

const (
	CriterionStatusPending  CriterionStatus = "pending"
	CriterionStatusApproved CriterionStatus = "approved"
	CriterionStatusRejected CriterionStatus = "rejected"
	CriterionStatusBlocked  CriterionStatus = "blocked"
)

func (s CriterionStatus) Valid() bool {
	switch s {
	case CriterionStatusPending, CriterionStatusApproved,
		CriterionStatusRejected, CriterionStatusBlocked:
		return true
	}
	return false
}

// SignOffStatus is the kind of a single ledger event.
type SignOffStatus string

const (
	SignOffStatusApproved SignOffStatus = "approved"
	SignOffStatusRejected SignOffStatus = "rejected"
	SignOffStatusRevoked  SignOffStatus = "revoked"
)

func (s SignOffStatus) Valid() bool {
	switch s {
	case SignOffStatusApproved, SignOffStatusRejected, SignOffStatusRevoked:
		return true
	}
	return false
}

// Active reports whether the event counts toward resolution.
func (s SignOffStatus) Active() bool {
	return s == SignOffStatusApproved || s == SignOffStatusRejected
}
