package services

import (
	"github.com/releasegate/releasegate-backend/internal/types"
)

// Progress rolls every criterion of a release into mandatory/optional
// completion metrics. Pure and safe to recompute on every read.
type Progress struct {
	MandatoryTotal       int     `json:"mandatory_total"`
	MandatoryApproved    int     `json:"mandatory_approved"`
	MandatoryPercent     float64 `json:"mandatory_percent"`
	OptionalTotal        int     `json:"optional_total"`
	OptionalApproved     int     `json:"optional_approved"`
	OptionalPercent      float64 `json:"optional_percent"`
	AllMandatoryApproved bool    `json:"all_mandatory_approved"`
}

// ComputeProgress expects criteria whose Status fields already hold the
// resolved value. Percentages are 0 when the group is empty; a release
// with zero mandatory criteria is vacuously all-approved.
func ComputeProgress(criteria []*types.ReleaseCriterion) Progress {
	var p Progress
	for _, c := range criteria {
		if c.IsMandatory {
			p.MandatoryTotal++
			if c.Status == types.CriterionStatusApproved {
				p.MandatoryApproved++
			}
		} else {
			p.OptionalTotal++
			if c.Status == types.CriterionStatusApproved {
				p.OptionalApproved++
			}
		}
	}
	if p.MandatoryTotal > 0 {
		p.MandatoryPercent = float64(p.MandatoryApproved) / float64(p.MandatoryTotal) * 100
	}
	if p.OptionalTotal > 0 {
		p.OptionalPercent = float64(p.OptionalApproved) / float64(p.OptionalTotal) * 100
	}
	p.AllMandatoryApproved = p.MandatoryTotal == 0 || p.MandatoryApproved == p.MandatoryTotal
	return p
}
