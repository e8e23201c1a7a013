// Command recompute_status re-derives the cached status column of every
// release criterion from the sign-off ledger. Useful after restoring a
// backup or after a resolution-rule change, since reads never trust the
// cache but dashboards querying the column directly do.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/releasegate/releasegate-backend/internal/app"
	"github.com/releasegate/releasegate-backend/internal/services"
	"github.com/releasegate/releasegate-backend/internal/types"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var releases idList
	var dryRun bool
	flag.Var(&releases, "release", "release id to recompute (repeatable, default all)")
	flag.BoolVar(&dryRun, "dry-run", false, "print planned updates without writing")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()

	var rows []*types.Release
	if len(releases) > 0 {
		for _, s := range releases {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil || id == uuid.Nil {
				continue
			}
			r, err := application.Repos.Releases.GetByID(ctx, nil, id)
			if err != nil {
				application.Log.Fatal("load release", "release_id", id, "error", err)
			}
			if r != nil {
				rows = append(rows, r)
			}
		}
	} else {
		if err := application.DB.WithContext(ctx).Find(&rows).Error; err != nil {
			application.Log.Fatal("list releases", "error", err)
		}
	}

	var updated int
	for _, release := range rows {
		criteria, err := application.Repos.Criteria.ListByRelease(ctx, nil, release.ID)
		if err != nil {
			application.Log.Fatal("list criteria", "release_id", release.ID, "error", err)
		}
		stakeholders, err := application.Repos.Stakeholders.ListByRelease(ctx, nil, release.ID)
		if err != nil {
			application.Log.Fatal("list stakeholders", "release_id", release.ID, "error", err)
		}
		shIDs := make([]uuid.UUID, 0, len(stakeholders))
		for _, sh := range stakeholders {
			shIDs = append(shIDs, sh.UserID)
		}

		for _, criterion := range criteria {
			events, err := application.Repos.SignOffs.ListByCriterion(ctx, nil, criterion.ID)
			if err != nil {
				application.Log.Fatal("list sign-offs", "criterion_id", criterion.ID, "error", err)
			}
			want := services.ResolveCriterionStatus(criterion, services.LatestByActor(events), shIDs)
			if want == criterion.Status {
				continue
			}
			fmt.Printf("release=%s criterion=%s %s -> %s\n", release.ID, criterion.ID, criterion.Status, want)
			updated++
			if dryRun {
				continue
			}
			if err := application.Repos.Criteria.UpdateStatus(ctx, nil, criterion.ID, want); err != nil {
				application.Log.Fatal("update status", "criterion_id", criterion.ID, "error", err)
			}
		}
	}

	if dryRun {
		fmt.Printf("dry run: %d criteria would change\n", updated)
		return
	}
	fmt.Printf("recomputed %d criteria\n", updated)
}
