package core

import (
	"context"
	"fmt"

	"sessionflow/pkg/domain"
)

// LineageIntegrityRule enforces breeding pair and litter lineage constraints.
// A sire or dam of unexpected sex is reported as a warning; a subject that is
// both parents of one pair, or a pup of its own pair, blocks the commit.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

func (r lineageIntegrityRule) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		var err error
		switch change.Table {
		case tableFather:
			err = r.checkParent(ctx, view, change, domain.SexMale, tableMother, &res)
		case tableMother:
			err = r.checkParent(ctx, view, change, domain.SexFemale, tableFather, &res)
		case tableSubjectLitter:
			err = r.checkPup(ctx, view, change, &res)
		}
		if err != nil {
			return domain.Result{}, err
		}
	}
	return res, nil
}

func (lineageIntegrityRule) checkParent(ctx context.Context, view domain.RuleView, change domain.Change, want domain.Sex, other string, res *domain.Result) error {
	key := change.Row.Project("line", "breeding_pair", "subject")
	subjects, err := view.Fetch(ctx, tableSubject, domain.Row{"subject": key["subject"]})
	if err != nil {
		return err
	}
	role := "father"
	if want == domain.SexFemale {
		role = "mother"
	}
	if len(subjects) == 1 {
		sex := domain.Sex(subjects[0]["sex"])
		if sex != want && sex != domain.SexUnknown {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "lineage_integrity",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("subject %s recorded as %s of breeding pair %s/%s has sex %s", key["subject"], role, key["line"], key["breeding_pair"], sex),
				Table:    change.Table,
				Key:      key,
			})
		}
	}
	both, err := view.Fetch(ctx, other, key)
	if err != nil {
		return err
	}
	if len(both) > 0 {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "lineage_integrity",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("subject %s cannot be both father and mother of breeding pair %s/%s", key["subject"], key["line"], key["breeding_pair"]),
			Table:    change.Table,
			Key:      key,
		})
	}
	return nil
}

func (lineageIntegrityRule) checkPup(ctx context.Context, view domain.RuleView, change domain.Change, res *domain.Result) error {
	if change.Row.Blank("breeding_pair") {
		return nil
	}
	key := change.Row.Project("line", "breeding_pair", "subject")
	for _, parent := range []string{tableFather, tableMother} {
		rows, err := view.Fetch(ctx, parent, key)
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "lineage_integrity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("subject %s cannot be a pup of its own breeding pair %s/%s", key["subject"], key["line"], key["breeding_pair"]),
				Table:    change.Table,
				Key:      change.Row.Project("subject"),
			})
			return nil
		}
	}
	return nil
}
