package core

import (
	"context"
	"fmt"
	"strconv"

	"sessionflow/pkg/domain"
)

// NewWeaningCountRule returns the in-transaction rule that keeps the number
// of weaned pups within the size of the litter.
func NewWeaningCountRule() domain.Rule {
	return weaningCountRule{}
}

type weaningCountRule struct{}

func (weaningCountRule) Name() string { return "weaning_count" }

func (weaningCountRule) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Table != tableWeaning {
			continue
		}
		key := change.Row.Project("line", "breeding_pair", "litter_birth_date")
		litters, err := view.Fetch(ctx, tableLitter, key)
		if err != nil {
			return domain.Result{}, err
		}
		if len(litters) != 1 {
			continue
		}
		pups, _ := strconv.Atoi(litters[0]["num_of_pups"])
		male, _ := strconv.Atoi(change.Row["num_of_male"])
		female, _ := strconv.Atoi(change.Row["num_of_female"])
		if male+female > pups {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "weaning_count",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("litter %s/%s born %s weaned %d pups but has %d", key["line"], key["breeding_pair"], key["litter_birth_date"], male+female, pups),
				Table:    change.Table,
				Key:      key,
			})
		}
	}
	return res, nil
}
