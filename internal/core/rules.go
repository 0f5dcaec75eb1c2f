package core

import "sessionflow/pkg/domain"

type (
	Change             = domain.Change
	Result             = domain.Result
	Violation          = domain.Violation
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
)

// Qualified class names the built-in rules watch.
const (
	tableSubject       = "subject.Subject"
	tableFather        = "genotyping.BreedingPair.Father"
	tableMother        = "genotyping.BreedingPair.Mother"
	tableLitter        = "genotyping.Litter"
	tableWeaning       = "genotyping.Weaning"
	tableSubjectLitter = "genotyping.SubjectLitter"
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(LineageIntegrityRule())
	engine.Register(NewWeaningCountRule())
	return engine
}
