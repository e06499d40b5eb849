// Package filter classifies jobs as visible or hidden. Predicates vote
// pass/fail/abstain; a job is visible only when no predicate fails. Every
// outcome is recorded so a hidden job can always explain itself.
package filter

import (
	"context"
	"log/slog"
	"time"

	"jobforge/internal/model"
)

// Input is everything a predicate may look at. Fields is nil when
// extraction failed for the job; field-based predicates abstain then.
type Input struct {
	Job    model.CanonicalJob
	Fields *model.ExtractedFields
}

// Predicate is one filtering rule.
type Predicate interface {
	Name() string
	Evaluate(ctx context.Context, in Input) model.PredicateOutcome
}

// Engine runs an ordered predicate list and records the decision.
type Engine struct {
	predicates []Predicate
	store      Store
	logger     *slog.Logger
	now        func() time.Time
}

// Store is the slice of the persistence gateway filtering needs.
type Store interface {
	SaveFilterDecision(ctx context.Context, d model.FilterDecision) error
}

// NewEngine creates a filter engine over the given predicates, evaluated in
// order.
func NewEngine(predicates []Predicate, store Store, logger *slog.Logger) *Engine {
	return &Engine{
		predicates: predicates,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// Decide evaluates all predicates, persists the decision, and returns it.
// The job is hidden when any non-abstaining predicate fails; the first
// failing predicate's name is kept on the decision. An error here means
// storage failed, nothing else: predicates themselves cannot abort a run.
func (e *Engine) Decide(ctx context.Context, in Input) (model.FilterDecision, error) {
	d := model.FilterDecision{
		JobKey:    in.Job.Key,
		Visible:   true,
		DecidedAt: e.now(),
	}

	for _, p := range e.predicates {
		outcome := p.Evaluate(ctx, in)
		outcome.Name = p.Name()
		d.Outcomes = append(d.Outcomes, outcome)

		if outcome.Result == model.PredicateFail && d.Visible {
			d.Visible = false
			d.FailedPredicate = p.Name()
		}
	}

	if !d.Visible {
		e.logger.Debug("job hidden", "job", in.Job.Key, "predicate", d.FailedPredicate)
	}

	if err := e.store.SaveFilterDecision(ctx, d); err != nil {
		return model.FilterDecision{}, err
	}
	return d, nil
}
