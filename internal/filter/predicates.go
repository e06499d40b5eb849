package filter

import (
	"context"
	"strings"

	"jobforge/internal/model"
)

func pass() model.PredicateOutcome {
	return model.PredicateOutcome{Result: model.PredicatePass}
}

func fail(reason string) model.PredicateOutcome {
	return model.PredicateOutcome{Result: model.PredicateFail, Reason: reason}
}

func abstain() model.PredicateOutcome {
	return model.PredicateOutcome{Result: model.PredicateAbstain}
}

// RelocationPredicate hides jobs that require relocating. Abstains when the
// posting does not say.
type RelocationPredicate struct{}

func (RelocationPredicate) Name() string { return "relocation" }

func (RelocationPredicate) Evaluate(_ context.Context, in Input) model.PredicateOutcome {
	if in.Fields == nil || in.Fields.RelocationNeeded == nil {
		return abstain()
	}
	if *in.Fields.RelocationNeeded {
		return fail("relocation required")
	}
	return pass()
}

// ScreeningPredicate hides jobs with a mandatory screening step (background
// check, security clearance).
type ScreeningPredicate struct{}

func (ScreeningPredicate) Name() string { return "screening" }

func (ScreeningPredicate) Evaluate(_ context.Context, in Input) model.PredicateOutcome {
	if in.Fields == nil || in.Fields.ScreeningRequired == nil {
		return abstain()
	}
	if *in.Fields.ScreeningRequired {
		return fail("screening required")
	}
	return pass()
}

// ContractorPredicate hides jobs that cannot be done on a contract basis.
// Only meaningful for candidates who work that way, so it is included only
// when configured.
type ContractorPredicate struct{}

func (ContractorPredicate) Name() string { return "contractor" }

func (ContractorPredicate) Evaluate(_ context.Context, in Input) model.PredicateOutcome {
	if in.Fields == nil || in.Fields.ContractFeasible == nil {
		return abstain()
	}
	if !*in.Fields.ContractFeasible {
		return fail("not contractor friendly")
	}
	return pass()
}

// LocationPredicate hides jobs tied to excluded locations. It checks both
// the posting's own location fields and the extracted specific locations,
// so it still applies when extraction failed.
type LocationPredicate struct {
	excluded []string
}

// NewLocationPredicate builds the predicate from a list of excluded
// location substrings (case-insensitive).
func NewLocationPredicate(excluded []string) *LocationPredicate {
	return &LocationPredicate{excluded: excluded}
}

func (*LocationPredicate) Name() string { return "location" }

func (p *LocationPredicate) Evaluate(_ context.Context, in Input) model.PredicateOutcome {
	if len(p.excluded) == 0 {
		return abstain()
	}

	candidates := []string{in.Job.Location()}
	if in.Fields != nil {
		candidates = append(candidates, in.Fields.SpecificLocations...)
	}

	for _, loc := range candidates {
		locLower := strings.ToLower(loc)
		for _, ex := range p.excluded {
			if ex != "" && strings.Contains(locLower, strings.ToLower(ex)) {
				return fail("excluded location: " + loc)
			}
		}
	}
	return pass()
}

// TitlePredicate requires the job title to contain at least one of the
// configured keywords (case-insensitive substring). Empty keyword lists
// abstain, matching the poller convention that no keywords means match all.
type TitlePredicate struct {
	keywords []string
}

// NewTitlePredicate builds the predicate from title keywords.
func NewTitlePredicate(keywords []string) *TitlePredicate {
	return &TitlePredicate{keywords: keywords}
}

func (*TitlePredicate) Name() string { return "title" }

func (p *TitlePredicate) Evaluate(_ context.Context, in Input) model.PredicateOutcome {
	if len(p.keywords) == 0 {
		return abstain()
	}
	titleLower := strings.ToLower(in.Job.Title)
	for _, kw := range p.keywords {
		if strings.Contains(titleLower, strings.ToLower(kw)) {
			return pass()
		}
	}
	return fail("title matches no keyword")
}

// CompanyPredicate hides jobs from blocked employers.
type CompanyPredicate struct {
	blocked []string
}

// NewCompanyPredicate builds the predicate from blocked employer names
// (case-insensitive exact match).
func NewCompanyPredicate(blocked []string) *CompanyPredicate {
	return &CompanyPredicate{blocked: blocked}
}

func (*CompanyPredicate) Name() string { return "company" }

func (p *CompanyPredicate) Evaluate(_ context.Context, in Input) model.PredicateOutcome {
	if len(p.blocked) == 0 {
		return abstain()
	}
	employer := strings.ToLower(strings.TrimSpace(in.Job.Employer))
	for _, b := range p.blocked {
		if employer == strings.ToLower(strings.TrimSpace(b)) {
			return fail("blocked company: " + in.Job.Employer)
		}
	}
	return pass()
}
