// Package population describes how the sample server address space is
// built: the event catalog, the area/source tree, the condition instances and
// the item set, as an ordered list of named steps.
//
// A Plan does not run itself; the lifecycle controller executes the steps in
// order and stops at the first failure without undoing earlier steps.
package population

import (
	"context"
	"math/rand"
	"time"

	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/items"
)

// Target is what a population step builds into.
type Target struct {
	Model *alarms.Model
	Store *items.Store
}

// StepFunc performs one population step.
type StepFunc func(ctx context.Context, t *Target) error

// Step is a named unit of population work.
type Step struct {
	Name string
	Run  StepFunc
}

// Standard step names, in execution order.
const (
	StepCategories    = "categories"
	StepAttributes    = "attributes"
	StepDefinitions   = "condition_definitions"
	StepSubConditions = "sub_conditions"
	StepAreas         = "areas"
	StepSources       = "sources"
	StepConditions    = "conditions"
	StepItems         = "items"
	StepSpecialItems  = "conformance_items"
	StepMassItems     = "mass_items"
)

// Config tunes the item part of the sample plan.
type Config struct {
	// MassItemLoops is the number of MassItems batches. Default: 100
	MassItemLoops int
	// BatchDelay is the pause after each mass array batch. The pause is
	// interrupted by context cancellation. Default: 10ms
	BatchDelay time.Duration
	// Seed drives the pseudo-random array samples.
	Seed int64
}

// DefaultConfig returns the sample plan defaults.
func DefaultConfig() Config {
	return Config{MassItemLoops: 100, BatchDelay: 10 * time.Millisecond, Seed: 1}
}

// Plan is an ordered list of steps.
type Plan struct {
	steps []Step
}

// NewPlan returns a plan running steps in the given order.
func NewPlan(steps ...Step) *Plan {
	return &Plan{steps: append([]Step(nil), steps...)}
}

// Steps returns a copy of the steps in execution order.
func (p *Plan) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// Len returns the number of steps.
func (p *Plan) Len() int { return len(p.steps) }

// Insert returns a new plan with s placed before index i. An index past the
// end appends.
func (p *Plan) Insert(i int, s Step) *Plan {
	if i < 0 {
		i = 0
	}
	if i > len(p.steps) {
		i = len(p.steps)
	}
	steps := make([]Step, 0, len(p.steps)+1)
	steps = append(steps, p.steps[:i]...)
	steps = append(steps, s)
	steps = append(steps, p.steps[i:]...)
	return &Plan{steps: steps}
}

type builder struct {
	cfg    Config
	target *Target
	rng    *rand.Rand
}

// Sample returns the plan for the sample address space. The builder's
// random source is reset for every Run, so two runs of the same plan create
// identical values.
func Sample(cfg Config) *Plan {
	b := &builder{cfg: cfg}
	itemStep := func(name string, fn func(*builder, context.Context) error) Step {
		return Step{Name: name, Run: func(ctx context.Context, t *Target) error {
			b.target = t
			if b.rng == nil || name == StepItems {
				b.rng = rand.New(rand.NewSource(cfg.Seed))
			}
			return fn(b, ctx)
		}}
	}

	return NewPlan(
		Step{Name: StepCategories, Run: defineCategories},
		Step{Name: StepAttributes, Run: addAttributes},
		Step{Name: StepDefinitions, Run: defineConditions},
		Step{Name: StepSubConditions, Run: addSubConditions},
		Step{Name: StepAreas, Run: addAreas},
		Step{Name: StepSources, Run: addSources},
		Step{Name: StepConditions, Run: instantiateConditions},
		itemStep(StepItems, (*builder).addSimulatedItems),
		itemStep(StepSpecialItems, (*builder).addConformanceItems),
		itemStep(StepMassItems, (*builder).addMassItems),
	)
}
