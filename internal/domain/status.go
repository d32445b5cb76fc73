package domain

import "fmt"

// mmmTransitions is the closed set of legal status moves. Training owns the
// draft→training→trained/error path; the lifecycle operations below cover the
// rest. Archived is terminal.
var mmmTransitions = map[MMMStatus][]MMMStatus{
	MMMDraft:     {MMMTraining},
	MMMTraining:  {MMMTrained, MMMError},
	MMMTrained:   {MMMValidated, MMMDeployed, MMMArchived, MMMTraining},
	MMMValidated: {MMMDeployed, MMMArchived, MMMTraining},
	MMMDeployed:  {MMMArchived},
	MMMError:     {MMMDraft, MMMArchived},
	MMMArchived:  {},
}

// CanTransition reports whether moving from s to next is legal
func (s MMMStatus) CanTransition(next MMMStatus) bool {
	for _, t := range mmmTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Transition moves the model to next or fails with ErrBadTransition
func (m *MarketingMixModel) Transition(next MMMStatus) error {
	if !m.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, m.Status, next)
	}
	m.Status = next
	return nil
}

// Validate marks a trained model as validated
func (m *MarketingMixModel) Validate() error { return m.Transition(MMMValidated) }

// Deploy marks a trained or validated model as deployed
func (m *MarketingMixModel) Deploy() error { return m.Transition(MMMDeployed) }

// Archive retires the model; archived models never serve again
func (m *MarketingMixModel) Archive() error { return m.Transition(MMMArchived) }
