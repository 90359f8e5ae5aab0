package workflow

import "instrument-advisor-be/pkg/store"

// Intents recognized by the backend classifier.
const (
	IntentGreeting            = "greeting"
	IntentProductRequirements = "productRequirements"
	IntentKnowledgeQuestion   = "knowledgeQuestion"
	IntentWorkflow            = "workflow"
	IntentChitchat            = "chitchat"
	IntentOther               = "other"
)

// Classification is the routing decision for one user message.
type Classification struct {
	Intent         string
	NextStep       store.Step
	ResumeWorkflow bool
}

// FallbackClassification is used when the classifier endpoint is
// unreachable so the conversation can continue at its current step.
func FallbackClassification() Classification {
	return Classification{Intent: IntentOther}
}

// entryStep reports whether products requirements stated at this step
// should restart the gathering flow from initialInput.
func entryStep(s store.Step) bool {
	return s == store.StepGreeting || s == store.StepInitialInput || s == store.StepDefault
}

// Route resolves the step that should handle the current message.
// A classifier-suggested step wins; otherwise the conversation stays
// where it is, except that fresh product requirements voiced at an
// entry step restart the gathering flow.
func Route(current store.Step, c Classification) store.Step {
	target := current
	if c.NextStep != "" {
		target = c.NextStep
	}
	if c.Intent == IntentProductRequirements {
		if entryStep(current) {
			return store.StepInitialInput
		}
		return current
	}
	return target
}
