// Package workflow implements the guided requirement-gathering state
// machine: routing, confirmation parsing, and the transition reducer
// that is the only writer of conversation state.
package workflow

import (
	"time"

	"instrument-advisor-be/pkg/store"
)

// Event is a state transition applied to a conversation.
type Event interface {
	isEvent()
}

// MessageAdded appends a transcript message.
type MessageAdded struct {
	Message store.Message
}

// StepChanged moves the conversation to a new step.
type StepChanged struct {
	Step store.Step
}

// RequirementsValidated records the outcome of a validation round:
// the merged requirement data, the schema it was merged against, and
// the detected product type.
type RequirementsValidated struct {
	Validation  *store.ValidationResult
	Schema      *store.RequirementSchema
	Merged      map[string]interface{}
	ProductType string
}

// AdvancedDiscovered stores the advanced parameter catalog for the
// current product type.
type AdvancedDiscovered struct {
	Parameters *store.AdvancedParameters
}

// AdvancedSelected merges a round of advanced parameter choices into
// the collected data.
type AdvancedSelected struct {
	Selection *store.AdvancedSelection
}

// AnalysisCompleted stores a finished analysis result. A failed run
// deliberately has no event: the previous result stays visible and only
// the step moves to the error state.
type AnalysisCompleted struct {
	Result *store.AnalysisResult
}

func (MessageAdded) isEvent()          {}
func (StepChanged) isEvent()           {}
func (RequirementsValidated) isEvent() {}
func (AdvancedDiscovered) isEvent()    {}
func (AdvancedSelected) isEvent()      {}
func (AnalysisCompleted) isEvent()     {}

// Apply mutates the conversation according to the event. It is total:
// unknown events leave the state untouched. Collected data only grows;
// no event removes previously gathered fields.
func Apply(c *store.Conversation, ev Event) {
	switch e := ev.(type) {
	case MessageAdded:
		c.Messages = append(c.Messages, e.Message)
	case StepChanged:
		c.Step = e.Step
	case RequirementsValidated:
		c.Validation = e.Validation
		if e.Schema != nil {
			c.Schema = e.Schema
		}
		if e.Merged != nil {
			c.CollectedData = e.Merged
		}
		if e.ProductType != "" {
			c.ProductType = e.ProductType
			c.CollectedData["productType"] = e.ProductType
		}
		c.HasValidated = true
	case AdvancedDiscovered:
		c.AdvancedParameters = e.Parameters
	case AdvancedSelected:
		if e.Selection == nil || e.Selection.TotalSelected <= 0 {
			return
		}
		if c.SelectedAdvancedParams == nil {
			c.SelectedAdvancedParams = map[string]string{}
		}
		for k, v := range e.Selection.SelectedParameters {
			c.CollectedData[k] = v
			c.SelectedAdvancedParams[k] = v
		}
	case AnalysisCompleted:
		c.Analysis = e.Result
	}
	c.UpdatedAt = time.Now()
}
