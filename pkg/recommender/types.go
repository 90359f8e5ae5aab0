package recommender

// Reply is the generated assistant answer for one workflow turn.
type Reply struct {
	Content          string `json:"content"`
	NextStep         string `json:"nextStep,omitempty"`
	MaintainWorkflow bool   `json:"maintainWorkflow"`
}

// IntentResult is the raw classifier answer before routing.
type IntentResult struct {
	Intent         string `json:"intent"`
	NextStep       string `json:"nextStep,omitempty"`
	ResumeWorkflow bool   `json:"resumeWorkflow"`
}

// ValidateParams carries one validation request.
type ValidateParams struct {
	Input       string
	ProductType string
	SessionID   string
	// IsRepeat tells the backend this session already passed a first
	// validation, so product-type detection can be relaxed.
	IsRepeat bool
}

// ReplyParams carries one response-generation request.
type ReplyParams struct {
	Step        string
	DataContext map[string]interface{}
	UserMessage string
	Intent      string
	SessionID   string
}

// FeedbackParams carries a thumbs up/down rating and optional comment
// on a finished analysis.
type FeedbackParams struct {
	// Type is "positive", "negative", or empty when only a comment is
	// submitted.
	Type      string
	Comment   string
	ProjectID string
}

// ImageParams identifies the product whose images should be fetched.
type ImageParams struct {
	Vendor        string
	ProductType   string
	ProductName   string
	ModelFamilies []string
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
