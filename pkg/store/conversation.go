package store

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Step identifies where a conversation currently sits in the guided
// requirement-gathering workflow.
type Step string

const (
	StepGreeting           Step = "greeting"
	StepInitialInput       Step = "initialInput"
	StepAwaitMissingInfo   Step = "awaitMissingInfo"
	StepAwaitAdditional    Step = "awaitAdditionalAndLatestSpecs"
	StepAwaitAdvancedSpecs Step = "awaitAdvancedSpecs"
	StepConfirmAfterInfo   Step = "confirmAfterMissingInfo"
	StepShowSummary        Step = "showSummary"
	StepFinalAnalysis      Step = "finalAnalysis"
	StepAnalysisError      Step = "analysisError"
	StepDefault            Step = "default"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFeedback  = "feedback"
)

// Message is a single entry in the conversation transcript.
type Message struct {
	ID        string                 `json:"id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Conversation holds the full mutable state of one advisory session.
// All access is serialized by the owning service; the struct itself is
// not safe for concurrent mutation.
type Conversation struct {
	SessionID     string                 `json:"session_id"`
	Step          Step                   `json:"step"`
	Messages      []Message              `json:"messages"`
	CollectedData map[string]interface{} `json:"collected_data"`
	ProductType   string                 `json:"product_type"`

	Validation *ValidationResult  `json:"validation,omitempty"`
	Schema     *RequirementSchema `json:"schema,omitempty"`

	AdvancedParameters     *AdvancedParameters `json:"advanced_parameters,omitempty"`
	SelectedAdvancedParams map[string]string   `json:"selected_advanced_params,omitempty"`

	Analysis *AnalysisResult `json:"analysis,omitempty"`

	// HasValidated is set the first time /validate succeeds for this
	// session so the backend can relax product-type detection on
	// follow-up calls.
	HasValidated bool `json:"has_validated"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidationAlert reports mandatory fields the user has not provided yet.
type ValidationAlert struct {
	Message       string   `json:"message"`
	MissingFields []string `json:"missingFields"`
}

// ValidationResult is the outcome of validating free-form requirement text.
type ValidationResult struct {
	ProductType          string                 `json:"productType"`
	ProvidedRequirements map[string]interface{} `json:"providedRequirements"`
	ValidationAlert      *ValidationAlert       `json:"validationAlert,omitempty"`
	IsComplete           bool                   `json:"isComplete"`
}

// RequirementSchema lists the known requirement fields for a product type.
type RequirementSchema struct {
	ProductType           string            `json:"productType"`
	MandatoryRequirements map[string]string `json:"mandatoryRequirements"`
	OptionalRequirements  map[string]string `json:"optionalRequirements"`
}

// ProductImage is one catalog or marketing image for a product.
type ProductImage struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Title     string `json:"title,omitempty"`
	Source    string `json:"source,omitempty"`
}

// VendorLogo is the brand mark shown next to a vendor match.
type VendorLogo struct {
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

// RankedProduct is one entry of the overall ranking produced by analysis.
type RankedProduct struct {
	Rank              int            `json:"rank"`
	ProductName       string         `json:"productName"`
	Vendor            string         `json:"vendor"`
	ModelFamily       string         `json:"modelFamily,omitempty"`
	ProductType       string         `json:"productType,omitempty"`
	OverallScore      float64        `json:"overallScore"`
	KeyStrengths      []string       `json:"keyStrengths,omitempty"`
	Concerns          []string       `json:"concerns,omitempty"`
	RequirementsMatch bool           `json:"requirementsMatch"`
	TopImage          *ProductImage  `json:"topImage,omitempty"`
	VendorLogo        *VendorLogo    `json:"vendorLogo,omitempty"`
	AllImages         []ProductImage `json:"allImages,omitempty"`
}

// VendorMatch is a per-vendor assessment inside an analysis result.
type VendorMatch struct {
	Vendor            string         `json:"vendor"`
	ProductName       string         `json:"productName"`
	ModelFamily       string         `json:"modelFamily,omitempty"`
	MatchScore        float64        `json:"matchScore"`
	RequirementsMatch bool           `json:"requirementsMatch"`
	Reasoning         string         `json:"reasoning,omitempty"`
	Limitations       []string       `json:"limitations,omitempty"`
	TopImage          *ProductImage  `json:"topImage,omitempty"`
	VendorLogo        *VendorLogo    `json:"vendorLogo,omitempty"`
	AllImages         []ProductImage `json:"allImages,omitempty"`
}

// VendorAnalysis groups the vendor-level matches.
type VendorAnalysis struct {
	VendorMatches []VendorMatch `json:"vendorMatches"`
}

// OverallRanking is the cross-vendor product ranking.
type OverallRanking struct {
	MarkdownAnalysis string          `json:"markdownAnalysis,omitempty"`
	RankedProducts   []RankedProduct `json:"rankedProducts"`
}

// AnalysisResult is the full output of a product analysis run.
type AnalysisResult struct {
	ProductType    string         `json:"productType"`
	VendorAnalysis VendorAnalysis `json:"vendorAnalysis"`
	OverallRanking OverallRanking `json:"overallRanking"`
}

// VendorParameters lists advanced parameters one vendor exposes.
type VendorParameters struct {
	Vendor     string   `json:"vendor"`
	Parameters []string `json:"parameters"`
}

// AdvancedParameters is the discovery result for vendor-specific
// advanced specification options.
type AdvancedParameters struct {
	ProductType           string             `json:"productType"`
	VendorParameters      []VendorParameters `json:"vendorParameters"`
	UniqueParameters      []string           `json:"uniqueParameters"`
	TotalVendorsSearched  int                `json:"totalVendorsSearched"`
	TotalUniqueParameters int                `json:"totalUniqueParameters"`
	Fallback              bool               `json:"fallback"`
}

// AdvancedSelection is the interpretation of a user's advanced-spec reply.
type AdvancedSelection struct {
	SelectedParameters map[string]string `json:"selectedParameters"`
	Explanation        string            `json:"explanation,omitempty"`
	FriendlyResponse   string            `json:"friendlyResponse,omitempty"`
	TotalSelected      int               `json:"totalSelected"`
}

// ProductImages is the image lookup result for one product.
type ProductImages struct {
	Vendor        string         `json:"vendor"`
	ProductType   string         `json:"productType"`
	ProductName   string         `json:"productName"`
	ModelFamilies []string       `json:"modelFamilies,omitempty"`
	TopImage      *ProductImage  `json:"topImage,omitempty"`
	VendorLogo    *VendorLogo    `json:"vendorLogo,omitempty"`
	AllImages     []ProductImage `json:"allImages,omitempty"`
	TotalFound    int            `json:"totalFound"`
	UniqueCount   int            `json:"uniqueCount"`
	BestCount     int            `json:"bestCount"`
	SearchSummary string         `json:"searchSummary,omitempty"`
}

var (
	idRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	idMu   sync.Mutex
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(n int) string {
	idMu.Lock()
	defer idMu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[idRand.Intn(len(idAlphabet))]
	}
	return string(b)
}

// NewSessionID generates an identifier for a new advisory session.
func NewSessionID() string {
	return fmt.Sprintf("search_%d_%s", time.Now().UnixMilli(), randomSuffix(9))
}

// NewMessage builds a transcript message with a fresh id and timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        fmt.Sprintf("%d%s", time.Now().UnixMilli(), randomSuffix(9)),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// UpdateMessage rewrites the content of an existing transcript message
// in place. Reports whether a message with the given id was found.
// Everything else about the transcript stays append-only.
func (c *Conversation) UpdateMessage(id, content string) bool {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages[i].Content = content
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// NewConversation initializes a session at the greeting step.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		SessionID:     NewSessionID(),
		Step:          StepGreeting,
		Messages:      []Message{},
		CollectedData: map[string]interface{}{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
