// Package recommender is the HTTP client for the instrumentation
// recommendation backend. Responses arrive with mixed snake_case and
// camelCase keys; every decode path normalizes keys first so callers
// only ever see camelCase fields.
package recommender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"instrument-advisor-be/pkg/store"
)

const defaultTimeout = 90 * time.Second

// FallbackReply is returned when response generation is unreachable so
// the conversation can degrade gracefully instead of failing the turn.
const FallbackReply = "I'm having trouble connecting to my brain right now. Please try again in a moment."

// Client talks to the recommendation backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	schemas    *SchemaCache
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSchemaCache enables Redis-backed caching of requirement schemas.
func WithSchemaCache(sc *SchemaCache) Option {
	return func(c *Client) { c.schemas = sc }
}

// WithLogger overrides the client's logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if jsonErr := json.Unmarshal(data, &eb); jsonErr == nil && eb.Error != "" {
			return nil, fmt.Errorf("%s", eb.Error)
		}
		return nil, fmt.Errorf("%s returned status %d", req.URL.Path, resp.StatusCode)
	}
	return data, nil
}

// InitializeSearch tells the backend to reset server-side state for the
// session. Failures are logged and swallowed; a new search proceeds
// regardless.
func (c *Client) InitializeSearch(ctx context.Context, sessionID string) {
	_, err := c.post(ctx, "/new-search", map[string]interface{}{
		"search_session_id": sessionID,
		"reset":             true,
	})
	if err != nil {
		c.logger.Printf("[recommender] new-search init failed for %s: %v", sessionID, err)
	}
}

// Validate checks requirement text for completeness and returns the
// detected product type plus any missing mandatory fields.
func (c *Client) Validate(ctx context.Context, p ValidateParams) (*store.ValidationResult, error) {
	payload := map[string]interface{}{
		"user_input": NormalizeInput(p.Input),
		"is_repeat":  p.IsRepeat,
		"reset":      false,
	}
	if p.ProductType != "" {
		payload["product_type"] = p.ProductType
	}
	if p.SessionID != "" {
		payload["search_session_id"] = p.SessionID
	}

	data, err := c.post(ctx, "/validate", payload)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	var result store.ValidationResult
	if err := decodeCamel(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode validation result: %w", err)
	}
	return &result, nil
}

// Analyze runs the full product analysis. The input is sent verbatim;
// the analysis model needs the original numbers, units and punctuation.
func (c *Client) Analyze(ctx context.Context, userInput string) (*store.AnalysisResult, error) {
	data, err := c.post(ctx, "/analyze", map[string]interface{}{"user_input": userInput})
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	var result store.AnalysisResult
	if err := decodeCamel(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis result: %w", err)
	}
	return &result, nil
}

// Schema fetches the requirement schema for a product type. An empty
// product type short-circuits with an empty schema.
func (c *Client) Schema(ctx context.Context, productType string) (*store.RequirementSchema, error) {
	if productType == "" {
		return &store.RequirementSchema{
			MandatoryRequirements: map[string]string{},
			OptionalRequirements:  map[string]string{},
		}, nil
	}
	if c.schemas != nil {
		if cached, ok := c.schemas.Get(ctx, productType); ok {
			return cached, nil
		}
	}

	data, err := c.get(ctx, "/schema", url.Values{"product_type": {productType}})
	if err != nil {
		return nil, fmt.Errorf("schema fetch failed: %w", err)
	}
	var schema store.RequirementSchema
	if err := decodeCamel(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if c.schemas != nil {
		c.schemas.Set(ctx, productType, &schema)
	}
	return &schema, nil
}

// StructureRequirements asks the backend to restate collected data as a
// readable requirement summary.
func (c *Client) StructureRequirements(ctx context.Context, fullInput string) (string, error) {
	data, err := c.post(ctx, "/structure_requirements", map[string]interface{}{
		"full_input": NormalizeInput(fullInput),
	})
	if err != nil {
		return "", fmt.Errorf("requirement structuring failed: %w", err)
	}
	var out struct {
		StructuredRequirements string `json:"structuredRequirements"`
	}
	if err := decodeCamel(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode structured requirements: %w", err)
	}
	return out.StructuredRequirements, nil
}

// ClassifyIntent routes a message to an intent and optional next step.
// Unreachable classifier degrades to the "other" intent.
func (c *Client) ClassifyIntent(ctx context.Context, userInput, sessionID string) *IntentResult {
	payload := map[string]interface{}{"userInput": userInput}
	if sessionID != "" {
		payload["search_session_id"] = sessionID
	}

	data, err := c.post(ctx, "/api/intent", payload)
	if err != nil {
		c.logger.Printf("[recommender] intent classification failed: %v", err)
		return &IntentResult{Intent: "other"}
	}
	var result IntentResult
	if err := decodeCamel(data, &result); err != nil {
		c.logger.Printf("[recommender] intent decode failed: %v", err)
		return &IntentResult{Intent: "other"}
	}
	return &result
}

// GenerateReply produces the assistant answer for a workflow step.
// Unreachable generation degrades to a canned apology so the turn still
// completes.
func (c *Client) GenerateReply(ctx context.Context, p ReplyParams) *Reply {
	payload := map[string]interface{}{
		"step":        p.Step,
		"dataContext": p.DataContext,
		"userMessage": p.UserMessage,
		"intent":      p.Intent,
	}
	if p.SessionID != "" {
		payload["search_session_id"] = p.SessionID
	}

	data, err := c.post(ctx, "/api/sales-agent", payload)
	if err != nil {
		c.logger.Printf("[recommender] reply generation failed: %v", err)
		return &Reply{Content: FallbackReply}
	}
	var reply Reply
	if err := decodeCamel(data, &reply); err != nil {
		c.logger.Printf("[recommender] reply decode failed: %v", err)
		return &Reply{Content: FallbackReply}
	}
	return &reply
}

// DiscoverAdvancedParameters looks up vendor-specific advanced options
// for a product type.
func (c *Client) DiscoverAdvancedParameters(ctx context.Context, productType, sessionID string) (*store.AdvancedParameters, error) {
	payload := map[string]interface{}{"product_type": productType}
	if sessionID != "" {
		payload["search_session_id"] = sessionID
	}

	data, err := c.post(ctx, "/api/advanced_parameters", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to discover advanced parameters: %w", err)
	}
	var result store.AdvancedParameters
	if err := decodeCamel(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode advanced parameters: %w", err)
	}
	return &result, nil
}

// SelectAdvancedParameters interprets the user's reply against the
// available advanced parameters.
func (c *Client) SelectAdvancedParameters(ctx context.Context, productType, userInput string, available []string) (*store.AdvancedSelection, error) {
	data, err := c.post(ctx, "/api/add_advanced_parameters", map[string]interface{}{
		"product_type":         productType,
		"user_input":           userInput,
		"available_parameters": available,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process advanced parameters: %w", err)
	}
	var result store.AdvancedSelection
	if err := decodeCamel(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode advanced selection: %w", err)
	}
	return &result, nil
}

// ProductImages fetches catalog images and the vendor logo for one
// analyzed product.
func (c *Client) ProductImages(ctx context.Context, p ImageParams) (*store.ProductImages, error) {
	data, err := c.post(ctx, "/api/get_analysis_product_images", map[string]interface{}{
		"vendor":         p.Vendor,
		"product_type":   p.ProductType,
		"product_name":   p.ProductName,
		"model_families": p.ModelFamilies,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product images: %w", err)
	}
	var result store.ProductImages
	if err := decodeCamel(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode product images: %w", err)
	}
	return &result, nil
}

// Feedback submits an analysis rating and returns the generated
// acknowledgement text.
func (c *Client) Feedback(ctx context.Context, p FeedbackParams) (string, error) {
	payload := map[string]interface{}{
		"feedbackType": p.Type,
		"comment":      p.Comment,
	}
	if p.ProjectID != "" {
		payload["projectId"] = p.ProjectID
	}

	data, err := c.post(ctx, "/api/feedback", payload)
	if err != nil {
		return "", fmt.Errorf("feedback submission failed: %w", err)
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := decodeCamel(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode feedback response: %w", err)
	}
	return out.Response, nil
}
