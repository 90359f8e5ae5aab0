package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"instrument-advisor-be/internal/dto"
	"instrument-advisor-be/internal/pkg/logger"
	"instrument-advisor-be/internal/repository/memory"
	"instrument-advisor-be/pkg/analysis"
	"instrument-advisor-be/pkg/events"
	"instrument-advisor-be/pkg/recommender"
	"instrument-advisor-be/pkg/requirements"
	"instrument-advisor-be/pkg/store"
	"instrument-advisor-be/pkg/workflow"
)

var (
	ErrEmptyMessage    = errors.New("message must not be empty")
	ErrSessionNotFound = errors.New("session not found")
)

// IRecommenderClient is the slice of the recommendation backend the
// conversation workflow depends on.
type IRecommenderClient interface {
	InitializeSearch(ctx context.Context, sessionID string)
	Validate(ctx context.Context, p recommender.ValidateParams) (*store.ValidationResult, error)
	Schema(ctx context.Context, productType string) (*store.RequirementSchema, error)
	StructureRequirements(ctx context.Context, fullInput string) (string, error)
	ClassifyIntent(ctx context.Context, userInput, sessionID string) *recommender.IntentResult
	GenerateReply(ctx context.Context, p recommender.ReplyParams) *recommender.Reply
	DiscoverAdvancedParameters(ctx context.Context, productType, sessionID string) (*store.AdvancedParameters, error)
	SelectAdvancedParameters(ctx context.Context, productType, userInput string, available []string) (*store.AdvancedSelection, error)
	Feedback(ctx context.Context, p recommender.FeedbackParams) (string, error)
}

// IAnalysisRunner executes a full product analysis run.
type IAnalysisRunner interface {
	Run(ctx context.Context, userInput string) (*analysis.Outcome, error)
}

// IEventPublisher pushes domain events onto the bus.
type IEventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IConversationService interface {
	StartSession(ctx context.Context) (*dto.StartConversationResponse, error)
	SendMessage(ctx context.Context, sessionID, input string) (*dto.SendMessageResponse, error)
	GetConversation(ctx context.Context, sessionID string) (*dto.ConversationResponse, error)
	SubmitFeedback(ctx context.Context, sessionID string, req dto.FeedbackRequest) (*dto.FeedbackResponse, error)
	EndSession(ctx context.Context, sessionID string) error
}

type conversationService struct {
	sessions  *memory.SessionRepository
	rec       IRecommenderClient
	runner    IAnalysisRunner
	bus       IEventPublisher
	archiver  IPublisherService
	logger    logger.ILogger
	turnLocks sync.Map // sessionID -> *sync.Mutex
}

func NewConversationService(
	sessions *memory.SessionRepository,
	rec IRecommenderClient,
	runner IAnalysisRunner,
	bus IEventPublisher,
	archiver IPublisherService,
	log logger.ILogger,
) IConversationService {
	return &conversationService{
		sessions: sessions,
		rec:      rec,
		runner:   runner,
		bus:      bus,
		archiver: archiver,
		logger:   log,
	}
}

// turn accumulates what one SendMessage call produced.
type turn struct {
	conv     *store.Conversation
	replies  []store.Message
	analysis *dto.AnalysisPayload
}

func (s *conversationService) lockFor(sessionID string) *sync.Mutex {
	mu, _ := s.turnLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *conversationService) StartSession(ctx context.Context) (*dto.StartConversationResponse, error) {
	conv := store.NewConversation()
	s.sessions.Save(conv)

	// Best effort; the session works even if the backend reset fails.
	s.rec.InitializeSearch(ctx, conv.SessionID)
	s.publish(events.NewSessionStarted(conv.SessionID))

	s.logger.Info("ConversationService", "Session started", map[string]interface{}{"session_id": conv.SessionID})
	return &dto.StartConversationResponse{
		SessionID: conv.SessionID,
		Step:      conv.Step,
		CreatedAt: conv.CreatedAt,
	}, nil
}

func (s *conversationService) GetConversation(ctx context.Context, sessionID string) (*dto.ConversationResponse, error) {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	conv, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	resp := &dto.ConversationResponse{
		SessionID:     conv.SessionID,
		Step:          conv.Step,
		Messages:      dto.ToMessageResponses(conv.Messages),
		CollectedData: conv.CollectedData,
		ProductType:   conv.ProductType,
		CreatedAt:     conv.CreatedAt,
		UpdatedAt:     conv.UpdatedAt,
	}
	if conv.Analysis != nil {
		resp.Analysis = &dto.AnalysisPayload{Result: conv.Analysis}
	}
	return resp, nil
}

func (s *conversationService) EndSession(ctx context.Context, sessionID string) error {
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if _, ok := s.sessions.Get(sessionID); !ok {
		return ErrSessionNotFound
	}

	if s.archiver != nil {
		err := s.archiver.PublishSessionArchive(ctx, dto.ArchiveSessionMessage{
			SessionID: sessionID,
			Ephemeral: true,
		})
		if err == nil {
			// The consumer removes the session once the snapshot is stored.
			return nil
		}
		s.logger.Warn("ConversationService", "Archive publish failed, dropping session directly", map[string]interface{}{
			"session_id": sessionID, "error": err.Error(),
		})
	}
	s.sessions.Delete(sessionID)
	return nil
}

// SubmitFeedback forwards an analysis rating to the backend and records
// the generated acknowledgement in the transcript as a feedback message.
func (s *conversationService) SubmitFeedback(ctx context.Context, sessionID string, req dto.FeedbackRequest) (*dto.FeedbackResponse, error) {
	comment := strings.TrimSpace(req.Comment)
	if req.Type == "" && comment == "" {
		return nil, ErrEmptyMessage
	}

	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	conv, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	ack, err := s.rec.Feedback(ctx, recommender.FeedbackParams{
		Type:    req.Type,
		Comment: comment,
	})
	if err != nil {
		s.logger.Error("ConversationService", "Feedback submission failed", map[string]interface{}{
			"session_id": sessionID, "error": err.Error(),
		})
		return nil, err
	}

	msg := store.NewMessage(store.RoleFeedback, ack)
	workflow.Apply(conv, workflow.MessageAdded{Message: msg})
	s.sessions.Save(conv)

	return &dto.FeedbackResponse{SessionID: sessionID, Reply: dto.ToMessageResponse(msg)}, nil
}

// SendMessage runs one full workflow turn. Turns on the same session
// are strictly serialized; concurrent calls queue on the session lock.
func (s *conversationService) SendMessage(ctx context.Context, sessionID, input string) (*dto.SendMessageResponse, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}

	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	conv, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	originalStep := conv.Step

	t := &turn{conv: conv}
	workflow.Apply(conv, workflow.MessageAdded{Message: store.NewMessage(store.RoleUser, trimmed)})

	intentRes := s.rec.ClassifyIntent(ctx, trimmed, sessionID)
	cls := workflow.Classification{
		Intent:         intentRes.Intent,
		NextStep:       store.Step(intentRes.NextStep),
		ResumeWorkflow: intentRes.ResumeWorkflow,
	}
	s.logger.Debug("ConversationService", "Message classified", map[string]interface{}{
		"session_id": sessionID, "intent": cls.Intent, "next_step": cls.NextStep, "step": originalStep,
	})

	// Knowledge questions interrupt the workflow without moving it.
	if cls.Intent == workflow.IntentKnowledgeQuestion {
		reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
			Step: string(conv.Step),
			DataContext: map[string]interface{}{
				"productType":   conv.ProductType,
				"collectedData": conv.CollectedData,
			},
			UserMessage: trimmed,
			Intent:      cls.Intent,
			SessionID:   sessionID,
		})
		s.say(t, reply.Content)
		return s.finish(t), nil
	}

	// A classifier-detected summary request goes straight to structuring
	// and analysis. Failures fall back to the regular dispatch below.
	if cls.NextStep == store.StepShowSummary {
		if done := s.directSummary(ctx, t); done {
			return s.finish(t), nil
		}
	}

	switch workflow.Route(originalStep, cls) {
	case store.StepGreeting:
		s.handleGreeting(ctx, t, trimmed)
	case store.StepInitialInput:
		s.handleInitialInput(ctx, t, trimmed, originalStep)
	case store.StepAwaitAdditional:
		s.handleAdditionalSpecs(ctx, t, trimmed)
	case store.StepAwaitAdvancedSpecs:
		s.handleAdvancedSpecs(ctx, t, trimmed)
	case store.StepShowSummary:
		if workflow.WantsAnalysis(trimmed) {
			s.performAnalysis(ctx, t)
		}
	case store.StepFinalAnalysis:
		if workflow.WantsRerun(trimmed) {
			s.performAnalysis(ctx, t)
		}
	case store.StepAnalysisError:
		s.handleAnalysisError(ctx, t, trimmed)
	default:
		if originalStep == store.StepAwaitMissingInfo {
			s.handleMissingInfo(ctx, t, trimmed)
		} else {
			reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
				Step: string(store.StepDefault), DataContext: map[string]interface{}{},
				UserMessage: trimmed, SessionID: sessionID,
			})
			s.say(t, reply.Content)
		}
	}

	return s.finish(t), nil
}

func (s *conversationService) handleGreeting(ctx context.Context, t *turn, input string) {
	reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
		Step:        string(store.StepGreeting),
		DataContext: map[string]interface{}{},
		UserMessage: input,
		SessionID:   t.conv.SessionID,
	})
	s.say(t, reply.Content)
	s.setStep(t, store.StepInitialInput)
}

func (s *conversationService) handleInitialInput(ctx context.Context, t *turn, input string, originalStep store.Step) {
	conv := t.conv

	validation, err := s.rec.Validate(ctx, recommender.ValidateParams{
		Input:     input,
		SessionID: conv.SessionID,
		IsRepeat:  conv.HasValidated || originalStep == store.StepAwaitMissingInfo,
	})
	if err != nil {
		s.failInitialInput(ctx, t, err)
		return
	}

	if validation.ProductType == "" {
		reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
			Step: string(store.StepInitialInput), DataContext: map[string]interface{}{},
			UserMessage: "No product type detected.", SessionID: conv.SessionID,
		})
		s.say(t, reply.Content)
		s.setStep(t, store.StepInitialInput)
		return
	}

	schema, err := s.rec.Schema(ctx, validation.ProductType)
	if err != nil {
		s.failInitialInput(ctx, t, err)
		return
	}

	flat := requirements.Flatten(validation.ProvidedRequirements)
	merged := requirements.MergeWithSchema(flat, schema)

	if validation.ValidationAlert != nil {
		workflow.Apply(conv, workflow.RequirementsValidated{
			Validation:  validation,
			Schema:      schema,
			Merged:      merged,
			ProductType: validation.ProductType,
		})
		s.say(t, validation.ValidationAlert.Message)
		s.setStep(t, store.StepAwaitMissingInfo)
		return
	}

	reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
		Step: "initialInputWithSpecs",
		DataContext: map[string]interface{}{
			"productType":  validation.ProductType,
			"requirements": flat,
		},
		UserMessage: fmt.Sprintf("Product type detected: %s. All mandatory requirements provided.", validation.ProductType),
		SessionID:   conv.SessionID,
	})
	workflow.Apply(conv, workflow.RequirementsValidated{
		Validation:  validation,
		Schema:      schema,
		Merged:      merged,
		ProductType: validation.ProductType,
	})
	s.say(t, reply.Content)
	s.advance(ctx, t, store.Step(reply.NextStep), store.StepAwaitAdditional)
}

func (s *conversationService) failInitialInput(ctx context.Context, t *turn, err error) {
	s.logger.Error("ConversationService", "Initial input processing failed", map[string]interface{}{
		"session_id": t.conv.SessionID, "error": err.Error(),
	})
	reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
		Step: string(store.StepDefault), DataContext: map[string]interface{}{},
		UserMessage: "Error during initial processing.", SessionID: t.conv.SessionID,
	})
	s.say(t, reply.Content)
	s.setStep(t, store.StepInitialInput)
}

func (s *conversationService) handleAdditionalSpecs(ctx context.Context, t *turn, input string) {
	conv := t.conv

	// The backend owns the yes/no logic at this step; it answers with
	// the transition to take.
	reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
		Step: string(store.StepAwaitAdditional),
		DataContext: map[string]interface{}{
			"productType":   conv.ProductType,
			"collectedData": conv.CollectedData,
		},
		UserMessage: input,
		SessionID:   conv.SessionID,
	})

	switch next := store.Step(reply.NextStep); next {
	case store.StepAwaitAdvancedSpecs:
		s.say(t, reply.Content)
		s.advance(ctx, t, next, next)
	case store.StepShowSummary:
		s.say(t, reply.Content)
		s.setStep(t, store.StepShowSummary)
		s.showSummaryAndProceed(ctx, t, true)
	case "":
		s.say(t, reply.Content)
		s.setStep(t, store.StepAwaitAdditional)
	default:
		s.say(t, reply.Content)
		s.setStep(t, next)
	}
}

func (s *conversationService) handleAdvancedSpecs(ctx context.Context, t *turn, input string) {
	conv := t.conv

	dataContext := map[string]interface{}{"productType": conv.ProductType}

	if conv.AdvancedParameters != nil {
		selection, err := s.rec.SelectAdvancedParameters(ctx, conv.ProductType, input, conv.AdvancedParameters.UniqueParameters)
		if err != nil {
			s.logger.Error("ConversationService", "Advanced parameter selection failed", map[string]interface{}{
				"session_id": conv.SessionID, "error": err.Error(),
			})
			reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
				Step: string(store.StepAwaitAdvancedSpecs), DataContext: map[string]interface{}{},
				UserMessage: "Error processing advanced parameters.", SessionID: conv.SessionID,
			})
			s.say(t, reply.Content)
			return
		}
		workflow.Apply(conv, workflow.AdvancedSelected{Selection: selection})

		dataContext["selectedParameters"] = selection.SelectedParameters
		dataContext["totalSelected"] = selection.TotalSelected
		dataContext["availableParameters"] = conv.AdvancedParameters.UniqueParameters
	}

	reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
		Step:        string(store.StepAwaitAdvancedSpecs),
		DataContext: dataContext,
		UserMessage: input,
		SessionID:   conv.SessionID,
	})
	s.say(t, reply.Content)

	switch next := store.Step(reply.NextStep); next {
	case store.StepShowSummary:
		s.setStep(t, store.StepShowSummary)
		// An empty reply means the backend already signalled to proceed.
		introAlreadyStreamed := strings.TrimSpace(reply.Content) == ""
		s.showSummaryAndProceed(ctx, t, introAlreadyStreamed)
	case "":
	default:
		s.setStep(t, next)
	}
}

func (s *conversationService) handleAnalysisError(ctx context.Context, t *turn, input string) {
	if workflow.IsRerunCommand(input) {
		s.performAnalysis(ctx, t)
		return
	}
	reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
		Step: string(store.StepAnalysisError), DataContext: map[string]interface{}{},
		UserMessage: "Please type 'rerun' to try again.", SessionID: t.conv.SessionID,
	})
	s.say(t, reply.Content)
}

func (s *conversationService) handleMissingInfo(ctx context.Context, t *turn, input string) {
	conv := t.conv

	switch workflow.ClassifyAffirmation(input) {
	case workflow.AffirmYes:
		reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
			Step: string(store.StepConfirmAfterInfo),
			DataContext: map[string]interface{}{
				"productType":   conv.ProductType,
				"collectedData": conv.CollectedData,
			},
			UserMessage: "User confirmed to proceed without providing missing mandatory fields.",
			SessionID:   conv.SessionID,
		})
		s.say(t, reply.Content)
		s.setStep(t, store.StepAwaitAdditional)

	case workflow.AffirmNo:
		var missing []string
		if conv.Validation != nil && conv.Validation.ValidationAlert != nil {
			missing = conv.Validation.ValidationAlert.MissingFields
		}
		formatted := formatFieldList(missing)
		reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
			Step: "askForMissingFields",
			DataContext: map[string]interface{}{
				"productType":       conv.ProductType,
				"missingFields":     formatted,
				"missingFieldsList": missing,
			},
			UserMessage: fmt.Sprintf("User wants to provide missing fields: %s", formatted),
			SessionID:   conv.SessionID,
		})
		s.say(t, reply.Content)
		s.setStep(t, store.StepAwaitMissingInfo)

	default:
		s.revalidateWithInput(ctx, t, input)
	}
}

// revalidateWithInput folds fresh free-form input into the collected
// data and checks whether the mandatory fields are satisfied now.
func (s *conversationService) revalidateWithInput(ctx context.Context, t *turn, input string) {
	conv := t.conv

	combined := requirements.Compose(conv.CollectedData) + " " + input
	productType := conv.ProductType
	if conv.Validation != nil && conv.Validation.ProductType != "" {
		productType = conv.Validation.ProductType
	}

	validation, err := s.rec.Validate(ctx, recommender.ValidateParams{
		Input:       combined,
		ProductType: productType,
		SessionID:   conv.SessionID,
		IsRepeat:    true,
	})
	if err != nil {
		s.logger.Error("ConversationService", "Revalidation failed", map[string]interface{}{
			"session_id": conv.SessionID, "error": err.Error(),
		})
		reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
			Step: string(store.StepDefault), DataContext: map[string]interface{}{},
			UserMessage: "Error processing your input.", SessionID: conv.SessionID,
		})
		s.say(t, reply.Content)
		return
	}

	flat := requirements.Flatten(validation.ProvidedRequirements)
	combinedData := make(map[string]interface{}, len(conv.CollectedData)+len(flat))
	for k, v := range conv.CollectedData {
		combinedData[k] = v
	}
	for k, v := range flat {
		combinedData[k] = v
	}
	merged := requirements.MergeWithSchema(combinedData, conv.Schema)

	workflow.Apply(conv, workflow.RequirementsValidated{
		Validation:  validation,
		Merged:      merged,
		ProductType: validation.ProductType,
	})

	if validation.ValidationAlert != nil {
		s.say(t, validation.ValidationAlert.Message)
		s.setStep(t, store.StepAwaitMissingInfo)
		return
	}

	reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
		Step: string(store.StepConfirmAfterInfo),
		DataContext: map[string]interface{}{
			"productType":   conv.ProductType,
			"collectedData": merged,
		},
		UserMessage: "All mandatory requirements provided.",
		SessionID:   conv.SessionID,
	})
	s.say(t, reply.Content)
	s.advance(ctx, t, store.Step(reply.NextStep), store.StepAwaitAdditional)
}

// directSummary is the shortcut taken when the classifier itself says
// the user asked for the summary. Returns false when the regular
// dispatch should run instead.
func (s *conversationService) directSummary(ctx context.Context, t *turn) bool {
	conv := t.conv
	if len(conv.CollectedData) == 0 {
		return false
	}
	s.setStep(t, store.StepShowSummary)

	structured, err := s.structure(ctx, conv)
	if err != nil {
		s.logger.Warn("ConversationService", "Direct summary failed, using regular dispatch", map[string]interface{}{
			"session_id": conv.SessionID, "error": err.Error(),
		})
		return false
	}
	s.say(t, fmt.Sprintf("\n\n%s\n\n", structured))
	s.performAnalysis(ctx, t)
	return true
}

func (s *conversationService) structure(ctx context.Context, conv *store.Conversation) (string, error) {
	requirementsOnly := requirements.WithoutProductType(conv.CollectedData)
	return s.rec.StructureRequirements(ctx, requirements.Compose(requirementsOnly))
}

func (s *conversationService) showSummaryAndProceed(ctx context.Context, t *turn, introAlreadyStreamed bool) {
	conv := t.conv

	structured, err := s.structure(ctx, conv)
	if err != nil {
		s.logger.Error("ConversationService", "Summary generation failed", map[string]interface{}{
			"session_id": conv.SessionID, "error": err.Error(),
		})
		reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
			Step: string(store.StepShowSummary), DataContext: map[string]interface{}{},
			UserMessage: "Error generating summary.", SessionID: conv.SessionID,
		})
		s.say(t, reply.Content)
		s.setStep(t, store.StepShowSummary)
		return
	}

	if !introAlreadyStreamed {
		intro := s.rec.GenerateReply(ctx, recommender.ReplyParams{
			Step:        string(store.StepShowSummary),
			DataContext: conv.CollectedData,
			UserMessage: "Summary of requirements is ready.",
			SessionID:   conv.SessionID,
		})
		s.say(t, intro.Content)
	}
	s.say(t, fmt.Sprintf("\n\n%s\n\n", structured))
	s.performAnalysis(ctx, t)
}

func (s *conversationService) performAnalysis(ctx context.Context, t *turn) {
	conv := t.conv

	// Compose already leads with the product type when collected data
	// carries one, so strip it first to avoid sending the prefix twice.
	fullInput := fmt.Sprintf("Product Type: %s. %s",
		conv.ProductType, requirements.Compose(requirements.WithoutProductType(conv.CollectedData)))
	outcome, err := s.runner.Run(ctx, fullInput)
	if err != nil {
		s.logger.Error("ConversationService", "Analysis failed", map[string]interface{}{
			"session_id": conv.SessionID, "error": err.Error(),
		})
		reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
			Step: string(store.StepAnalysisError), DataContext: map[string]interface{}{},
			UserMessage: "An error occurred during final analysis.", SessionID: conv.SessionID,
		})
		s.say(t, reply.Content)
		s.setStep(t, store.StepAnalysisError)
		s.publish(events.NewAnalysisFailed(conv.SessionID, err.Error()))
		return
	}

	workflow.Apply(conv, workflow.AnalysisCompleted{Result: outcome.Result})

	contextMessage := fmt.Sprintf("Analysis complete. %s.", outcome.Message)
	reply := s.rec.GenerateReply(ctx, recommender.ReplyParams{
		Step: string(store.StepFinalAnalysis),
		DataContext: map[string]interface{}{
			"analysisResult": outcome.Result,
			"displayMode":    outcome.DisplayMode,
		},
		UserMessage: contextMessage,
		SessionID:   conv.SessionID,
	})
	s.say(t, reply.Content)

	// A finished analysis returns the session to the entry step so a
	// fresh requirement description starts a new round.
	s.setStep(t, store.StepInitialInput)

	t.analysis = &dto.AnalysisPayload{
		Result:      outcome.Result,
		DisplayMode: outcome.DisplayMode,
		Message:     outcome.Message,
	}
	s.publish(events.NewAnalysisCompleted(conv.SessionID, conv.ProductType, outcome.Message, outcome.DisplayMode, len(outcome.Displayed)))
}

// advance moves to the backend-suggested step, falling back when none
// was provided, and discovers the advanced parameter catalog when the
// workflow enters that stage for the first time.
func (s *conversationService) advance(ctx context.Context, t *turn, suggested, fallback store.Step) {
	next := suggested
	if next == "" {
		next = fallback
	}
	if next == store.StepAwaitAdvancedSpecs && t.conv.AdvancedParameters == nil {
		params, err := s.rec.DiscoverAdvancedParameters(ctx, t.conv.ProductType, t.conv.SessionID)
		if err != nil {
			s.logger.Warn("ConversationService", "Advanced parameter discovery failed", map[string]interface{}{
				"session_id": t.conv.SessionID, "error": err.Error(),
			})
		} else {
			workflow.Apply(t.conv, workflow.AdvancedDiscovered{Parameters: params})
		}
	}
	s.setStep(t, next)
}

func (s *conversationService) say(t *turn, content string) {
	msg := store.NewMessage(store.RoleAssistant, content)
	workflow.Apply(t.conv, workflow.MessageAdded{Message: msg})
	t.replies = append(t.replies, msg)
}

func (s *conversationService) setStep(t *turn, step store.Step) {
	workflow.Apply(t.conv, workflow.StepChanged{Step: step})
}

func (s *conversationService) finish(t *turn) *dto.SendMessageResponse {
	s.sessions.Save(t.conv)
	return &dto.SendMessageResponse{
		SessionID:     t.conv.SessionID,
		Step:          t.conv.Step,
		Replies:       dto.ToMessageResponses(t.replies),
		CollectedData: t.conv.CollectedData,
		ProductType:   t.conv.ProductType,
		Analysis:      t.analysis,
	}
}

func (s *conversationService) publish(event events.Event) {
	if s.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("ConversationService", "Event publish failed", map[string]interface{}{
			"event": event.EventType(), "error": err.Error(),
		})
	}
}

// formatFieldList renders camelCase field names as a readable list,
// e.g. "measurementRange" becomes "Measurement Range".
func formatFieldList(fields []string) string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		var b strings.Builder
		for i, r := range f {
			if i == 0 {
				b.WriteRune(unicode.ToUpper(r))
				continue
			}
			if unicode.IsUpper(r) {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
		}
		out = append(out, b.String())
	}
	return strings.Join(out, ", ")
}
