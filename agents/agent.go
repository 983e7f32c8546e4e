// Package agents implements the LLM-backed analysts of a reservation
// briefing: four specialists that each look at one aspect of a guest, and
// a coordinator that folds their findings into one prioritized briefing.
//
// Agents never return errors. Every failure becomes an error Result so a
// briefing always has a value for every analysis.
package agents

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/scttfrdmn/agenkit/huddle-go/adapter/llm"
)

// Model and sampling temperature used for every agent call.
const (
	Model       = "gpt-4o"
	Temperature = 0.0
)

// Bundle keys, one per specialist.
const (
	DietaryAnalysis = "dietary_analysis"
	GuestExperience = "guest_experience"
	SpecialRequests = "special_requests"
	Personalization = "personalization"
)

// Names returns the specialist names in briefing order.
func Names() []string {
	return []string{DietaryAnalysis, GuestExperience, SpecialRequests, Personalization}
}

// Error messages carried by error Results.
const (
	msgAgentParse       = "Failed to parse agent output"
	msgCoordinatorParse = "Failed to parse coordinator output"
	msgAPIPrefix        = "API error: "
)

// Result is the parsed JSON object returned by one agent, or an error
// placeholder of the form {"error": "...", "raw_output": "..."}.
type Result map[string]any

// Bundle maps each specialist name to its Result.
type Bundle map[string]Result

// Briefing is the coordinator's consolidated Result.
type Briefing = Result

// ErrorResult builds an error placeholder.
func ErrorResult(msg string) Result {
	return Result{"error": msg}
}

// IsError reports whether r is an error placeholder.
func IsError(r Result) bool {
	if r == nil {
		return true
	}
	_, ok := r["error"].(string)
	return ok
}

// Caller performs one logical model request. *middleware.ResilientCaller
// satisfies it.
type Caller interface {
	Call(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error)
}

// Analyzer is one specialist in a fan-out.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, diner, reservation json.RawMessage) Result
}

// Option configures an Agent or Coordinator.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
	system string
}

// WithLogger sets the logger used to report parse and call failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithSystemPrompt overrides the system message.
func WithSystemPrompt(p string) Option {
	return func(s *settings) {
		s.system = p
	}
}

func buildSettings(system string, opts []Option) settings {
	s := settings{logger: slog.Default(), system: system}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Agent is a single specialist: a prompt template plus a caller.
type Agent struct {
	name     string
	template *Template
	caller   Caller
	settings
}

var _ Analyzer = (*Agent)(nil)

// NewAgent creates a specialist. The template must declare the slots
// diner_info and reservation_info.
func NewAgent(name string, tmpl *Template, caller Caller, opts ...Option) *Agent {
	return &Agent{
		name:     name,
		template: tmpl,
		caller:   caller,
		settings: buildSettings(specialistSystem, opts),
	}
}

// Name returns the bundle key of the agent.
func (a *Agent) Name() string {
	return a.name
}

// Analyze renders the prompt for one (diner, reservation) pair, makes
// exactly one Call and parses the reply.
func (a *Agent) Analyze(ctx context.Context, diner, reservation json.RawMessage) Result {
	prompt, err := a.template.Render(map[string]string{
		"diner_info":       string(diner),
		"reservation_info": string(reservation),
	})
	if err != nil {
		return ErrorResult(err.Error())
	}
	return complete(ctx, a.caller, a.settings, a.name, prompt, msgAgentParse)
}

// complete performs the call and applies the fence-strip and parse policy.
func complete(ctx context.Context, caller Caller, s settings, name, prompt, parseMsg string) Result {
	resp, err := caller.Call(ctx, []llm.Message{
		llm.NewMessage(llm.RoleSystem, s.system),
		llm.NewMessage(llm.RoleUser, prompt),
	}, llm.WithTemperature(Temperature))
	if err != nil {
		s.logger.WarnContext(ctx, "agent call failed", "agent", name, "error", err)
		return ErrorResult(msgAPIPrefix + err.Error())
	}

	var out Result
	if err := json.Unmarshal([]byte(CleanJSON(resp.Content)), &out); err != nil || out == nil {
		s.logger.WarnContext(ctx, "agent output is not a JSON object", "agent", name, "bytes", len(resp.Content))
		return Result{"error": parseMsg, "raw_output": resp.Content}
	}
	return out
}

// NewDietaryAnalysis creates the allergy and dietary restriction specialist.
func NewDietaryAnalysis(caller Caller, opts ...Option) *Agent {
	return NewAgent(DietaryAnalysis, dietaryTemplate, caller, opts...)
}

// NewGuestExperience creates the past experience and service style specialist.
func NewGuestExperience(caller Caller, opts ...Option) *Agent {
	return NewAgent(GuestExperience, guestExperienceTemplate, caller, opts...)
}

// NewSpecialRequests creates the explicit request and occasion specialist.
func NewSpecialRequests(caller Caller, opts ...Option) *Agent {
	return NewAgent(SpecialRequests, specialRequestsTemplate, caller, opts...)
}

// NewPersonalization creates the personalization and upsell specialist.
func NewPersonalization(caller Caller, opts ...Option) *Agent {
	return NewAgent(Personalization, personalizationTemplate, caller, opts...)
}

// Specialists returns the four specialists in briefing order, all sharing
// caller.
func Specialists(caller Caller, opts ...Option) []Analyzer {
	return []Analyzer{
		NewDietaryAnalysis(caller, opts...),
		NewGuestExperience(caller, opts...),
		NewSpecialRequests(caller, opts...),
		NewPersonalization(caller, opts...),
	}
}

var (
	dietaryTemplate         = MustTemplate(dietaryPrompt, "diner_info", "reservation_info")
	guestExperienceTemplate = MustTemplate(guestExperiencePrompt, "diner_info", "reservation_info")
	specialRequestsTemplate = MustTemplate(specialRequestsPrompt, "diner_info", "reservation_info")
	personalizationTemplate = MustTemplate(personalizationPrompt, "diner_info", "reservation_info")
)
