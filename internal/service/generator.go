package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalis-ai/vitalis/internal/adapter/llm"
	"github.com/vitalis-ai/vitalis/internal/domain/agent"
	"github.com/vitalis-ai/vitalis/internal/domain/profile"
	"github.com/vitalis-ai/vitalis/internal/port/tool"
)

// focusRotation orders the role emphases candidates are generated with, so
// a three-candidate round always covers sleep, stress and balanced.
var focusRotation = []agent.Focus{agent.FocusSleep, agent.FocusStress, agent.FocusBalanced}

// Generator produces candidate agent configurations for a user profile.
// Candidates come from the meta-model; when it is unreachable each focus
// falls back to a built-in template so onboarding still completes, degraded.
type Generator struct {
	llm      ChatCompleter
	registry *tool.Registry
	model    string
	count    int
	log      *slog.Logger
}

// NewGenerator creates a Generator producing count candidates per round.
func NewGenerator(completer ChatCompleter, registry *tool.Registry, model string, count int, log *slog.Logger) *Generator {
	if count < 1 {
		count = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{llm: completer, registry: registry, model: model, count: count, log: log}
}

// Candidates generates the candidate configurations for version. The second
// return value reports degraded mode: every candidate came from the fallback
// template because the meta-model failed.
func (g *Generator) Candidates(ctx context.Context, p *profile.UserProfile, version int) ([]agent.Config, bool) {
	candidates := make([]agent.Config, 0, g.count)
	fallbacks := 0

	for i := 0; i < g.count; i++ {
		focus := focusRotation[i%len(focusRotation)]
		cfg, err := g.generateOne(ctx, p, focus, version)
		if err != nil {
			g.log.Warn("candidate generation failed, using template",
				"user_id", p.ID,
				"focus", focus,
				"error", err,
			)
			cfg = g.fallbackCandidate(p, focus, version)
			fallbacks++
		}
		candidates = append(candidates, cfg)
	}

	return candidates, fallbacks == len(candidates)
}

// generateOne asks the meta-model for one focus-specific configuration.
func (g *Generator) generateOne(ctx context.Context, p *profile.UserProfile, focus agent.Focus, version int) (agent.Config, error) {
	resp, err := g.llm.ChatCompletion(ctx, llm.ChatRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: "system", Content: generatorSystemPrompt},
			{Role: "user", Content: g.candidatePrompt(p, focus)},
		},
	})
	if err != nil {
		return agent.Config{}, err
	}

	raw := extractJSON(resp.FirstMessage().Content)
	if raw == "" {
		return agent.Config{}, fmt.Errorf("no JSON object in meta-model response")
	}

	var spec struct {
		Name         string   `json:"name"`
		Instructions string   `json:"instructions"`
		Tools        []string `json:"tools"`
	}
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return agent.Config{}, fmt.Errorf("decode candidate spec: %w", err)
	}
	if spec.Instructions == "" {
		return agent.Config{}, fmt.Errorf("candidate spec missing instructions")
	}
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("%s's wellness agent (%s)", p.Name, focus)
	}

	cfg := agent.Config{
		ID:           uuid.NewString(),
		UserID:       p.ID,
		Name:         spec.Name,
		Focus:        focus,
		Instructions: spec.Instructions,
		Model:        g.model,
		Tools:        g.knownTools(spec.Tools),
		Version:      version,
	}
	if version > 1 {
		cfg.PreviousVersion = version - 1
	}
	return cfg, cfg.Validate()
}

// fallbackCandidate builds a deterministic template configuration for the
// focus, used when the meta-model is unavailable.
func (g *Generator) fallbackCandidate(p *profile.UserProfile, focus agent.Focus, version int) agent.Config {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a personal wellness agent for %s.\n", p.Name)
	fmt.Fprintf(&b, "Their goals: %s.\n", strings.Join(p.Goals, ", "))

	switch focus {
	case agent.FocusSleep:
		b.WriteString("Prioritize sleep improvement: check sleep metrics before advising, " +
			"suggest consistent wind-down routines, and schedule reminders before bedtime.\n")
	case agent.FocusStress:
		b.WriteString("Prioritize stress reduction: watch for meeting overload, " +
			"protect breaks in the calendar, and suggest short recovery exercises.\n")
	default:
		b.WriteString("Balance sleep, stress and general wellness: read the user's metrics " +
			"before recommending, and keep interventions small and consistent.\n")
	}

	if ch := p.Preference(profile.PrefMessagingChannel); ch != "" {
		fmt.Fprintf(&b, "Reach the user over %s.\n", ch)
	}
	b.WriteString("Ask for approval before any purchase or outbound message.")

	cfg := agent.Config{
		ID:           uuid.NewString(),
		UserID:       p.ID,
		Name:         fmt.Sprintf("%s's wellness agent (%s)", p.Name, focus),
		Focus:        focus,
		Instructions: b.String(),
		Model:        g.model,
		Tools:        g.knownTools(nil),
		Version:      version,
	}
	if version > 1 {
		cfg.PreviousVersion = version - 1
	}
	return cfg
}

// knownTools filters requested names down to registered tools; an empty
// request grants the full registry.
func (g *Generator) knownTools(requested []string) []string {
	if len(requested) == 0 {
		return g.registry.Names()
	}
	var tools []string
	for _, name := range requested {
		if _, ok := g.registry.Get(name); ok {
			tools = append(tools, name)
		}
	}
	if len(tools) == 0 {
		return g.registry.Names()
	}
	return tools
}

const generatorSystemPrompt = `You design personal wellness agents. Given a user profile and a ` +
	`role focus, respond with a single JSON object: {"name": string, "instructions": string, ` +
	`"tools": [string]}. Instructions must be specific to the profile and the focus.`

func (g *Generator) candidatePrompt(p *profile.UserProfile, focus agent.Focus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role focus: %s\n\n", focus)
	fmt.Fprintf(&b, "Profile:\n- Name: %s\n- Goals: %s\n", p.Name, strings.Join(p.Goals, ", "))
	if p.WorkHours != "" {
		fmt.Fprintf(&b, "- Work hours: %s\n", p.WorkHours)
	}
	fmt.Fprintf(&b, "- Avg sleep: %.1fh, quality %.2f, stress %s\n",
		p.Health.AvgSleepHours, p.Health.SleepQuality, p.Health.StressLevel)
	for k, v := range p.Preferences {
		fmt.Fprintf(&b, "- Preference %s: %s\n", k, v)
	}
	fmt.Fprintf(&b, "\nAvailable tools: %s\n", strings.Join(g.registry.Names(), ", "))
	return b.String()
}
