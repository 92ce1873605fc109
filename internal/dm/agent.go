// Package dm implements the AI Dungeon Master that narrates game turns.
//
// The agent runs a single tool round per turn: it asks the model for a
// completion with the game tools attached, executes any tool calls the
// model makes, feeds the results back, and asks for a fresh narration.
// When the provider is down the agent degrades to a stock narration
// instead of failing the turn.
package dm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/dmforge-dev/dmforge/internal/observability"
	"github.com/dmforge-dev/dmforge/internal/tools"
	"github.com/dmforge-dev/dmforge/pkg/character"
	"github.com/dmforge-dev/dmforge/pkg/game"
	metrics "github.com/dmforge-dev/dmforge/pkg/observability"
)

// ChatClient interface for testability
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const (
	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4o-mini"

	// historyWindow is how many recent events are replayed as context
	historyWindow = 10

	defaultTimeout = 60 * time.Second

	defaultTemperature = 0.7
)

// FallbackNarration is returned on degraded turns when the narration
// provider is unreachable or returns nothing usable.
const FallbackNarration = "The Dungeon Master pauses, lost in thought. The threads of fate are tangled for a moment. Try your action again shortly."

const systemPrompt = `You are a creative and engaging Dungeon Master for a text-based D&D-style role-playing game.

Your role is to:
- Create an immersive fantasy adventure experience
- Respond to player actions with vivid descriptions
- Maintain game continuity and narrative flow
- Be creative but fair with outcomes
- Keep responses concise but engaging (2-4 sentences)

You have tools for managing the game: create characters for players, grant experience for notable deeds, level characters up when they have earned enough experience, and roll dice to resolve uncertain outcomes. Use them when the story calls for it, then narrate what happened.

Always respond in-character as the DM narrating the story.`

// Agent narrates turns via an OpenAI-compatible chat completion API.
// It implements game.Narrator.
type Agent struct {
	client      ChatClient
	model       string
	registry    *tools.Registry
	limiter     *rate.Limiter
	timeout     time.Duration
	temperature float32
}

var _ game.Narrator = (*Agent)(nil)

// Option configures an Agent
type Option func(*Agent)

// WithRateLimit caps outbound completion requests
func WithRateLimit(rps float64, burst int) Option {
	return func(a *Agent) {
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout bounds how long one turn may spend on completions
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.timeout = d
	}
}

// WithTemperature sets the sampling temperature for completions
func WithTemperature(t float64) Option {
	return func(a *Agent) {
		a.temperature = float32(t)
	}
}

// NewAgent creates a narrator backed by the given chat client
func NewAgent(client ChatClient, model string, registry *tools.Registry, opts ...Option) *Agent {
	if model == "" {
		model = DefaultModel
	}
	a := &Agent{
		client:      client,
		model:       model,
		registry:    registry,
		timeout:     defaultTimeout,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TakeTurn produces the DM narration for one player action. The returned
// result carries the effects of any tool calls the model made; the caller
// owns applying them to game state. A degraded result (stock narration,
// no effects from the failed exchange) is returned instead of an error
// when the provider fails, so a provider outage never loses the turn.
func (a *Agent) TakeTurn(ctx context.Context, state *game.State, player game.Player, message string) (*game.TurnResult, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	ctx, span := observability.StartSpanWithContext(ctx, "dm.narrate", map[string]any{
		"game_id":   state.ID,
		"player_id": player.ID,
		"model":     a.model,
	})
	defer span.End()

	messages := a.buildContext(state, player, message)

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Tools:       a.toolDefs(),
		Temperature: a.temperature,
	})
	metrics.ObserveNarratorLatency(time.Since(start))
	if err != nil {
		log.Printf("DM completion failed for game %s: %v", state.ID, err)
		return &game.TurnResult{Narration: FallbackNarration, Degraded: true}, nil
	}
	if len(resp.Choices) == 0 {
		return &game.TurnResult{Narration: FallbackNarration, Degraded: true}, nil
	}

	choice := resp.Choices[0].Message
	if len(choice.ToolCalls) == 0 {
		narration := choice.Content
		if narration == "" {
			return &game.TurnResult{Narration: FallbackNarration, Degraded: true}, nil
		}
		return &game.TurnResult{Narration: narration}, nil
	}

	effects := make([]tools.Effect, 0, len(choice.ToolCalls))
	messages = append(messages, choice)
	for _, call := range choice.ToolCalls {
		effect := a.execute(state, player, call, effects)
		effects = append(effects, effect)

		status := "ok"
		if _, failed := effect.(tools.ToolError); failed {
			status = "error"
		}
		metrics.RecordToolCall(call.Function.Name, status)

		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: call.ID,
			Content:    string(mustMarshal(effect.Payload())),
		})
	}

	// Second exchange: narrate the tool outcomes, no further tools.
	start = time.Now()
	resp, err = a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: a.temperature,
	})
	metrics.ObserveNarratorLatency(time.Since(start))
	if err != nil {
		log.Printf("DM renarration failed for game %s: %v", state.ID, err)
		return &game.TurnResult{Narration: FallbackNarration, Effects: effects, Degraded: true}, nil
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return &game.TurnResult{Narration: FallbackNarration, Effects: effects, Degraded: true}, nil
	}

	return &game.TurnResult{Narration: resp.Choices[0].Message.Content, Effects: effects}, nil
}

// execute runs one tool call against the registry. Calls the session
// state would later reject are refused here instead, so the model learns
// the real outcome from the tool result and narrates accordingly:
// creating a second character for a bound player, and leveling up without
// the experience to cover it. Experience granted earlier in the same turn
// counts toward the level-up check.
func (a *Agent) execute(state *game.State, player game.Player, call openai.ToolCall, prior []tools.Effect) tools.Effect {
	name := call.Function.Name
	switch name {
	case tools.ToolCreateCharacter:
		if state.Binding(player.ID).Bound {
			return tools.ToolError{Tool: name, Message: "player already has a character bound to this game"}
		}
	case tools.ToolLevelUp:
		binding := state.Binding(player.ID)
		if !binding.Bound || binding.Character == nil {
			return tools.ToolError{Tool: name, Message: "player has no character to level up"}
		}
		banked := binding.Character.Experience
		for _, e := range prior {
			if granted, ok := e.(tools.ExperienceGranted); ok {
				banked += granted.Amount
			}
		}
		if need := character.ExperienceToLevel(binding.Character.Level); banked < need {
			return tools.ToolError{
				Tool:    name,
				Message: fmt.Sprintf("insufficient experience: %d of %d needed to reach level %d", banked, need, binding.Character.Level+1),
			}
		}
	}
	return a.registry.Execute(name, json.RawMessage(call.Function.Arguments))
}

// buildContext assembles the completion messages: system prompt with the
// acting player's character status, the recent event log, and the
// current action.
func (a *Agent) buildContext(state *game.State, player game.Player, message string) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt + "\n\n" + characterStatus(state, player)},
	}

	log := state.Log
	if len(log) > historyWindow {
		log = log[len(log)-historyWindow:]
	}
	for _, event := range log {
		switch event.Type {
		case game.EventPlayerMessage:
			playerID, _ := event.Payload["player_id"].(string)
			if playerID == "" {
				playerID = "Unknown"
			}
			msg, _ := event.Payload["message"].(string)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Player %s: %s", playerID, msg),
			})
		case game.EventDMResponse:
			msg, _ := event.Payload["message"].(string)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg,
			})
		}
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: fmt.Sprintf("Player %s: %s", player.ID, message),
	})
	return messages
}

func characterStatus(state *game.State, player game.Player) string {
	binding := state.Binding(player.ID)
	if !binding.Bound || binding.Character == nil {
		return fmt.Sprintf("The acting player (%s, id %s) has no character yet. Guide them toward creating one with the create_character tool before the adventure gets dangerous.", player.Name, player.ID)
	}
	c := binding.Character
	return fmt.Sprintf("The acting player (%s, id %s) is playing %s, a level %d %s with %d experience points and %d/%d hit points.",
		player.Name, player.ID, c.Name, c.Level, c.Class, c.Experience, c.HitPoints, c.MaxHitPoints)
}

func (a *Agent) toolDefs() []openai.Tool {
	defs := a.registry.Definitions()
	out := make([]openai.Tool, len(defs))
	for i, d := range defs {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  json.RawMessage(mustMarshal(d.Parameters)),
			},
		}
	}
	return out
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("Warning: failed to marshal value: %v", err)
		return []byte("{}")
	}
	return b
}
