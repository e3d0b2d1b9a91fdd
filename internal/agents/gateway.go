package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"hermes/internal/adapters/ai"
	"hermes/internal/agents/schemas"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

const defaultTemperature = 0.1

// schemaInstruction is appended to the system message together with the
// schema description of the requested decision type.
const schemaInstruction = "\n\nYou MUST respond with raw JSON (no markdown) matching this schema:\n"

// Gateway runs schema-guided inference against a chat completion endpoint.
// The endpoint offers no decoding-time grammar, so every reply is untrusted
// input: the schema is injected into the prompt and the reply is validated
// after the fact.
//
// The resolved model identifier is the only state shared across requests. It
// is resolved once per process from the endpoint's model list and cached.
type Gateway struct {
	client        ai.ChatClient
	limiter       ai.RateLimiter
	fallbackModel string
	temperature   float64
	log           *logger.Logger

	modelOnce sync.Once
	model     string
}

// GatewayConfig configures the structured inference gateway
type GatewayConfig struct {
	Client        ai.ChatClient
	Limiter       ai.RateLimiter // nil disables rate limiting
	FallbackModel string
	Temperature   float64 // 0 means the default low temperature
}

// NewGateway creates a structured inference gateway
func NewGateway(cfg GatewayConfig) *Gateway {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ai.NewNoOpLimiter()
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	return &Gateway{
		client:        cfg.Client,
		limiter:       limiter,
		fallbackModel: cfg.FallbackModel,
		temperature:   temperature,
		log:           logger.Get().With("component", "inference_gateway"),
	}
}

// Model returns the model identifier to use for inference, resolving it on
// first use by taking the first model the endpoint advertises. Resolution
// failures fall back to the configured default.
func (g *Gateway) Model(ctx context.Context) string {
	g.modelOnce.Do(func() {
		models, err := g.client.ListModels(ctx)
		if err != nil || len(models) == 0 {
			g.log.Warnf("Model auto-detection failed, falling back to %s: %v", g.fallbackModel, err)
			g.model = g.fallbackModel
			return
		}
		g.model = models[0]
		g.log.Infof("Resolved inference model: %s", g.model)
	})
	return g.model
}

// RunStructured sends the transcript with the schema description of T injected
// into the system message, strips any markdown fence from the reply and
// validates it against T. The caller's transcript is never mutated.
func RunStructured[T schemas.Decision](ctx context.Context, g *Gateway, transcript []ai.Message) (T, error) {
	var decision T
	name := fmt.Sprintf("%T", decision)

	schemaJSON, err := schemas.DescribeJSON(&decision)
	if err != nil {
		return decision, errors.Wrapf(err, "describe schema %s", name)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return decision, err
	}

	start := time.Now()
	reply, err := g.client.ChatCompletion(ctx, g.Model(ctx), augmentTranscript(transcript, schemaJSON), g.temperature)
	metrics.InferenceLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.InferenceCalls.WithLabelValues(name, "unavailable").Inc()
		if !errors.Is(err, errors.ErrInferenceUnavailable) {
			err = errors.Wrap(errors.ErrInferenceUnavailable, err.Error())
		}
		return decision, err
	}

	decision, err = schemas.Parse[T](StripMarkdownFence(reply))
	if err != nil {
		metrics.InferenceCalls.WithLabelValues(name, "invalid").Inc()
		return decision, err
	}

	metrics.InferenceCalls.WithLabelValues(name, "success").Inc()
	return decision, nil
}

// augmentTranscript returns a copy of the transcript with the schema
// instruction appended to the leading system message, if there is one.
func augmentTranscript(transcript []ai.Message, schemaJSON string) []ai.Message {
	augmented := make([]ai.Message, len(transcript))
	copy(augmented, transcript)

	if len(augmented) > 0 && augmented[0].Role == ai.RoleSystem {
		augmented[0].Content += schemaInstruction + schemaJSON
	}
	return augmented
}

// StripMarkdownFence removes a markdown code fence wrapping from a model
// reply. Text without a fence passes through unchanged.
func StripMarkdownFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	if strings.HasSuffix(text, "```") {
		text = text[:len(text)-len("```")]
	}
	return strings.TrimSpace(text)
}
