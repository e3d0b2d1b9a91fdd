package agents

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"hermes/internal/adapters/ai"
	"hermes/internal/adapters/config"
	"hermes/internal/agents/schemas"
	"hermes/internal/domain/features"
	"hermes/internal/metrics"
	"hermes/pkg/logger"
)

// notFoundReply is the terminal message for a user neither store knows.
const notFoundReply = "Error: User profile not found."

// unroutableReply covers a routing decision that validated but names a tool
// this orchestrator has no handler for.
const unroutableReply = "I'm sorry, I couldn't process your request."

// FeatureProvider supplies the merged per-user feature context
type FeatureProvider interface {
	GetUserContext(ctx context.Context, userID string) features.Context
}

// AuditSink receives offer audit events. Publishing is best effort and never
// blocks a customer reply.
type AuditSink interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// OfferAudit is the event emitted for every priced negotiation turn. It
// carries the full model reasoning, most of which is never surfaced to the
// customer.
type OfferAudit struct {
	TurnID             string    `json:"turn_id"`
	UserID             string    `json:"user_id"`
	Model              string    `json:"model"`
	ChurnAnalysis      string    `json:"churn_analysis"`
	FinancialAnalysis  string    `json:"financial_analysis"`
	MarginMath         string    `json:"margin_math"`
	MaxDiscountPercent float64   `json:"max_discount_percent"`
	OfferCode          string    `json:"offer_code"`
	CustomerMessage    string    `json:"customer_message"`
	Clamped            bool      `json:"clamped"`
	Timestamp          time.Time `json:"timestamp"`
}

// Negotiator drives a negotiation turn through the two-phase decision
// pipeline: route the query, optionally fetch the user's feature context and
// price an offer against it.
type Negotiator struct {
	gateway    *Gateway
	features   FeatureProvider
	audit      AuditSink
	auditTopic string
	rules      config.NegotiationConfig
	log        *logger.Logger
}

// NegotiatorConfig configures the negotiation orchestrator
type NegotiatorConfig struct {
	Gateway    *Gateway
	Features   FeatureProvider
	Audit      AuditSink // nil disables audit events
	AuditTopic string
	Rules      config.NegotiationConfig
}

// NewNegotiator creates a negotiation orchestrator
func NewNegotiator(cfg NegotiatorConfig) *Negotiator {
	return &Negotiator{
		gateway:    cfg.Gateway,
		features:   cfg.Features,
		audit:      cfg.Audit,
		auditTopic: cfg.AuditTopic,
		rules:      cfg.Rules,
		log:        logger.Get().With("component", "negotiator"),
	}
}

// Negotiate runs one negotiation turn and returns the customer-facing
// message. An error means the turn could not complete; business outcomes such
// as an unknown user are returned as messages, not errors.
func (n *Negotiator) Negotiate(ctx context.Context, userQuery, userID string) (string, error) {
	turnID := uuid.NewString()
	log := n.log.With("turn_id", turnID, "user_id", userID)

	start := time.Now()
	defer func() {
		metrics.NegotiationDuration.Observe(time.Since(start).Seconds())
	}()

	log.Infof("Processing query: %q", userQuery)

	transcript := []ai.Message{
		{Role: ai.RoleSystem, Content: buildRoutingPrompt(userID)},
		{Role: ai.RoleUser, Content: userQuery},
	}

	routing, err := RunStructured[schemas.RoutingDecision](ctx, n.gateway, transcript)
	if err != nil {
		metrics.NegotiationTurns.WithLabelValues("error").Inc()
		return "", err
	}

	log.Infof("Routing decision: %s", routing.Action.Tool())

	switch routing.Action.Tool() {
	case schemas.ToolRespond:
		metrics.NegotiationTurns.WithLabelValues("respond").Inc()
		return routing.Action.Reply.Content, nil
	case schemas.ToolFetchUserFeatures:
		return n.price(ctx, log, turnID, transcript, userID, routing.Action.Fetch)
	default:
		metrics.NegotiationTurns.WithLabelValues("unroutable").Inc()
		return unroutableReply, nil
	}
}

// price runs the pricing phase of a turn. The lookup always uses the
// caller-supplied identifier: the model echoes a user_id in its routing
// decision, but a model-chosen identifier must never drive a data read.
func (n *Negotiator) price(ctx context.Context, log *logger.Logger, turnID string, transcript []ai.Message, userID string, fetch *schemas.FeatureLookup) (string, error) {
	if fetch.UserID != userID {
		log.Warnf("Model echoed user_id %q, using caller-supplied %q", fetch.UserID, userID)
	}

	userCtx := n.features.GetUserContext(ctx, userID)
	if len(userCtx) == 0 {
		log.Warnf("No profile found for %s in either store", userID)
		metrics.NegotiationTurns.WithLabelValues("not_found").Inc()
		return notFoundReply, nil
	}

	churnProb := userCtx.Float(features.KeyChurnProbability, n.rules.DefaultChurnProbability)
	cartValue := userCtx.Float(features.KeyCartValue, n.rules.DefaultCartValue)
	margin := userCtx.Float(features.KeyProfitMargin, n.rules.DefaultProfitMargin)
	userLTV := userCtx.Float(features.KeyUserLTV, 0)

	log.Infof("Features loaded: LTV $%s, churn %s, cart $%s, margin %s%%",
		humanize.Commaf(userLTV), num(churnProb), num(cartValue), num(margin*100))

	transcript = append(transcript,
		ai.Message{Role: ai.RoleAssistant, Content: assistantFetchMessage},
		ai.Message{Role: ai.RoleUser, Content: buildPricingContextPrompt(
			churnProb, cartValue, margin, userLTV,
			n.rules.HighChurnThreshold, n.rules.LowChurnThreshold,
		)},
	)

	offer, err := RunStructured[schemas.PricingDecision](ctx, n.gateway, transcript)
	if err != nil {
		metrics.NegotiationTurns.WithLabelValues("error").Inc()
		return "", err
	}

	// The margin is a hard ceiling. The prompt tells the model so, but the
	// model is not trusted to respect it.
	clamped := false
	if ceiling := margin * 100; offer.MaxDiscountPercent > ceiling {
		log.Warnf("Model proposed %s%% discount above margin ceiling %s%%, clamping",
			num(offer.MaxDiscountPercent), num(ceiling))
		offer.MaxDiscountPercent = ceiling
		clamped = true
		metrics.DiscountClamped.Inc()
	}

	log.Infof("Audit: churn_analysis=%q financial_analysis=%q margin_math=%q max_discount=%s%% offer_code=%s",
		offer.ChurnAnalysis, offer.FinancialAnalysis, offer.MarginMath,
		num(offer.MaxDiscountPercent), offer.OfferCode)

	n.publishAudit(ctx, log, turnID, userID, offer, clamped)

	metrics.NegotiationTurns.WithLabelValues("priced").Inc()
	return offer.CustomerMessage, nil
}

func (n *Negotiator) publishAudit(ctx context.Context, log *logger.Logger, turnID, userID string, offer schemas.PricingDecision, clamped bool) {
	if n.audit == nil {
		return
	}

	event := OfferAudit{
		TurnID:             turnID,
		UserID:             userID,
		Model:              n.gateway.Model(ctx),
		ChurnAnalysis:      offer.ChurnAnalysis,
		FinancialAnalysis:  offer.FinancialAnalysis,
		MarginMath:         offer.MarginMath,
		MaxDiscountPercent: offer.MaxDiscountPercent,
		OfferCode:          offer.OfferCode,
		CustomerMessage:    offer.CustomerMessage,
		Clamped:            clamped,
		Timestamp:          time.Now().UTC(),
	}

	if err := n.audit.Publish(ctx, n.auditTopic, userID, event); err != nil {
		log.Warnf("Failed to publish offer audit event: %v", err)
	}
}
