package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/adapters/config"
	"hermes/internal/domain/features"
	"hermes/pkg/errors"
)

type fakeFeatures struct {
	contexts map[string]features.Context
	lookups  []string
}

func (f *fakeFeatures) GetUserContext(ctx context.Context, userID string) features.Context {
	f.lookups = append(f.lookups, userID)
	if c, ok := f.contexts[userID]; ok {
		return c
	}
	return features.Context{}
}

type auditRecord struct {
	topic string
	key   string
	event interface{}
}

type fakeAudit struct {
	records []auditRecord
}

func (f *fakeAudit) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	f.records = append(f.records, auditRecord{topic: topic, key: key, event: event})
	return nil
}

func testRules() config.NegotiationConfig {
	return config.NegotiationConfig{
		HighChurnThreshold:      0.7,
		LowChurnThreshold:       0.3,
		DefaultChurnProbability: 0.5,
		DefaultCartValue:        100.0,
		DefaultProfitMargin:     0.2,
	}
}

func newTestNegotiator(chat *fakeChat, store *fakeFeatures, audit AuditSink) *Negotiator {
	return NewNegotiator(NegotiatorConfig{
		Gateway:    newTestGateway(chat),
		Features:   store,
		Audit:      audit,
		AuditTopic: "offers.audit",
		Rules:      testRules(),
	})
}

const fetchReply = `{"action": {"rationale": "user wants a discount", "tool_name": "fetch_user_features", "user_id": "user_102"}}`

const pricingReply = `{
	"churn_analysis": "Churn probability 0.8 exceeds 0.7, aggressive retention justified",
	"financial_analysis": "Cart $300.0 with 25.0% margin leaves $75 profit",
	"margin_math": "300.0 * 0.25 = 75.0",
	"max_discount_percent": 12.5,
	"offer_code": "STAY12",
	"customer_message": "We'd hate to see you go! Here's 12.5% off with code STAY12."
}`

func highChurnContext() features.Context {
	return features.Context{
		features.KeyUserID:           "user_102",
		features.KeyUserLTV:          1500.0,
		features.KeyChurnProbability: 0.8,
		features.KeyCartValue:        300.0,
		features.KeyProfitMargin:     0.25,
		features.KeyInventoryStatus:  "Normal",
	}
}

func TestNegotiate_DirectReply(t *testing.T) {
	chat := &fakeChat{
		models:  []string{"m"},
		replies: []string{`{"action": {"tool_name": "respond", "content": "We ship worldwide within 5 days."}}`},
	}
	store := &fakeFeatures{}
	n := newTestNegotiator(chat, store, nil)

	reply, err := n.Negotiate(context.Background(), "Do you ship to Norway?", "user_102")
	require.NoError(t, err)

	// The routing reply is surfaced verbatim, no stores are touched and no
	// second inference round happens.
	assert.Equal(t, "We ship worldwide within 5 days.", reply)
	assert.Empty(t, store.lookups)
	assert.Len(t, chat.calls, 1)
}

func TestNegotiate_PricingFlow(t *testing.T) {
	chat := &fakeChat{models: []string{"m"}, replies: []string{fetchReply, pricingReply}}
	store := &fakeFeatures{contexts: map[string]features.Context{"user_102": highChurnContext()}}
	audit := &fakeAudit{}
	n := newTestNegotiator(chat, store, audit)

	reply, err := n.Negotiate(context.Background(), "I want a discount or I'm leaving!", "user_102")
	require.NoError(t, err)

	// Only the customer message is surfaced.
	assert.Equal(t, "We'd hate to see you go! Here's 12.5% off with code STAY12.", reply)

	assert.Equal(t, []string{"user_102"}, store.lookups)
	require.Len(t, chat.calls, 2)

	// Phase 2 transcript: routing system, user query, synthetic fetch
	// acknowledgment, pricing context.
	pricing := chat.calls[1].messages
	require.Len(t, pricing, 4)
	assert.Equal(t, "I'll fetch the user's profile now.", pricing[2].Content)

	prompt := pricing[3].Content
	assert.Contains(t, prompt, "churn_probability: 0.8")
	assert.Contains(t, prompt, "cart_value: $300.0")
	assert.Contains(t, prompt, "profit_margin: 25.0%")
	assert.Contains(t, prompt, "user_ltv: $1500.0")
	assert.Contains(t, prompt, "If churn_probability > 0.7")
	assert.Contains(t, prompt, "If churn_probability < 0.3")
	assert.Contains(t, prompt, "NEVER exceed the profit margin")

	// Audit event carries the reasoning and the bounded offer.
	require.Len(t, audit.records, 1)
	assert.Equal(t, "offers.audit", audit.records[0].topic)
	assert.Equal(t, "user_102", audit.records[0].key)
	event, ok := audit.records[0].event.(OfferAudit)
	require.True(t, ok)
	assert.Equal(t, "user_102", event.UserID)
	assert.Equal(t, 12.5, event.MaxDiscountPercent)
	assert.LessOrEqual(t, event.MaxDiscountPercent, 25.0)
	assert.Equal(t, "STAY12", event.OfferCode)
	assert.False(t, event.Clamped)
	assert.NotEmpty(t, event.TurnID)
}

func TestNegotiate_UnknownUserShortCircuits(t *testing.T) {
	chat := &fakeChat{models: []string{"m"}, replies: []string{fetchReply}}
	store := &fakeFeatures{}
	n := newTestNegotiator(chat, store, nil)

	reply, err := n.Negotiate(context.Background(), "I want a discount!", "user_999")
	require.NoError(t, err)

	assert.Equal(t, "Error: User profile not found.", reply)

	// No pricing round for an unknown user.
	assert.Len(t, chat.calls, 1)
	assert.Equal(t, []string{"user_999"}, store.lookups)
}

func TestNegotiate_LookupUsesCallerIdentifier(t *testing.T) {
	// The model echoes user_102 in its routing decision, but the caller is
	// user_555; the store must be read for user_555.
	chat := &fakeChat{models: []string{"m"}, replies: []string{fetchReply, pricingReply}}
	store := &fakeFeatures{contexts: map[string]features.Context{"user_555": highChurnContext()}}
	n := newTestNegotiator(chat, store, nil)

	_, err := n.Negotiate(context.Background(), "Discount please", "user_555")
	require.NoError(t, err)

	assert.Equal(t, []string{"user_555"}, store.lookups)
}

func TestNegotiate_DefaultsForPartialContext(t *testing.T) {
	// Only the cold store knows the user: cart value and margin fall back to
	// the configured defaults, LTV falls back to zero when absent.
	chat := &fakeChat{models: []string{"m"}, replies: []string{fetchReply, pricingReply}}
	store := &fakeFeatures{contexts: map[string]features.Context{
		"user_102": {
			features.KeyUserID:           "user_102",
			features.KeyChurnProbability: 0.9,
		},
	}}
	n := newTestNegotiator(chat, store, nil)

	_, err := n.Negotiate(context.Background(), "Discount please", "user_102")
	require.NoError(t, err)

	require.Len(t, chat.calls, 2)
	prompt := chat.calls[1].messages[3].Content
	assert.Contains(t, prompt, "churn_probability: 0.9")
	assert.Contains(t, prompt, "cart_value: $100.0")
	assert.Contains(t, prompt, "profit_margin: 20.0%")
	assert.Contains(t, prompt, "user_ltv: $0.0")
}

func TestNegotiate_DiscountClampedToMargin(t *testing.T) {
	overMarginReply := `{
		"churn_analysis": "a",
		"financial_analysis": "b",
		"margin_math": "c",
		"max_discount_percent": 40.0,
		"offer_code": "SAVE40",
		"customer_message": "Here's 40% off!"
	}`

	chat := &fakeChat{models: []string{"m"}, replies: []string{fetchReply, overMarginReply}}
	store := &fakeFeatures{contexts: map[string]features.Context{"user_102": highChurnContext()}}
	audit := &fakeAudit{}
	n := newTestNegotiator(chat, store, audit)

	_, err := n.Negotiate(context.Background(), "Discount please", "user_102")
	require.NoError(t, err)

	// Margin is 0.25, so the offer is clamped to 25%.
	require.Len(t, audit.records, 1)
	event := audit.records[0].event.(OfferAudit)
	assert.Equal(t, 25.0, event.MaxDiscountPercent)
	assert.True(t, event.Clamped)
}

func TestNegotiate_RoutingFailurePropagates(t *testing.T) {
	chat := &fakeChat{models: []string{"m"}, replies: []string{`not even json`}}
	n := newTestNegotiator(chat, &fakeFeatures{}, nil)

	_, err := n.Negotiate(context.Background(), "hello", "user_102")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchemaValidation))
}

func TestNegotiate_PricingFailurePropagates(t *testing.T) {
	chat := &fakeChat{models: []string{"m"}, replies: []string{fetchReply, `{"offer_code": "SAVE5"}`}}
	store := &fakeFeatures{contexts: map[string]features.Context{"user_102": highChurnContext()}}
	n := newTestNegotiator(chat, store, nil)

	_, err := n.Negotiate(context.Background(), "Discount please", "user_102")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchemaValidation))
}
