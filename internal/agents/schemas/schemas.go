package schemas

import (
	"encoding/json"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
)

// Decision is implemented by every schema-guided output type. A Decision is
// only considered usable after Parse succeeded, so Validate must cover every
// structural invariant the prompt promises the model will honor.
type Decision interface {
	Validate() error
}

// ============================================================================
// Phase 1: Routing
// ============================================================================

// RouteTool is the discriminator selecting a routing variant.
type RouteTool string

const (
	ToolFetchUserFeatures RouteTool = "fetch_user_features"
	ToolRespond           RouteTool = "respond"
)

// FeatureLookup routes to a feature store lookup when pricing context is needed.
type FeatureLookup struct {
	Rationale string `json:"rationale" jsonschema:"description=Why the user profile is needed to answer."`
	ToolName  string `json:"tool_name" jsonschema:"enum=fetch_user_features"`
	UserID    string `json:"user_id" jsonschema:"description=Identifier of the user to look up."`
}

// DirectReply answers non-pricing queries without touching the stores.
type DirectReply struct {
	ToolName string `json:"tool_name" jsonschema:"enum=respond"`
	Content  string `json:"content" jsonschema:"description=The helpful reply text."`
}

// RouteAction is a tagged union over the two routing variants. Exactly one of
// Fetch and Reply is non-nil after a successful Parse; the tool_name field in
// the model output selects which.
type RouteAction struct {
	Fetch *FeatureLookup
	Reply *DirectReply
}

// Tool returns the discriminator of the populated variant.
func (a RouteAction) Tool() RouteTool {
	switch {
	case a.Fetch != nil:
		return ToolFetchUserFeatures
	case a.Reply != nil:
		return ToolRespond
	default:
		return ""
	}
}

// UnmarshalJSON dispatches on the tool_name discriminator and populates
// exactly one variant. Unknown tags and missing variant fields are rejected.
func (a *RouteAction) UnmarshalJSON(data []byte) error {
	var probe struct {
		ToolName *string `json:"tool_name"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return typeMismatch("RouteAction", data, err)
	}
	if probe.ToolName == nil {
		return &ValidationError{Schema: "RouteAction", Field: "tool_name", Reason: "required field missing"}
	}

	switch RouteTool(*probe.ToolName) {
	case ToolFetchUserFeatures:
		if err := requireFields(data, "FeatureLookup", "rationale", "user_id"); err != nil {
			return err
		}
		var fetch FeatureLookup
		if err := json.Unmarshal(data, &fetch); err != nil {
			return typeMismatch("FeatureLookup", data, err)
		}
		a.Fetch = &fetch
		a.Reply = nil
		return nil

	case ToolRespond:
		if err := requireFields(data, "DirectReply", "content"); err != nil {
			return err
		}
		var reply DirectReply
		if err := json.Unmarshal(data, &reply); err != nil {
			return typeMismatch("DirectReply", data, err)
		}
		a.Reply = &reply
		a.Fetch = nil
		return nil

	default:
		return &ValidationError{
			Schema: "RouteAction",
			Field:  "tool_name",
			Reason: "unknown tool " + *probe.ToolName,
		}
	}
}

// JSONSchema renders the union as a oneOf over the two variants, mirroring
// how the discriminated union is presented to the model.
func (RouteAction) JSONSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{DoNotReference: true}

	fetch := r.Reflect(&FeatureLookup{})
	fetch.Version = ""
	reply := r.Reflect(&DirectReply{})
	reply.Version = ""

	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{fetch, reply},
	}
}

// RoutingDecision is the phase 1 output: either fetch the user's features or
// reply directly.
type RoutingDecision struct {
	Action RouteAction `json:"action" jsonschema:"description=The selected routing action."`
}

// Validate ensures exactly one routing variant is populated.
func (d RoutingDecision) Validate() error {
	if d.Action.Fetch == nil && d.Action.Reply == nil {
		return &ValidationError{Schema: "RoutingDecision", Field: "action", Reason: "required field missing"}
	}
	return nil
}

// ============================================================================
// Phase 2: Pricing
// ============================================================================

// PricingDecision is the phase 2 output: the model's reasoning trace plus the
// bounded discount offer. The three analysis fields exist for audit and are
// never surfaced to the customer.
type PricingDecision struct {
	ChurnAnalysis      string  `json:"churn_analysis" jsonschema:"description=Analysis of the churn probability."`
	FinancialAnalysis  string  `json:"financial_analysis" jsonschema:"description=Analysis of cart value and profit margin."`
	MarginMath         string  `json:"margin_math" jsonschema:"description=Explicit profit calculation as an equation string."`
	MaxDiscountPercent float64 `json:"max_discount_percent" jsonschema:"description=Maximum allowed discount percent. Never exceed the profit margin."`
	OfferCode          string  `json:"offer_code" jsonschema:"description=Generated offer code such as SAVE20."`
	CustomerMessage    string  `json:"customer_message" jsonschema:"description=The final polite offer text shown to the customer."`
}

var pricingRequired = []string{
	"churn_analysis",
	"financial_analysis",
	"margin_math",
	"max_discount_percent",
	"offer_code",
	"customer_message",
}

// UnmarshalJSON rejects a pricing record missing any of the six required
// fields. No partial acceptance: a single absent field fails the whole phase.
func (d *PricingDecision) UnmarshalJSON(data []byte) error {
	if err := requireFields(data, "PricingDecision", pricingRequired...); err != nil {
		return err
	}

	type alias PricingDecision
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return typeMismatch("PricingDecision", data, err)
	}
	*d = PricingDecision(a)
	return nil
}

// Validate implements Decision. Field presence and typing are enforced during
// unmarshal; there are no further structural constraints.
func (d PricingDecision) Validate() error {
	return nil
}

// ============================================================================
// Schema descriptions for prompt injection
// ============================================================================

var describeCache sync.Map // reflect.Type -> string

// DescribeJSON returns the indented JSON Schema for v, suitable for embedding
// in a system prompt. Descriptions are computed once per type and cached for
// the process lifetime.
func DescribeJSON(v any) (string, error) {
	t := reflect.TypeOf(v)
	if cached, ok := describeCache.Load(t); ok {
		return cached.(string), nil
	}

	r := jsonschema.Reflector{}
	schema := r.Reflect(v)

	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	out := string(raw)
	describeCache.Store(t, out)
	return out, nil
}
