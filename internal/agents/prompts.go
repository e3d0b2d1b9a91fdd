package agents

import (
	"fmt"
	"strconv"
	"strings"
)

// routingSystemPrompt seeds phase 1. The user identifier is embedded so the
// model can echo it in a fetch decision, but lookups never trust the echo.
const routingSystemPrompt = `You are an automated pricing negotiation agent. You must respond with valid JSON matching the required schema.

ROUTING RULES:
- If the user mentions discounts, pricing, leaving, canceling, or negotiating: use "fetch_user_features" to get their profile
- For general questions unrelated to pricing: use "respond" with a helpful message

The user_id for lookups is: %s`

// assistantFetchMessage is the synthetic acknowledgment appended between the
// routing and pricing phases.
const assistantFetchMessage = "I'll fetch the user's profile now."

const pricingContextTemplate = `User profile retrieved. Now calculate and respond with a pricing decision.

USER DATA:
- churn_probability: %s
- cart_value: $%s
- profit_margin: %s%%
- user_ltv: $%s

BUSINESS RULES:
1. If churn_probability > %s: offer up to 50%% of profit margin as discount
2. If churn_probability < %s: max discount is 5%%
3. NEVER exceed the profit margin

Respond with your analysis and offer as JSON.`

// buildRoutingPrompt builds the routing system prompt for a user
func buildRoutingPrompt(userID string) string {
	return fmt.Sprintf(routingSystemPrompt, userID)
}

// buildPricingContextPrompt embeds the merged feature values and the business
// rules into the phase 2 user message. The margin arrives as a fraction and is
// rendered as a percentage.
func buildPricingContextPrompt(churnProb, cartValue, margin, userLTV, highChurn, lowChurn float64) string {
	return fmt.Sprintf(pricingContextTemplate,
		num(churnProb),
		num(cartValue),
		num(margin*100),
		num(userLTV),
		num(highChurn),
		num(lowChurn),
	)
}

// num renders a float with at least one decimal place, so prompts read
// "cart_value: $300.0" rather than "$300".
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
