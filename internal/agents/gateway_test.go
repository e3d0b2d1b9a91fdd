package agents

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/adapters/ai"
	"hermes/internal/agents/schemas"
	"hermes/pkg/errors"
)

type chatCall struct {
	model       string
	messages    []ai.Message
	temperature float64
}

// fakeChat scripts one reply per completion call and records everything it
// was asked.
type fakeChat struct {
	models    []string
	modelsErr error
	listCalls int

	replies []string
	err     error
	calls   []chatCall
}

func (f *fakeChat) ListModels(ctx context.Context) ([]string, error) {
	f.listCalls++
	if f.modelsErr != nil {
		return nil, f.modelsErr
	}
	return f.models, nil
}

func (f *fakeChat) ChatCompletion(ctx context.Context, model string, messages []ai.Message, temperature float64) (string, error) {
	f.calls = append(f.calls, chatCall{
		model:       model,
		messages:    append([]ai.Message(nil), messages...),
		temperature: temperature,
	})
	if f.err != nil {
		return "", f.err
	}
	if len(f.calls) > len(f.replies) {
		return "", fmt.Errorf("no scripted reply for call %d", len(f.calls))
	}
	return f.replies[len(f.calls)-1], nil
}

func newTestGateway(chat *fakeChat) *Gateway {
	return NewGateway(GatewayConfig{
		Client:        chat,
		FallbackModel: "fallback-model",
		Temperature:   0.1,
	})
}

func TestStripMarkdownFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"surrounding whitespace", "  \n{\"a\": 1}\n  ", `{"a": 1}`},
		{"fenced with leading whitespace", "\n```json\n{\"a\": 1}\n```\n", `{"a": 1}`},
		{"plain text untouched", "no json here", "no json here"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkdownFence(tt.in))
		})
	}
}

func TestGatewayModel_ResolvedOncePerProcess(t *testing.T) {
	chat := &fakeChat{models: []string{"served-model-a", "served-model-b"}}
	g := newTestGateway(chat)

	ctx := context.Background()
	assert.Equal(t, "served-model-a", g.Model(ctx))
	assert.Equal(t, "served-model-a", g.Model(ctx))
	assert.Equal(t, 1, chat.listCalls)
}

func TestGatewayModel_FallbackWhenListFails(t *testing.T) {
	chat := &fakeChat{modelsErr: fmt.Errorf("connection refused")}
	g := newTestGateway(chat)

	ctx := context.Background()
	assert.Equal(t, "fallback-model", g.Model(ctx))

	// The failed resolution is not retried.
	assert.Equal(t, "fallback-model", g.Model(ctx))
	assert.Equal(t, 1, chat.listCalls)
}

func TestGatewayModel_FallbackWhenListEmpty(t *testing.T) {
	chat := &fakeChat{models: []string{}}
	g := newTestGateway(chat)

	assert.Equal(t, "fallback-model", g.Model(context.Background()))
}

const validRoutingReply = `{"action": {"tool_name": "respond", "content": "hello"}}`

func TestRunStructured_InjectsSchemaWithoutMutatingTranscript(t *testing.T) {
	chat := &fakeChat{models: []string{"m"}, replies: []string{validRoutingReply}}
	g := newTestGateway(chat)

	original := "You are a helpful agent."
	transcript := []ai.Message{
		{Role: ai.RoleSystem, Content: original},
		{Role: ai.RoleUser, Content: "hi"},
	}

	decision, err := RunStructured[schemas.RoutingDecision](context.Background(), g, transcript)
	require.NoError(t, err)
	assert.Equal(t, schemas.ToolRespond, decision.Action.Tool())

	// The caller's transcript is untouched.
	assert.Equal(t, original, transcript[0].Content)

	// The sent transcript carries the schema instruction and the union schema.
	require.Len(t, chat.calls, 1)
	sent := chat.calls[0].messages
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Content, original)
	assert.Contains(t, sent[0].Content, "You MUST respond with raw JSON (no markdown) matching this schema:")
	assert.Contains(t, sent[0].Content, "oneOf")
	assert.Equal(t, "hi", sent[1].Content)

	assert.Equal(t, "m", chat.calls[0].model)
	assert.Equal(t, 0.1, chat.calls[0].temperature)
}

func TestRunStructured_NoSystemMessagePassesThrough(t *testing.T) {
	chat := &fakeChat{models: []string{"m"}, replies: []string{validRoutingReply}}
	g := newTestGateway(chat)

	transcript := []ai.Message{{Role: ai.RoleUser, Content: "hi"}}

	_, err := RunStructured[schemas.RoutingDecision](context.Background(), g, transcript)
	require.NoError(t, err)

	require.Len(t, chat.calls, 1)
	assert.Equal(t, transcript, chat.calls[0].messages)
}

func TestRunStructured_StripsFenceBeforeValidation(t *testing.T) {
	chat := &fakeChat{
		models:  []string{"m"},
		replies: []string{"```json\n" + validRoutingReply + "\n```"},
	}
	g := newTestGateway(chat)

	decision, err := RunStructured[schemas.RoutingDecision](context.Background(), g, []ai.Message{
		{Role: ai.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	require.NotNil(t, decision.Action.Reply)
	assert.Equal(t, "hello", decision.Action.Reply.Content)
}

func TestRunStructured_InvalidReply(t *testing.T) {
	chat := &fakeChat{models: []string{"m"}, replies: []string{`{"action": {"tool_name": "escalate"}}`}}
	g := newTestGateway(chat)

	_, err := RunStructured[schemas.RoutingDecision](context.Background(), g, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchemaValidation))
}

func TestRunStructured_EndpointUnavailable(t *testing.T) {
	chat := &fakeChat{models: []string{"m"}, err: fmt.Errorf("dial tcp: connection refused")}
	g := newTestGateway(chat)

	_, err := RunStructured[schemas.RoutingDecision](context.Background(), g, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInferenceUnavailable))
}
