package setup

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deployment "github.com/haowjy/meridian-deploy-go"
	"github.com/haowjy/meridian-deploy-go/deploymenttest"
	"github.com/haowjy/meridian-deploy-go/providers/lorem"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestDefaultRegistry_WithoutKeys(t *testing.T) {
	clearKeys(t)

	reg, err := DefaultRegistry(WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)

	assert.Equal(t, []string{"anthropic", "lorem", "mock", "openai", "openrouter"}, reg.Names())
	assert.Equal(t, []string{"lorem", "mock"}, reg.ListAvailable())

	_, err = reg.Resolve("anthropic")
	assert.ErrorIs(t, err, deployment.ErrDeploymentUnavailable)
	assert.ErrorContains(t, err, deployment.ErrInvalidAPIKey.Error())
}

func TestDefaultRegistry_WithKeys(t *testing.T) {
	clearKeys(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	reg, err := DefaultRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic", "lorem", "mock", "openrouter"}, reg.ListAvailable())

	adapter, err := reg.Resolve("openrouter")
	require.NoError(t, err)
	d := adapter.Descriptor()
	assert.Equal(t, "openrouter", d.Name)
	assert.Equal(t, "anthropic/claude-haiku-4.5", d.DefaultModel())
	assert.True(t, d.SearchQueriesEnabled)
	assert.False(t, d.RerankEnabled)
}

func TestNewRegistry_FromConfig(t *testing.T) {
	cfg, err := deployment.ParseConfig([]byte(`
deployments:
  - name: quick
    kind: lorem
    models: [lorem-fast]
    rerank: false
    search_queries: true
  - name: canned
    kind: mock
    models: [canned-small, canned-large]
  - name: retired
    kind: lorem
    models: [lorem-slow]
    disabled: true
`))
	require.NoError(t, err)

	reg, err := NewRegistry(cfg, WithLoremOptions(lorem.WithStreamDelay(0)))
	require.NoError(t, err)
	assert.Equal(t, []string{"canned", "quick"}, reg.Names())

	quick, err := reg.Resolve("quick")
	require.NoError(t, err)
	assert.Equal(t, []string{"lorem-fast"}, quick.ListModels())
	assert.False(t, quick.Descriptor().RerankEnabled)

	canned, err := reg.Resolve("canned")
	require.NoError(t, err)
	assert.Equal(t, []string{"canned-small", "canned-large"}, canned.ListModels())
	assert.Equal(t, "canned-small", canned.Descriptor().DefaultModel())

	o := deployment.NewOrchestrator(reg, deployment.WithLogger(slog.New(slog.DiscardHandler)))
	stream, err := o.Run(context.Background(), deployment.NewChatRequest("Tell me something", nil, deployment.ChatParams{}), "quick")
	require.NoError(t, err)
	events, err := stream.Collect()
	require.NoError(t, err)
	deploymenttest.RequireWellFormed(t, events)
	assert.Equal(t, deployment.EventTypeStreamEnd, events[len(events)-1].Type)

	_, err = o.Rerank(context.Background(), "quick", "q", []deployment.Document{{ID: "a"}})
	assert.ErrorIs(t, err, deployment.ErrUnsupportedOperation)
}

func TestNewRegistry_InvalidConfig(t *testing.T) {
	cfg := &deployment.Config{Deployments: []deployment.DeploymentConfig{
		{Name: "x", Kind: "cohere", Models: []string{"command"}},
	}}
	_, err := NewRegistry(cfg)
	assert.ErrorIs(t, err, deployment.ErrInvalidRequest)
}
