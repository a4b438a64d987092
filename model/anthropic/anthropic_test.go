package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentworld/core"
	"github.com/hupe1980/agentworld/model"
)

func TestBuildMessages_MergesConsecutiveRoles(t *testing.T) {
	msgs := buildMessages([]model.Turn{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleUser, Content: "[from bob] hey"},
		{Role: model.RoleAssistant, Content: "hello"},
		{Role: model.RoleUser, Content: ""},
		{Role: model.RoleUser, Content: "again"},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Len(t, msgs[0].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
}

func TestFactory_AppliesProviderConfig(t *testing.T) {
	m, err := Factory(core.ProviderConfig{Provider: core.ProviderAnthropic, Model: "claude-test", Temperature: 0.2})
	require.NoError(t, err)

	am := m.(*Model)
	assert.Equal(t, anthropic.Model("claude-test"), am.opts.Model)
	assert.Equal(t, 0.2, am.opts.Temperature)
	assert.Equal(t, int64(4096), am.opts.MaxTokens)
	assert.Equal(t, "anthropic", m.Info().Provider)
}
