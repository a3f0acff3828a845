package enforcement

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorch/taskctl/pkg/config"
	"github.com/taskorch/taskctl/pkg/types"
)

func unsetAgentEnv(t *testing.T) {
	t.Helper()
	prior, ok := os.LookupEnv("TM_AGENT_ID")
	require.NoError(t, os.Unsetenv("TM_AGENT_ID"))
	t.Cleanup(func() {
		if ok {
			os.Setenv("TM_AGENT_ID", prior)
		} else {
			os.Unsetenv("TM_AGENT_ID")
		}
	})
}

func TestCheckAllowsWhenAllPreconditionsMet(t *testing.T) {
	unsetAgentEnv(t)
	os.Setenv("TM_AGENT_ID", "alice")
	defer os.Unsetenv("TM_AGENT_ID")

	cfg := config.Default()
	verdict, violations := Check(Input{StateDirExists: true, ExecutableFound: true}, cfg)
	assert.Equal(t, types.VerdictAllow, verdict)
	assert.Empty(t, violations)
}

func TestCheckWarnsAtStandardLevel(t *testing.T) {
	unsetAgentEnv(t)
	cfg := config.Default()
	verdict, violations := Check(Input{StateDirExists: true, ExecutableFound: true}, cfg)
	assert.Equal(t, types.VerdictWarn, verdict)
	require.NotEmpty(t, violations)
	assert.Equal(t, "agent_id_missing", violations[0].Category)
}

func TestCheckBlocksAtStrictLevel(t *testing.T) {
	unsetAgentEnv(t)
	cfg := config.Default()
	cfg.Enforcement.Level = "strict"
	verdict, _ := Check(Input{StateDirExists: true, ExecutableFound: true}, cfg)
	assert.Equal(t, types.VerdictBlock, verdict)
}

func TestCheckAdvisoryNeverBlocks(t *testing.T) {
	unsetAgentEnv(t)
	cfg := config.Default()
	cfg.Enforcement.Level = "advisory"
	verdict, _ := Check(Input{}, cfg)
	assert.Equal(t, types.VerdictWarn, verdict)
}

func TestCheckFlagsMissingIntentMarkers(t *testing.T) {
	unsetAgentEnv(t)
	os.Setenv("TM_AGENT_ID", "alice")
	defer os.Unsetenv("TM_AGENT_ID")

	cfg := config.Default()
	_, violations := Check(Input{
		StateDirExists:      true,
		ExecutableFound:     true,
		RequiresIntentCheck: true,
		Description:         "just fix it",
	}, cfg)
	require.Len(t, violations, 1)
	assert.Equal(t, "no_intent_context", violations[0].Category)
}

func TestCheckAcceptsIntentMarkers(t *testing.T) {
	unsetAgentEnv(t)
	os.Setenv("TM_AGENT_ID", "alice")
	defer os.Unsetenv("TM_AGENT_ID")

	cfg := config.Default()
	_, violations := Check(Input{
		StateDirExists:      true,
		ExecutableFound:     true,
		RequiresIntentCheck: true,
		Description:         "WHY: flaky test WHAT: add retry DONE: passes 10x",
	}, cfg)
	assert.Empty(t, violations)
}

func TestIsActiveWhenStateDirExists(t *testing.T) {
	unsetAgentEnv(t)
	cfg := config.Default()
	assert.True(t, IsActive(Input{StateDirExists: true}, cfg))
}

func TestIsActiveInactiveByDefault(t *testing.T) {
	unsetAgentEnv(t)
	cfg := config.Default()
	assert.False(t, IsActive(Input{}, cfg))
}
