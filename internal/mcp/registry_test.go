package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alertops/alertops/internal/config"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	cfg := serverCfg("jira", true)

	require.NoError(t, r.Register("jira", cfg))

	got, err := r.Lookup("jira")
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.Equal(t, StateAbsent, r.State("jira"))
	assert.NotNil(t, r.Slot("jira"))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("jira", serverCfg("jira", true)))

	err := r.Register("jira", serverCfg("jira", true))

	var dupErr *DuplicateServerError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "jira", dupErr.Server)
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("nope")

	var unknownErr *UnknownServerError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "nope", unknownErr.Server)
}

func TestRegistry_IsEnabled(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("jira", serverCfg("jira", true)))
	require.NoError(t, r.Register("pagerduty", serverCfg("pagerduty", false)))

	assert.True(t, r.IsEnabled("jira"))
	assert.False(t, r.IsEnabled("pagerduty"))
	assert.False(t, r.IsEnabled("unknown"))
}

func TestRegistry_StateTransitions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("jira", serverCfg("jira", true)))
	mt := &mockTransport{}

	assert.Equal(t, StateAbsent, r.State("jira"))

	r.MarkConnected("jira", mt)
	assert.Equal(t, StateConnected, r.State("jira"))
	conn, ok := r.Connection("jira")
	require.True(t, ok)
	assert.True(t, conn.Connected)

	r.MarkPending("jira")
	assert.Equal(t, StatePending, r.State("jira"))
	_, ok = r.Connection("jira")
	assert.False(t, ok)

	r.MarkConnected("jira", mt)
	r.MarkDisconnected("jira")
	assert.Equal(t, StateAbsent, r.State("jira"))
	_, ok = r.Connection("jira")
	assert.False(t, ok)
}

func TestRegistry_ConnectedServersSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(name, serverCfg(name, true)))
		r.MarkConnected(name, &mockTransport{})
	}

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.ConnectedServers())
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestRegistryFromConfig(t *testing.T) {
	servers := map[string]*config.MCPServerConfig{
		"jira":       serverCfg("jira", true),
		"kubernetes": serverCfg("kubernetes", false),
	}

	r, err := NewRegistryFromConfig(servers)
	require.NoError(t, err)

	assert.Equal(t, []string{"jira", "kubernetes"}, r.Names())
	assert.True(t, r.IsEnabled("jira"))
	assert.False(t, r.IsEnabled("kubernetes"))
}
