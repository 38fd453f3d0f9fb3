package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hivellm/synap/internal/config"
	"github.com/hivellm/synap/internal/gateway"
	"github.com/hivellm/synap/pkg/synaplog"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Persistence.WAL.Dir = filepath.Join(dir, "wal")
	cfg.Persistence.Snapshot.Dir = filepath.Join(dir, "snapshots")
	cfg.Replication.StateFile = filepath.Join(dir, "replica_state.db")
	return cfg
}

func TestNewRecoverStartStop(t *testing.T) {
	cfg := testConfig(t)
	log := synaplog.WithComponent("engine_test")

	eng, err := New(cfg, log)
	require.NoError(t, err)
	require.NotNil(t, eng.Gateway)

	require.NoError(t, eng.Recover())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)
	defer eng.Stop()

	resp := eng.Gateway.Handle(gateway.Envelope{
		Command:   "kv.set",
		RequestID: "r1",
		Payload:   map[string]any{"key": "k", "value": "v"},
	})
	require.True(t, resp.OK, "kv.set failed: %+v", resp.Error)

	resp = eng.Gateway.Handle(gateway.Envelope{
		Command:   "kv.get",
		RequestID: "r2",
		Payload:   map[string]any{"key": "k"},
	})
	require.True(t, resp.OK)
	require.Equal(t, "v", resp.Payload.(map[string]any)["value"])

	eng.Stop()
}

func TestRecoverAcrossRestart(t *testing.T) {
	cfg := testConfig(t)

	eng1, err := New(cfg, synaplog.WithComponent("engine_test"))
	require.NoError(t, err)
	require.NoError(t, eng1.Recover())

	resp := eng1.Gateway.Handle(gateway.Envelope{
		Command:   "kv.set",
		RequestID: "r1",
		Payload:   map[string]any{"key": "durable", "value": "yes"},
	})
	require.True(t, resp.OK)
	eng1.Stop()

	eng2, err := New(cfg, synaplog.WithComponent("engine_test"))
	require.NoError(t, err)
	require.NoError(t, eng2.Recover())
	defer eng2.Stop()

	resp = eng2.Gateway.Handle(gateway.Envelope{
		Command:   "kv.get",
		RequestID: "r2",
		Payload:   map[string]any{"key": "durable"},
	})
	require.True(t, resp.OK)
	require.Equal(t, "yes", resp.Payload.(map[string]any)["value"])
}

func TestReplicaRejectsMutation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Replication.Role = config.RoleReplica

	eng, err := New(cfg, synaplog.WithComponent("engine_test"))
	require.NoError(t, err)
	defer func() {
		if eng.replicaStore != nil {
			_ = eng.replicaStore.Close()
		}
	}()

	resp := eng.Gateway.Handle(gateway.Envelope{
		Command:   "kv.set",
		RequestID: "r1",
		Payload:   map[string]any{"key": "k", "value": "v"},
	})
	require.False(t, resp.OK)
	require.NotNil(t, resp.Error)
}
