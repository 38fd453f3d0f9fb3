package gateway

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hivellm/synap/internal/config"
	"github.com/hivellm/synap/internal/keyspace"
	"github.com/hivellm/synap/internal/pubsub"
	"github.com/hivellm/synap/internal/queue"
	"github.com/hivellm/synap/internal/stream"
	"github.com/hivellm/synap/internal/synaperr"
	"github.com/hivellm/synap/internal/txn"
	"github.com/hivellm/synap/internal/values"
	"github.com/hivellm/synap/internal/wal"
	"github.com/hivellm/synap/pkg/synaplog"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	log := synaplog.WithComponent("gateway_test")
	ks := keyspace.New(log)

	cfg := config.Default()
	cfg.Persistence.WAL.Dir = filepath.Join(t.TempDir(), "wal")
	cfg.Persistence.Snapshot.Dir = filepath.Join(t.TempDir(), "snapshots")

	w, err := wal.Open(cfg.Persistence.WAL, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	return New(Deps{
		KS:     ks,
		Ops:    values.New(ks),
		Queue:  queue.New(log, 30*time.Second, 5),
		Stream: stream.New(log),
		Bus:    pubsub.New(),
		Txn:    txn.New(ks),
		WAL:    w,
		Config: &cfg,
		Log:    log,
	})
}

func TestGatewayKVRoundTrip(t *testing.T) {
	g := newTestGateway(t)

	resp := g.Handle(Envelope{Command: "kv.set", RequestID: "1", Payload: map[string]any{"key": "a", "value": "1"}})
	require.True(t, resp.OK, "%+v", resp.Error)

	resp = g.Handle(Envelope{Command: "kv.get", RequestID: "2", Payload: map[string]any{"key": "a"}})
	require.True(t, resp.OK)
	require.Equal(t, "1", resp.Payload.(map[string]any)["value"])

	resp = g.Handle(Envelope{Command: "kv.incr", RequestID: "3", Payload: map[string]any{"key": "a"}})
	require.True(t, resp.OK)
	require.EqualValues(t, 2, resp.Payload.(map[string]any)["value"])
}

func TestGatewayUnknownCommand(t *testing.T) {
	g := newTestGateway(t)
	resp := g.Handle(Envelope{Command: "kv.frobnicate", RequestID: "1"})
	require.False(t, resp.OK)
	require.Equal(t, synaperr.Internal, resp.Error.Kind)
}

func TestGatewayQueuePublishConsumeAck(t *testing.T) {
	g := newTestGateway(t)

	resp := g.Handle(Envelope{Command: "queue.create", RequestID: "1", Payload: map[string]any{"queue": "jobs"}})
	require.True(t, resp.OK)

	resp = g.Handle(Envelope{Command: "queue.publish", RequestID: "2", Payload: map[string]any{"queue": "jobs", "payload": "do-thing"}})
	require.True(t, resp.OK, "%+v", resp.Error)
	id := resp.Payload.(map[string]any)["id"].(string)
	require.NotEmpty(t, id)

	resp = g.Handle(Envelope{Command: "queue.consume", RequestID: "3", Payload: map[string]any{"queue": "jobs", "consumer_id": "c1"}})
	require.True(t, resp.OK, "%+v", resp.Error)

	resp = g.Handle(Envelope{Command: "queue.ack", RequestID: "4", Payload: map[string]any{"queue": "jobs", "id": id}})
	require.True(t, resp.OK, "%+v", resp.Error)
}

func TestGatewayTransactionExec(t *testing.T) {
	g := newTestGateway(t)
	client := "client-1"

	resp := g.Handle(Envelope{Command: "transaction.multi", RequestID: "1", ClientID: client})
	require.True(t, resp.OK)

	resp = g.Handle(Envelope{Command: "kv.set", RequestID: "2", ClientID: client, Payload: map[string]any{"key": "x", "value": "1"}})
	require.True(t, resp.OK)
	require.Equal(t, "QUEUED", resp.Payload.(map[string]any)["status"])

	resp = g.Handle(Envelope{Command: "transaction.exec", RequestID: "3", ClientID: client})
	require.True(t, resp.OK, "%+v", resp.Error)

	resp = g.Handle(Envelope{Command: "kv.get", RequestID: "4", Payload: map[string]any{"key": "x"}})
	require.True(t, resp.OK)
	require.Equal(t, "1", resp.Payload.(map[string]any)["value"])
}

func TestGatewayAdminSnapshot(t *testing.T) {
	g := newTestGateway(t)
	resp := g.Handle(Envelope{Command: "kv.set", RequestID: "1", Payload: map[string]any{"key": "a", "value": "1"}})
	require.True(t, resp.OK)

	resp = g.Handle(Envelope{Command: "admin.snapshot", RequestID: "2"})
	require.True(t, resp.OK, "%+v", resp.Error)
	path := resp.Payload.(map[string]any)["path"].(string)
	require.FileExists(t, path)
}

func TestGatewayReadOnlyReplicaRejectsMutation(t *testing.T) {
	g := newTestGateway(t)
	g.Role = config.RoleReplica

	resp := g.Handle(Envelope{Command: "kv.set", RequestID: "1", Payload: map[string]any{"key": "a", "value": "1"}})
	require.False(t, resp.OK)
	require.Equal(t, synaperr.ReadOnly, resp.Error.Kind)
}
