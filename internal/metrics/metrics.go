// Package metrics backs the engine's *.stats command family (spec.md §6) with
// a real counter/gauge registry. The HTTP /metrics exposition surface named in
// spec.md §1 as an external collaborator is intentionally not implemented
// here; this registry is read in-process by internal/gateway's stats
// handlers and serialized into command-envelope payloads instead.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is a private prometheus registry (not the global default
// registry, so multiple engines in one process — as in tests — don't
// collide on metric registration).
type Registry struct {
	reg *prometheus.Registry

	KVOps        *prometheus.CounterVec
	KVKeys       prometheus.Gauge
	QueueOps     *prometheus.CounterVec
	QueueDepth   *prometheus.GaugeVec
	StreamOps    *prometheus.CounterVec
	StreamBytes  *prometheus.GaugeVec
	PubSubOps    *prometheus.CounterVec
	WALAppends   prometheus.Counter
	WALFsyncs    prometheus.Counter
	SnapshotOps  *prometheus.CounterVec
	ReplicaLag   *prometheus.GaugeVec
	TxnAborts    prometheus.Counter
	TxnCommits   prometheus.Counter
}

// New constructs a Registry with every metric pre-registered so Gather never
// has to guess at label sets.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		KVOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synap_kv_ops_total",
			Help: "Count of keyspace operations by command name.",
		}, []string{"command"}),
		KVKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "synap_kv_keys",
			Help: "Current number of live keys across all shards.",
		}),
		QueueOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synap_queue_ops_total",
			Help: "Count of queue operations by queue name and verb.",
		}, []string{"queue", "op"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "synap_queue_depth",
			Help: "Pending/in-flight/dead-letter depth by queue and state.",
		}, []string{"queue", "state"}),
		StreamOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synap_stream_ops_total",
			Help: "Count of stream operations by stream name and verb.",
		}, []string{"stream", "op"}),
		StreamBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "synap_stream_retained_bytes",
			Help: "Retained payload bytes per stream partition.",
		}, []string{"stream", "partition"}),
		PubSubOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synap_pubsub_ops_total",
			Help: "Count of pubsub publishes and deliveries.",
		}, []string{"op"}),
		WALAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synap_wal_appends_total",
			Help: "Count of WAL records appended.",
		}),
		WALFsyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synap_wal_fsyncs_total",
			Help: "Count of WAL fsync calls issued by the flusher.",
		}),
		SnapshotOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "synap_snapshot_ops_total",
			Help: "Count of snapshot operations by verb (take, load, prune).",
		}, []string{"op"}),
		ReplicaLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "synap_replica_lag_seqno",
			Help: "master_last_seq - last_applied_seq per replica.",
		}, []string{"replica_id"}),
		TxnAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synap_txn_aborts_total",
			Help: "Count of EXEC calls that aborted on a watch conflict.",
		}),
		TxnCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "synap_txn_commits_total",
			Help: "Count of EXEC calls that committed.",
		}),
	}
	reg.MustRegister(
		r.KVOps, r.KVKeys, r.QueueOps, r.QueueDepth, r.StreamOps, r.StreamBytes,
		r.PubSubOps, r.WALAppends, r.WALFsyncs, r.SnapshotOps, r.ReplicaLag,
		r.TxnAborts, r.TxnCommits,
	)
	return r
}

// Gather returns the underlying prometheus registry's gatherer, exposed for
// a future /metrics transport to consume; no handler is mounted here.
func (r *Registry) Gather() prometheus.Gatherer {
	return r.reg
}
