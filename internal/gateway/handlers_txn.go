package gateway

import (
	"github.com/hivellm/synap/internal/keyspace"
	"github.com/hivellm/synap/internal/txn"
)

// registerTxnCommands wires the transaction.* control family (spec.md
// §4.F, §4.K). These commands are never themselves queued mid-MULTI (the
// control flag exempts them from Handle's queuing check) — MULTI, WATCH,
// UNWATCH, and EXEC/DISCARD manipulate the transaction state machine
// itself, they do not touch the keyspace, so none of them append a WAL
// record directly; a queued command's own execution inside EXEC goes
// through the ordinary mutating path and is logged there.
func (g *Gateway) registerTxnCommands(cmds map[string]commandSpec) {
	cmds["transaction.multi"] = commandSpec{control: true, run: func(g *Gateway, clientID string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		g.Txn.Multi(clientID)
		return map[string]any{"status": "OK"}, nil
	}}
	cmds["transaction.watch"] = commandSpec{control: true, run: func(g *Gateway, clientID string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		keys, err := p.strs("keys")
		if err != nil {
			return nil, err
		}
		g.Txn.Watch(clientID, keys...)
		return map[string]any{"status": "OK"}, nil
	}}
	cmds["transaction.unwatch"] = commandSpec{control: true, run: func(g *Gateway, clientID string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		g.Txn.Unwatch(clientID)
		return map[string]any{"status": "OK"}, nil
	}}
	cmds["transaction.discard"] = commandSpec{control: true, run: func(g *Gateway, clientID string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		g.Txn.Discard(clientID)
		return map[string]any{"status": "OK"}, nil
	}}
	cmds["transaction.exec"] = commandSpec{control: true, run: func(g *Gateway, clientID string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		results, ok := g.Txn.Exec(clientID)
		if !ok {
			if g.Metrics != nil {
				g.Metrics.TxnAborts.Inc()
			}
			return nil, txn.AbortedError()
		}
		if g.Metrics != nil {
			g.Metrics.TxnCommits.Inc()
		}
		out := make([]map[string]any, 0, len(results))
		for _, r := range results {
			entry := map[string]any{"value": r.Value}
			if r.Err != nil {
				entry["error"] = toErrorPayload(r.Err)
			}
			out = append(out, entry)
		}
		return map[string]any{"results": out}, nil
	}}
}
