package gateway

import "github.com/hivellm/synap/internal/keyspace"

// registerPubSubCommands wires the pubsub.* family (spec.md §4.I). Pub/sub
// is fire-and-forget with no persistence or replay, so these handlers never
// mark themselves mutating: a subscription is ephemeral client-session
// state, not keyspace state recoverable from the WAL, and publishing a
// message that nobody was listening for leaves no durable trace either
// (spec.md §4.I "PubSub is fire-and-forget: no persistence, no replay, no
// ack"). The Sink channel Subscribe returns is retained by whatever
// transport owns the client connection, not by the gateway itself — the
// wire-level streaming delivery mechanism is the out-of-scope transport
// layer named in spec.md §6.
func (g *Gateway) registerPubSubCommands(cmds map[string]commandSpec) {
	cmds["pubsub.subscribe"] = commandSpec{run: func(g *Gateway, clientID string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		topic, err := p.str("topic")
		if err != nil {
			return nil, err
		}
		g.Bus.Subscribe(clientID, topic)
		return map[string]any{"subscribed": true}, nil
	}}
	cmds["pubsub.unsubscribe"] = commandSpec{run: func(g *Gateway, clientID string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		topic, err := p.str("topic")
		if err != nil {
			return nil, err
		}
		ok := g.Bus.Unsubscribe(clientID, topic)
		return map[string]any{"unsubscribed": ok}, nil
	}}
	cmds["pubsub.publish"] = commandSpec{run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		topic, err := p.str("topic")
		if err != nil {
			return nil, err
		}
		body, err := p.str("payload")
		if err != nil {
			return nil, err
		}
		delivered := g.Bus.Publish(topic, body)
		return map[string]any{"delivered": delivered}, nil
	}}
	cmds["pubsub.stats"] = commandSpec{run: func(g *Gateway, _ string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		return g.Bus.Stats(), nil
	}}
}
