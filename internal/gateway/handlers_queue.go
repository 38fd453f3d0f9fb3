package gateway

import (
	"time"

	"github.com/hivellm/synap/internal/keyspace"
)

func (g *Gateway) registerQueueCommands(cmds map[string]commandSpec) {
	cmds["queue.create"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		name, err := p.str("queue")
		if err != nil {
			return nil, err
		}
		visibility := time.Duration(p.intOr("visibility_timeout_secs", 0)) * time.Second
		maxRetries := p.intOr("max_retries", 0)
		created := g.Queue.Create(name, visibility, maxRetries)
		return map[string]any{"created": created}, nil
	}}
	cmds["queue.delete"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		name, err := p.str("queue")
		if err != nil {
			return nil, err
		}
		return map[string]any{"deleted": g.Queue.Delete(name)}, nil
	}}
	cmds["queue.list"] = commandSpec{run: func(g *Gateway, _ string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		return map[string]any{"queues": g.Queue.List()}, nil
	}}
	cmds["queue.publish"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		name, err := p.str("queue")
		if err != nil {
			return nil, err
		}
		body, err := p.str("payload")
		if err != nil {
			return nil, err
		}
		priority := p.intOr("priority", 5)
		maxRetries := p.intOr("max_retries", -1)
		id, err := g.Queue.Publish(name, body, priority, maxRetries)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": id}, nil
	}}
	cmds["queue.consume"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		name, err := p.str("queue")
		if err != nil {
			return nil, err
		}
		consumerID, err := p.str("consumer_id")
		if err != nil {
			return nil, err
		}
		msg, err := g.Queue.Consume(name, consumerID)
		if err != nil {
			return nil, err
		}
		return msg, nil
	}}
	cmds["queue.ack"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		name, err := p.str("queue")
		if err != nil {
			return nil, err
		}
		id, err := p.str("id")
		if err != nil {
			return nil, err
		}
		return nil, g.Queue.Ack(name, id)
	}}
	cmds["queue.nack"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		name, err := p.str("queue")
		if err != nil {
			return nil, err
		}
		id, err := p.str("id")
		if err != nil {
			return nil, err
		}
		return nil, g.Queue.Nack(name, id)
	}}
	cmds["queue.stats"] = commandSpec{run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		name, err := p.str("queue")
		if err != nil {
			return nil, err
		}
		return g.Queue.Stats(name)
	}}
	cmds["queue.purge"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		name, err := p.str("queue")
		if err != nil {
			return nil, err
		}
		return nil, g.Queue.Purge(name)
	}}
	cmds["queue.deadletters"] = commandSpec{run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		name, err := p.str("queue")
		if err != nil {
			return nil, err
		}
		dl, err := g.Queue.DeadLetters(name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"dead_letters": dl}, nil
	}}
}
