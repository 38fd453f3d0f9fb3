package gateway

import (
	"time"

	"github.com/hivellm/synap/internal/keyspace"
)

func (g *Gateway) registerStreamCommands(cmds map[string]commandSpec) {
	cmds["stream.create_room"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		name, err := p.str("room")
		if err != nil {
			return nil, err
		}
		partitions := p.intOr("partitions", 1)
		created := g.Stream.CreateRoom(name, partitions)
		return map[string]any{"created": created}, nil
	}}
	cmds["stream.delete_room"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		name, err := p.str("room")
		if err != nil {
			return nil, err
		}
		return map[string]any{"deleted": g.Stream.DeleteRoom(name)}, nil
	}}
	cmds["stream.list_rooms"] = commandSpec{run: func(g *Gateway, _ string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		return map[string]any{"rooms": g.Stream.ListRooms()}, nil
	}}
	cmds["stream.publish"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		room, err := p.str("room")
		if err != nil {
			return nil, err
		}
		event, err := p.str("event")
		if err != nil {
			return nil, err
		}
		data, err := p.str("data")
		if err != nil {
			return nil, err
		}
		partitionKey := p.strOr("partition_key", "")
		partition, offset, err := g.Stream.Publish(room, event, data, partitionKey)
		if err != nil {
			return nil, err
		}
		return map[string]any{"partition": partition, "offset": offset}, nil
	}}
	cmds["stream.read"] = commandSpec{run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		room, err := p.str("room")
		if err != nil {
			return nil, err
		}
		partition, err := p.int("partition")
		if err != nil {
			return nil, err
		}
		from := uint64(p.int64Or("from_offset", 0))
		limit := p.intOr("limit", 100)
		records, gap, err := g.Stream.Read(room, partition, from, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"records": records, "gap": gap}, nil
	}}
	cmds["stream.stats"] = commandSpec{run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		room, err := p.str("room")
		if err != nil {
			return nil, err
		}
		return g.Stream.Stats(room)
	}}
	cmds["stream.set_retention"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		room, err := p.str("room")
		if err != nil {
			return nil, err
		}
		count := p.intOr("count", 0)
		age := time.Duration(p.intOr("age_secs", 0)) * time.Second
		return nil, g.Stream.SetRetention(room, count, age)
	}}

	cmds["stream.group.create"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		room, err := p.str("room")
		if err != nil {
			return nil, err
		}
		group, err := p.str("group")
		if err != nil {
			return nil, err
		}
		return nil, g.Stream.CreateGroup(room, group)
	}}
	cmds["stream.group.consume"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		room, err := p.str("room")
		if err != nil {
			return nil, err
		}
		group, err := p.str("group")
		if err != nil {
			return nil, err
		}
		consumerID, err := p.str("consumer_id")
		if err != nil {
			return nil, err
		}
		limit := p.intOr("limit_per_partition", 10)
		records, err := g.Stream.ConsumeGroup(room, group, consumerID, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"partitions": records}, nil
	}}
	cmds["stream.group.commit"] = commandSpec{mutating: true, run: func(g *Gateway, _ string, p payload, _ *keyspace.LockedShardSet) (any, error) {
		room, err := p.str("room")
		if err != nil {
			return nil, err
		}
		group, err := p.str("group")
		if err != nil {
			return nil, err
		}
		partition, err := p.int("partition")
		if err != nil {
			return nil, err
		}
		offset := uint64(p.int64Or("offset", 0))
		return nil, g.Stream.Commit(room, group, partition, offset)
	}}
}
