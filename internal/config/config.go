// Package config loads Synap's configuration, mirroring the key paths named
// in spec.md §6 exactly (persistence.wal.*, persistence.snapshot.*,
// kv_store.*, replication.*, queue.*). Parsing uses gopkg.in/yaml.v3, the
// teacher's own dependency, with environment-variable overrides read the way
// the teacher's cmd/node/main.go reads NODE_ID/NODE_LISTEN.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FsyncMode is the WAL durability policy (spec.md §4.D).
type FsyncMode string

const (
	FsyncAlways   FsyncMode = "always"
	FsyncPeriodic FsyncMode = "periodic"
	FsyncNever    FsyncMode = "never"
)

// EvictionPolicy is the keyspace's memory-pressure eviction strategy.
type EvictionPolicy string

const (
	EvictionLRU  EvictionPolicy = "lru"
	EvictionLFU  EvictionPolicy = "lfu"
	EvictionNone EvictionPolicy = "none"
)

// ReplicationRole is this process's role in the master/replica topology.
type ReplicationRole string

const (
	RoleStandalone ReplicationRole = "standalone"
	RoleMaster     ReplicationRole = "master"
	RoleReplica    ReplicationRole = "replica"
)

// WALConfig configures the write-ahead log (component D).
type WALConfig struct {
	Dir              string    `yaml:"dir"`
	FsyncMode        FsyncMode `yaml:"fsync_mode"`
	FsyncIntervalMS  int       `yaml:"fsync_interval_ms"`
	SegmentMaxBytes  int64     `yaml:"segment_max_bytes"`
	Enabled          bool      `yaml:"enabled"`
}

// SnapshotConfig configures the snapshot engine (component E).
type SnapshotConfig struct {
	Dir          string `yaml:"dir"`
	IntervalSecs int    `yaml:"interval_secs"`
	KeepCount    int    `yaml:"keep_count"`
}

// PersistenceConfig groups the two durability subsystems.
type PersistenceConfig struct {
	WAL      WALConfig      `yaml:"wal"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// KVStoreConfig configures the sharded keyspace (component A/C).
type KVStoreConfig struct {
	MaxMemoryBytes int64          `yaml:"max_memory_bytes"`
	EvictionPolicy EvictionPolicy `yaml:"eviction_policy"`
}

// ReplicationConfig configures component J.
type ReplicationConfig struct {
	Role                 ReplicationRole `yaml:"role"`
	MasterAddress        string          `yaml:"master_address"`
	ReplicaListenAddress string          `yaml:"replica_listen_address"`
	HeartbeatIntervalMS  int             `yaml:"heartbeat_interval_ms"`
	StateFile            string          `yaml:"state_file"`
}

// QueueConfig configures default queue behavior (component G).
type QueueConfig struct {
	DefaultVisibilityTimeoutSecs int `yaml:"default_visibility_timeout_secs"`
	DefaultMaxRetries            int `yaml:"default_max_retries"`
}

// Config is the root configuration document.
type Config struct {
	Persistence PersistenceConfig `yaml:"persistence"`
	KVStore     KVStoreConfig     `yaml:"kv_store"`
	Replication ReplicationConfig `yaml:"replication"`
	Queue       QueueConfig       `yaml:"queue"`
}

// Default returns the configuration the engine runs with when no config file
// is supplied: periodic WAL fsync every 10ms (spec.md §4.D's example), LRU
// eviction, standalone replication role.
func Default() Config {
	return Config{
		Persistence: PersistenceConfig{
			WAL: WALConfig{
				Dir:             "data/wal",
				Enabled:         true,
				FsyncMode:       FsyncPeriodic,
				FsyncIntervalMS: 10,
				SegmentMaxBytes: 64 << 20,
			},
			Snapshot: SnapshotConfig{
				Dir:          "data/snapshots",
				IntervalSecs: 300,
				KeepCount:    3,
			},
		},
		KVStore: KVStoreConfig{
			MaxMemoryBytes: 0, // 0 == unbounded
			EvictionPolicy: EvictionLRU,
		},
		Replication: ReplicationConfig{
			Role:                RoleStandalone,
			HeartbeatIntervalMS: 1000,
			StateFile:           "data/replica_state.db",
		},
		Queue: QueueConfig{
			DefaultVisibilityTimeoutSecs: 30,
			DefaultMaxRetries:            5,
		},
	}
}

// Load reads a YAML config file at path, layering it over Default(). A
// missing file is not an error: Load returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		applyEnvOverrides(&cfg)
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides mirrors the teacher's flat environment-variable
// convention (NODE_ID, NODE_LISTEN, COORDINATOR_ADDR in cmd/node/main.go).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYNAP_WAL_FSYNC_MODE"); v != "" {
		cfg.Persistence.WAL.FsyncMode = FsyncMode(v)
	}
	if v := os.Getenv("SYNAP_REPLICATION_ROLE"); v != "" {
		cfg.Replication.Role = ReplicationRole(v)
	}
	if v := os.Getenv("SYNAP_REPLICATION_MASTER_ADDRESS"); v != "" {
		cfg.Replication.MasterAddress = v
	}
	if v := os.Getenv("SYNAP_REPLICATION_LISTEN_ADDRESS"); v != "" {
		cfg.Replication.ReplicaListenAddress = v
	}
	if v := os.Getenv("SYNAP_WAL_DIR"); v != "" {
		cfg.Persistence.WAL.Dir = v
	}
	if v := os.Getenv("SYNAP_SNAPSHOT_DIR"); v != "" {
		cfg.Persistence.Snapshot.Dir = v
	}
}

// Validate checks the configuration for misconfigurations worth catching at
// boot (backs the `synap config validate` CLI subcommand).
func (c Config) Validate() error {
	switch c.Persistence.WAL.FsyncMode {
	case FsyncAlways, FsyncPeriodic, FsyncNever:
	default:
		return fmt.Errorf("config: persistence.wal.fsync_mode %q is not one of always|periodic|never", c.Persistence.WAL.FsyncMode)
	}
	if c.Persistence.WAL.Enabled && c.Persistence.WAL.Dir == "" {
		return fmt.Errorf("config: persistence.wal.enabled=true requires persistence.wal.dir")
	}
	if c.Persistence.WAL.FsyncMode == FsyncPeriodic && c.Persistence.WAL.FsyncIntervalMS <= 0 {
		return fmt.Errorf("config: persistence.wal.fsync_interval_ms must be > 0 under periodic mode")
	}
	switch c.KVStore.EvictionPolicy {
	case EvictionLRU, EvictionLFU, EvictionNone:
	default:
		return fmt.Errorf("config: kv_store.eviction_policy %q is not one of lru|lfu|none", c.KVStore.EvictionPolicy)
	}
	switch c.Replication.Role {
	case RoleStandalone, RoleMaster, RoleReplica:
	default:
		return fmt.Errorf("config: replication.role %q is not one of standalone|master|replica", c.Replication.Role)
	}
	if c.Replication.Role == RoleReplica && c.Replication.MasterAddress == "" {
		return fmt.Errorf("config: replication.role=replica requires replication.master_address")
	}
	if c.Persistence.Snapshot.KeepCount < 1 {
		return fmt.Errorf("config: persistence.snapshot.keep_count must be >= 1")
	}
	if c.Queue.DefaultVisibilityTimeoutSecs <= 0 {
		return fmt.Errorf("config: queue.default_visibility_timeout_secs must be > 0")
	}
	return nil
}

// FsyncInterval returns the configured fsync interval as a time.Duration.
func (w WALConfig) FsyncInterval() time.Duration {
	return time.Duration(w.FsyncIntervalMS) * time.Millisecond
}

// HeartbeatInterval returns the configured replication heartbeat as a
// time.Duration.
func (r ReplicationConfig) HeartbeatInterval() time.Duration {
	return time.Duration(r.HeartbeatIntervalMS) * time.Millisecond
}

// mustAtoi parses s as a base-10 int and panics if it is not one. No code
// in the module calls it.
func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic(err)
	}
	return n
}
