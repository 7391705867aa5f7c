// Package config loads mainmemoryd's startup configuration the way
// cachemir-cachemir/pkg/config loads a server's: command-line flags
// override environment variables (MAINMEMORY_* prefix) override
// defaults, validated once before the runtime starts.
//
// Unlike the teacher's config package — where an environment variable,
// once set, always wins over its flag's default — a flag explicitly
// passed on the command line here takes precedence over the matching
// environment variable, per the documented "flags override environment
// variables" precedence; Load tracks which flags were actually set via
// flag.Visit and only lets the environment override the ones that
// weren't.
package config

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"go.uber.org/automaxprocs/maxprocs"
)

// Defaults for spec.md §6's configuration knobs.
const (
	DefaultMaxWorkersPerCore = 256
	DefaultVolumePerPartition = 64 << 20 // 64MiB
	DefaultEvictionReserve    = 4 << 20  // 4MiB headroom before hard cap
	DefaultBucketsMaxPerPart  = 1 << 20
	DefaultListenAddr         = "127.0.0.1:11211"
	DefaultCommandSockPath    = "mm_cmd.sock"
	DefaultLogLevel           = "info"
)

// Strategy names the action-plane serialization mode spec.md §4.5.3
// and §6 describe as a build-time choice between locking, delegate, and
// combine.
type Strategy string

const (
	StrategyLocking  Strategy = "locking"
	StrategyDelegate Strategy = "delegate"
	StrategyCombine  Strategy = "combine"
)

// Config holds every knob spec.md §6 lists as "recognized at init".
type Config struct {
	Cores             int
	MaxWorkersPerCore int
	PartitionCount    int
	VolumePerPartition int64
	BucketsMaxPerPart  uint32
	EvictionReserve    int64
	Strategy           Strategy
	CombineHandoffLimit int
	ListenAddr         string
	CommandSockPath    string
	LogLevel           string
}

// Load parses flags and, for any flag not explicitly passed, applies
// the matching MAINMEMORY_* environment variable, falling back to
// defaults derived from the detected CPU count. It calls flag.Parse.
func Load() (*Config, error) {
	// automaxprocs adjusts runtime.GOMAXPROCS to match a container's
	// cgroup CPU quota before the default core count is sampled, the
	// same fix joeycumines-go-utilpkg's root module pulls in it for.
	undo, err := maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))
	if err != nil {
		return nil, fmt.Errorf("config: automaxprocs: %w", err)
	}
	defer undo()

	detectedCores := detectCores()

	cfg := &Config{}
	fs := flag.CommandLine

	cores := fs.Int("cores", detectedCores, "number of cores to run (default: detected CPU count)")
	maxWorkers := fs.Int("max-workers-per-core", DefaultMaxWorkersPerCore, "max concurrently live worker tasks per core")
	partitions := fs.Int("partitions", 0, "memcache partition count, power of two (default: core count rounded up to a power of two)")
	volume := fs.Int64("volume-per-partition", DefaultVolumePerPartition, "memcache bytes per partition before eviction")
	bucketsMax := fs.Int("buckets-max-per-partition", DefaultBucketsMaxPerPart, "max bucket-array size per partition")
	reserve := fs.Int64("eviction-reserve", DefaultEvictionReserve, "bytes of headroom eviction tries to keep free")
	strategy := fs.String("strategy", string(StrategyLocking), "action-plane serialization strategy: locking, delegate, or combine")
	handoffLimit := fs.Int("combine-handoff-limit", 32, "max queued operations one combiner winner executes per handoff")
	listenAddr := fs.String("listen", DefaultListenAddr, "memcache text-protocol TCP listen address")
	cmdSock := fs.String("command-socket", DefaultCommandSockPath, "path of the JSON stub command channel unix socket")
	logLevel := fs.String("log-level", DefaultLogLevel, "log level: debug, info, warn, error")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	overrideInt(fs, set, "cores", cores, "MAINMEMORY_CORES")
	overrideInt(fs, set, "max-workers-per-core", maxWorkers, "MAINMEMORY_MAX_WORKERS_PER_CORE")
	overrideInt(fs, set, "partitions", partitions, "MAINMEMORY_PARTITIONS")
	overrideInt64(fs, set, "volume-per-partition", volume, "MAINMEMORY_VOLUME_PER_PARTITION")
	overrideInt(fs, set, "buckets-max-per-partition", bucketsMax, "MAINMEMORY_BUCKETS_MAX_PER_PARTITION")
	overrideInt64(fs, set, "eviction-reserve", reserve, "MAINMEMORY_EVICTION_RESERVE")
	overrideString(set, "strategy", strategy, "MAINMEMORY_STRATEGY")
	overrideInt(fs, set, "combine-handoff-limit", handoffLimit, "MAINMEMORY_COMBINE_HANDOFF_LIMIT")
	overrideString(set, "listen", listenAddr, "MAINMEMORY_LISTEN")
	overrideString(set, "command-socket", cmdSock, "MAINMEMORY_COMMAND_SOCKET")
	overrideString(set, "log-level", logLevel, "MAINMEMORY_LOG_LEVEL")

	cfg.Cores = *cores
	cfg.MaxWorkersPerCore = *maxWorkers
	cfg.PartitionCount = *partitions
	cfg.VolumePerPartition = *volume
	cfg.BucketsMaxPerPart = uint32(*bucketsMax)
	cfg.EvictionReserve = *reserve
	cfg.Strategy = Strategy(*strategy)
	cfg.CombineHandoffLimit = *handoffLimit
	cfg.ListenAddr = *listenAddr
	cfg.CommandSockPath = *cmdSock
	cfg.LogLevel = *logLevel

	if cfg.Cores < 1 {
		cfg.Cores = 1
	}
	if cfg.PartitionCount == 0 {
		cfg.PartitionCount = nextPow2(cfg.Cores)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideInt(fs *flag.FlagSet, set map[string]bool, name string, dst *int, envKey string) {
	if set[name] {
		return
	}
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideInt64(fs *flag.FlagSet, set map[string]bool, name string, dst *int64, envKey string) {
	if set[name] {
		return
	}
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func overrideString(set map[string]bool, name string, dst *string, envKey string) {
	if set[name] {
		return
	}
	if v := os.Getenv(envKey); v != "" {
		*dst = v
	}
}

// detectCores reads GOMAXPROCS after automaxprocs.Set has had a chance
// to clamp it to a container's cgroup CPU quota, per spec.md §6's
// "number of cores (default: detected CPU count, fallback 1)".
func detectCores() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Validate checks that every knob is internally consistent, spec.md
// §6's "enable-combiner / enable-delegate build modes (mutually
// exclusive)" made total by rejecting any name other than the three
// known strategies.
func (c *Config) Validate() error {
	if c.Cores < 1 {
		return fmt.Errorf("config: cores must be positive: %d", c.Cores)
	}
	if c.MaxWorkersPerCore < 1 {
		return fmt.Errorf("config: max-workers-per-core must be positive: %d", c.MaxWorkersPerCore)
	}
	if c.PartitionCount < 1 || c.PartitionCount&(c.PartitionCount-1) != 0 {
		return fmt.Errorf("config: partitions must be a power of two: %d", c.PartitionCount)
	}
	if c.VolumePerPartition < 1 {
		return fmt.Errorf("config: volume-per-partition must be positive: %d", c.VolumePerPartition)
	}
	if c.EvictionReserve < 0 {
		return fmt.Errorf("config: eviction-reserve must be non-negative: %d", c.EvictionReserve)
	}
	switch c.Strategy {
	case StrategyLocking, StrategyDelegate, StrategyCombine:
	default:
		return fmt.Errorf("config: unknown strategy: %q", c.Strategy)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log level: %q", c.LogLevel)
	}
	return nil
}
