// Command mainmemoryd is spec.md §6's CLI surface: it loads
// configuration, builds one Core per configured CPU, wires the
// memcache table and action-plane strategy, listens for the memcache
// text protocol on TCP and a JSON stub command channel on a Unix
// socket, then runs until SIGINT/SIGTERM.
//
// Grounded on the teacher's main_linux.go/main_darwin.go entry points
// (flag/env config load, signal handling, one goroutine per worker
// thread) generalized from a single fixed pipeline into N independent
// per-core dispatch loops.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/mainmemory/mainmemory/action"
	"github.com/mainmemory/mainmemory/config"
	"github.com/mainmemory/mainmemory/core"
	"github.com/mainmemory/mainmemory/event"
	"github.com/mainmemory/mainmemory/mcache"
	"github.com/mainmemory/mainmemory/mmlog"
	"github.com/mainmemory/mainmemory/netio"
	"github.com/mainmemory/mainmemory/protocol"
	"github.com/mainmemory/mainmemory/work"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mainmemoryd:", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := mmlog.NewConsole(level)
	log.Info("starting", mmlog.F("cores", cfg.Cores), mmlog.F("partitions", cfg.PartitionCount),
		mmlog.F("strategy", string(cfg.Strategy)))

	cores := make([]*core.Core, cfg.Cores)
	clock := core.NewSystemClock()
	for i := range cores {
		cores[i] = core.New(i, clock, cfg.MaxWorkersPerCore)
	}

	// The primary core (index 0) idle-waits in its own event backend
	// instead of a timed condition sleep, spec.md §4.3's distinction
	// between the primary core and every secondary core.
	backend := event.New()
	if err := backend.Prepare(); err != nil {
		log.Fatal("event backend prepare failed", err)
	}
	defer backend.Cleanup()
	deliveries := make([]event.Delivery, 0, 64)
	cores[0].SetIdleHook(func(timeoutMs int) {
		var err error
		deliveries, err = backend.Listen(nil, deliveries[:0], timeoutMs)
		if err != nil {
			log.Error("event backend listen failed", err)
		}
	})
	cores[0].SetWakeHook(func() {
		if err := backend.Wake(); err != nil {
			log.Error("event backend wake failed", err)
		}
	})

	table := mcache.NewTable(cfg.PartitionCount, cfg.BucketsMaxPerPart, cfg.VolumePerPartition, cfg.EvictionReserve)

	strategy := buildStrategy(cfg, cores)

	runtimes := make([]*work.Runtime, cfg.Cores)
	for i, c := range cores {
		runtimes[i] = work.NewRuntime(c)
		runtimes[i].Boot()
	}

	spawn := protocol.ListenerSpawn(table, strategy)

	tcpListener, err := netio.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatal("tcp listen failed", err, mmlog.F("addr", cfg.ListenAddr))
	}
	tcpListener.Cores = cores
	tcpListener.Spawn = spawn

	_ = os.Remove(cfg.CommandSockPath)
	cmdListener, err := netio.Listen("unix", cfg.CommandSockPath)
	if err != nil {
		log.Fatal("command socket listen failed", err, mmlog.F("path", cfg.CommandSockPath))
	}
	cmdListener.Cores = cores
	cmdListener.Spawn = newCommandHandler(table, log)

	var wg sync.WaitGroup
	for i, c := range cores {
		wg.Add(1)
		go func(cpu int, c *core.Core) {
			defer wg.Done()
			c.Run(cpu)
		}(i, c)
	}

	go func() {
		if err := tcpListener.Serve(); err != nil {
			log.Info("tcp listener stopped", mmlog.F("err", err.Error()))
		}
	}()
	go func() {
		if err := cmdListener.Serve(); err != nil {
			log.Info("command listener stopped", mmlog.F("err", err.Error()))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", mmlog.F("signal", sig.String()))

	_ = tcpListener.Close()
	_ = cmdListener.Close()
	_ = os.Remove(cfg.CommandSockPath)
	for _, c := range cores {
		c.Stop()
	}
	wg.Wait()
	log.Info("stopped")
}

// buildStrategy constructs the configured action-plane strategy,
// spec.md §6's "enable-combiner / enable-delegate build modes
// (mutually exclusive)" made concrete as one of three constructors.
// Delegate's partition-to-owner map round-robins partitions across
// cores; locking and combine strategies don't pin a partition to any
// one core, so any core's task may run their descriptors inline.
func buildStrategy(cfg *config.Config, cores []*core.Core) action.Strategy {
	switch cfg.Strategy {
	case config.StrategyDelegate:
		owners := make([]*core.Core, cfg.PartitionCount)
		for i := range owners {
			owners[i] = cores[i%len(cores)]
		}
		return action.NewDelegateStrategy(owners)
	case config.StrategyCombine:
		return action.NewCombineStrategy(cfg.PartitionCount, cfg.CombineHandoffLimit)
	default:
		return action.NewLockingStrategy(cfg.PartitionCount)
	}
}
