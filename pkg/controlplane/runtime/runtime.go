// Package runtime owns the live state of a storage node: the reactor group,
// the device registry, the nvmf target, pools, replicas and nexuses.
//
// Every operation enters the init reactor through the bridge. Operations
// that change the node's configuration are wrapped in bridge.SyncConfig, so
// a successful change is exported to the control plane store before the
// caller gets its answer.
package runtime

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/bdev"
	"github.com/marmos91/nexusd/pkg/bridge"
	"github.com/marmos91/nexusd/pkg/controlplane/store"
	"github.com/marmos91/nexusd/pkg/metrics"
	"github.com/marmos91/nexusd/pkg/nexus"
	"github.com/marmos91/nexusd/pkg/nvmf"
	"github.com/marmos91/nexusd/pkg/pool"
	"github.com/marmos91/nexusd/pkg/reactor"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// DefaultStatsInterval is how often device cache statistics are sampled.
const DefaultStatsInterval = 15 * time.Second

// AuxiliaryServer is an HTTP server (admin API) managed alongside the
// reactors.
type AuxiliaryServer interface {
	// Start starts the HTTP server and blocks until context is cancelled or error.
	Start(ctx context.Context) error
	// Stop initiates graceful shutdown.
	Stop(ctx context.Context) error
	// Addr returns the address the server listens on.
	Addr() string
}

// Options configures a Runtime. It mirrors the node and nexus sections of
// the config file without importing pkg/config.
type Options struct {
	Cores      int
	QueueDepth int

	// HostNQN identifies the node and prefixes the NQNs it publishes.
	HostNQN string
	// NvmfAddress is the address the nvmf target serves. A missing or
	// unspecified host is advertised as 127.0.0.1.
	NvmfAddress string

	ReservationKey      uint64
	ReservationsEnabled bool
	ANAEnabled          bool
	KeepAliveInterval   time.Duration

	// Fabric connects this node's target to other nodes. Nodes that share
	// a fabric can use each other's replicas. Nil creates a private one.
	Fabric *nvmf.Fabric

	ShutdownTimeout time.Duration
	StatsInterval   time.Duration
}

// Runtime manages all live state of a node. It is safe for concurrent use:
// device objects are only touched on the init reactor.
type Runtime struct {
	opts  Options
	store store.ConfigStore

	group   *reactor.Group
	init    *reactor.Reactor
	devices *bdev.Registry
	target  *nvmf.Target
	fabric  *nvmf.Fabric
	pools   *pool.Manager

	exporter bridge.Exporter

	apiServer AuxiliaryServer

	mu      sync.Mutex
	cancel  context.CancelFunc
	running chan struct{}

	serveOnce sync.Once
	served    bool
	closeOnce sync.Once
}

// New creates a runtime. s may be nil, in which case configuration changes
// are not exported anywhere.
func New(opts Options, s store.ConfigStore) (*Runtime, error) {
	if opts.HostNQN == "" {
		opts.HostNQN = nvmf.DefaultHostNQN
	}
	if err := nvmf.ValidateNQN(opts.HostNQN); err != nil {
		return nil, err
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = DefaultStatsInterval
	}

	address, err := advertiseAddress(opts.NvmfAddress)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		opts:    opts,
		store:   s,
		group:   reactor.NewGroup(opts.Cores, opts.QueueDepth, metrics.NewReactorMetrics()),
		devices: bdev.NewRegistry(),
		target:  nvmf.NewTarget(address),
		fabric:  opts.Fabric,
	}
	r.init = r.group.Init()
	r.pools = pool.NewManager(r.devices, r.target, opts.HostNQN)
	r.exporter = bridge.ExporterFunc(r.exportConfig)

	if r.fabric == nil {
		r.fabric = nvmf.NewFabric()
	}
	if err := r.fabric.Listen(r.target); err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	nexusOpts := nexus.Options{
		HostNQN:             opts.HostNQN,
		ReservationKey:      opts.ReservationKey,
		ReservationsEnabled: opts.ReservationsEnabled,
		ANAEnabled:          opts.ANAEnabled,
		KeepAliveInterval:   opts.KeepAliveInterval,
		Devices:             r.devices,
		Target:              r.target,
		Transport:           r.fabric,
		Metrics:             metrics.NewNexusMetrics(),
		ReservationMetrics:  metrics.NewReservationMetrics(),
	}
	_, err = reactor.BlockOn(r.init, func(rc *reactor.Context) (struct{}, error) {
		nexus.Configure(rc, nexusOpts)
		r.registerStatsPoller(rc)
		return struct{}{}, nil
	})
	if err != nil {
		r.fabric.Unlisten(address)
		return nil, err
	}

	logger.Info("Runtime created", logger.KeyHostNQN, opts.HostNQN, logger.KeyAddress, address,
		"cores", r.group.Len(), "reservations", opts.ReservationsEnabled, "ana", opts.ANAEnabled)
	return r, nil
}

// advertiseAddress turns a listen address into one other nodes can dial.
func advertiseAddress(listen string) (string, error) {
	if listen == "" {
		listen = ":8420"
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("invalid nvmf address %q: %w", listen, err)
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port), nil
}

// Exporter returns the exporter configuration changes are persisted with.
func (r *Runtime) Exporter() bridge.Exporter { return r.exporter }

// SetExporter replaces the exporter. Used by tests and by tools that write
// the configuration elsewhere.
func (r *Runtime) SetExporter(e bridge.Exporter) { r.exporter = e }

// ExportConfig implements bridge.Exporter by delegating to the current
// exporter.
func (r *Runtime) ExportConfig(ctx context.Context) error {
	return r.exporter.ExportConfig(ctx)
}

// Target returns the node's nvmf target.
func (r *Runtime) Target() *nvmf.Target { return r.target }

// Fabric returns the fabric the target listens on.
func (r *Runtime) Fabric() *nvmf.Fabric { return r.fabric }

// InitReactor returns the reactor every admin operation runs on.
func (r *Runtime) InitReactor() *reactor.Reactor { return r.init }

// HostNQN returns the node's host NQN.
func (r *Runtime) HostNQN() string { return r.opts.HostNQN }

// Store returns the configuration store, or nil.
func (r *Runtime) Store() store.ConfigStore { return r.store }

// ============================================================================
// Lifecycle: Start, Serve, Close
// ============================================================================

// SetAPIServer sets the admin API server started by Serve.
func (r *Runtime) SetAPIServer(server AuxiliaryServer) {
	if r.served {
		panic("cannot set API server after Serve() has been called")
	}
	r.apiServer = server
	if server != nil {
		logger.Info("API server registered", logger.KeyAddress, server.Addr())
	}
}

// Start runs the reactor group in the background. It returns immediately;
// Close stops the reactors again. Calling Start twice is a no-op.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.running = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := r.group.Run(ctx); err != nil {
			logger.Error("Reactor group stopped with error", logger.Err(err))
		}
	}(r.running)
}

// Serve starts the reactors and the API server, and blocks until ctx is
// cancelled or the API server fails. The runtime is closed on return.
func (r *Runtime) Serve(ctx context.Context) error {
	var err error

	r.serveOnce.Do(func() {
		r.served = true
		err = r.serve(ctx)
	})

	return err
}

func (r *Runtime) serve(ctx context.Context) error {
	logger.Info("Starting nexusd runtime")

	r.Start(ctx)

	apiErrChan := make(chan error, 1)
	if r.apiServer != nil {
		go func() {
			if err := r.apiServer.Start(ctx); err != nil {
				logger.Error("API server error", logger.Err(err))
				apiErrChan <- err
			}
		}()
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
		shutdownErr = ctx.Err()

	case err := <-apiErrChan:
		logger.Error("API server failed - initiating shutdown", logger.Err(err))
		shutdownErr = fmt.Errorf("API server error: %w", err)
	}

	r.Close()

	logger.Info("nexusd runtime stopped")
	return shutdownErr
}

// Close stops the API server, destroys every nexus, closes pools and stops
// the reactors. The exported configuration is left untouched so the node
// comes back with the same objects.
func (r *Runtime) Close() {
	r.closeOnce.Do(r.shutdown)
}

func (r *Runtime) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ShutdownTimeout)
	defer cancel()

	if r.apiServer != nil {
		logger.Debug("Stopping API server")
		if err := r.apiServer.Stop(ctx); err != nil {
			logger.Error("API server shutdown error", logger.Err(err))
		}
	}

	// Nexuses hold sessions to other nodes and reservations on their
	// namespaces; tear them down while the reactors still run.
	_, err := reactor.BlockOn(r.init, func(rc *reactor.Context) (struct{}, error) {
		for _, n := range nexus.List(rc) {
			if err := n.Destroy(rc); err != nil {
				logger.Warn("Nexus shutdown error", logger.KeyNexus, n.Name(), logger.Err(err))
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		logger.Warn("Failed to stop nexuses", logger.Err(err))
	}

	r.fabric.Unlisten(r.target.Address())
	r.target.Close()
	r.pools.Close()

	r.mu.Lock()
	cancelRun, running := r.cancel, r.running
	r.mu.Unlock()

	r.group.Shutdown()
	if cancelRun != nil {
		cancelRun()
	}
	if running != nil {
		select {
		case <-running:
		case <-ctx.Done():
			logger.Warn("Timed out waiting for reactors to stop")
		}
	}
}
