// Package vigil assembles the embedded web server of the vigil telemetry
// agent: listeners, the per-connection engine, the host registry and the
// API dispatchers.
package vigil

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/vigil-web/vigil/acl"
	"github.com/vigil-web/vigil/api"
	"github.com/vigil-web/vigil/config"
	"github.com/vigil-web/vigil/internal/logger"
	"github.com/vigil-web/vigil/internal/transport"
	"github.com/vigil-web/vigil/internal/webclient"
	"github.com/vigil-web/vigil/registry"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

// Version of the agent, stamped by the build.
var Version = "devel"

type ListenerConstructor func(network, addr string) (net.Listener, error)

type listenerSpec struct {
	network     string
	addr        string
	constructor ListenerConstructor
	encrypted   bool
}

// App is the embedded web server builder. Configure listeners, then Serve.
type App struct {
	cfg       *config.Config
	engine    *webclient.Engine
	listeners []listenerSpec
	memory    int64

	mu     sync.Mutex
	active map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// New builds an App around the configuration and the host registry. The
// default policy allows everything; replace it with WithACL.
func New(cfg *config.Config, reg *registry.Registry) *App {
	a := &App{
		cfg:    cfg,
		active: make(map[net.Conn]struct{}),
	}

	service := api.New(reg, Version)

	a.engine = &webclient.Engine{
		Config:           cfg,
		Registry:         reg,
		ACL:              acl.AllowAll{},
		APIv1:            service.V1,
		APIv2:            service.V2,
		Log:              logger.Get(),
		AccessLog:        logger.Access(),
		MemoryAccounting: &a.memory,
	}

	return a
}

// WithACL replaces the access-control policy.
func (a *App) WithACL(checker acl.Checker) *App {
	a.engine.ACL = checker
	return a
}

// WithStream installs the metrics ingestion hook for STREAM requests.
func (a *App) WithStream(handler webclient.StreamHandler) *App {
	a.engine.Stream = handler
	return a
}

// Engine exposes the per-connection engine, mostly to tests.
func (a *App) Engine() *webclient.Engine {
	return a.engine
}

// WebMemory reports the bytes currently held by client slot buffers.
func (a *App) WebMemory() int64 {
	return atomic.LoadInt64(&a.memory)
}

// Listen adds a plain TCP listener.
func (a *App) Listen(addr string) *App {
	a.listeners = append(a.listeners, listenerSpec{
		network:     "tcp",
		addr:        addr,
		constructor: net.Listen,
	})

	return a
}

// Unix adds a unix-domain socket listener. TLS is never enabled on it.
func (a *App) Unix(path string) *App {
	a.listeners = append(a.listeners, listenerSpec{
		network:     "unix",
		addr:        path,
		constructor: net.Listen,
	})

	return a
}

// TLS adds an encrypted listener using the certificate pair from the
// configuration.
func (a *App) TLS(addr string) *App {
	a.listeners = append(a.listeners, listenerSpec{
		network:     "tcp",
		addr:        addr,
		constructor: a.tlsListener(),
		encrypted:   true,
	})

	return a
}

// AutoTLS adds an encrypted listener with automatic certificates for the
// given domains.
func (a *App) AutoTLS(addr string, domains ...string) *App {
	a.listeners = append(a.listeners, listenerSpec{
		network:     "tcp",
		addr:        addr,
		constructor: a.autoTLSListener(domains...),
		encrypted:   true,
	})

	return a
}

// Serve runs all configured listeners until ctx is cancelled or any of them
// fails to accept.
func (a *App) Serve(ctx context.Context) error {
	if len(a.listeners) == 0 {
		return fmt.Errorf("vigil: no listeners configured")
	}

	group, ctx := errgroup.WithContext(ctx)

	for _, spec := range a.listeners {
		spec := spec

		listener, err := spec.constructor(spec.network, spec.addr)
		if err != nil {
			return fmt.Errorf("vigil: listen %s: %w", spec.addr, err)
		}

		if a.cfg.NET.MaxConnections > 0 {
			listener = netutil.LimitListener(listener, a.cfg.NET.MaxConnections)
		}

		group.Go(func() error {
			<-ctx.Done()
			return listener.Close()
		})

		group.Go(func() error {
			return a.acceptLoop(ctx, listener, spec)
		})
	}

	err := group.Wait()

	// the listeners are down; sweep the connections still being served and
	// wait for their loops to finish
	a.mu.Lock()
	for conn := range a.active {
		_ = conn.Close()
	}
	a.mu.Unlock()
	a.wg.Wait()

	if ctx.Err() != nil {
		return nil
	}

	return err
}

func (a *App) acceptLoop(ctx context.Context, listener net.Listener, spec listenerSpec) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.handle(conn, spec)
		}()
	}
}

func (a *App) handle(conn net.Conn, spec listenerSpec) {
	a.mu.Lock()
	a.active[conn] = struct{}{}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.active, conn)
		a.mu.Unlock()
	}()

	var stream transport.Conn
	if spec.encrypted {
		tlsConn, ok := conn.(*tls.Conn)
		if !ok {
			_ = conn.Close()
			return
		}
		stream = transport.NewTLS(tlsConn).WithIdleTimeout(a.cfg.NET.IdleTimeout)
	} else {
		stream = transport.NewPlain(conn).WithIdleTimeout(a.cfg.NET.IdleTimeout)
	}

	client := a.engine.NewClient(stream)
	a.engine.Run(client)
}
