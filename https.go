package vigil

import (
	"crypto/tls"
	"net"
	"os"
	"path/filepath"

	"github.com/vigil-web/vigil/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

// tlsListener terminates TLS with the certificate pair named in the agent's
// configuration.
func (a *App) tlsListener() ListenerConstructor {
	return func(network, addr string) (net.Listener, error) {
		certificate, err := tls.LoadX509KeyPair(a.cfg.TLS.Cert, a.cfg.TLS.Key)
		if err != nil {
			logger.Get().Error("cannot load the TLS certificate pair",
				zap.String("cert", a.cfg.TLS.Cert),
				zap.String("key", a.cfg.TLS.Key),
				zap.Error(err))
			return nil, err
		}

		return tls.Listen(network, addr, &tls.Config{
			Certificates: []tls.Certificate{certificate},
		})
	}
}

// autoTLSListener obtains certificates through ACME for the given domains.
// Certificates persist in the configured autocert directory so restarts of
// the agent do not re-negotiate them.
func (a *App) autoTLSListener(domains ...string) ListenerConstructor {
	return func(network, addr string) (net.Listener, error) {
		manager := &autocert.Manager{
			Prompt: autocert.AcceptTOS,
			Cache:  a.certCache(),
		}

		if len(domains) > 0 {
			manager.HostPolicy = autocert.HostWhitelist(domains...)
		}

		return tls.Listen(network, addr, manager.TLSConfig())
	}
}

// certCache resolves the certificate cache directory: the configured one,
// or a vigil-owned directory under the user cache. Running without a cache
// is allowed, just noisy and slow on restart.
func (a *App) certCache() autocert.Cache {
	dir := a.cfg.TLS.AutocertDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			logger.Get().Warn("auto TLS: no cache directory, certificates will not persist",
				zap.Error(err))
			return nil
		}

		dir = filepath.Join(base, "vigil", "autocert")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		logger.Get().Warn("auto TLS: cache directory is not writable, certificates will not persist",
			zap.String("dir", dir), zap.Error(err))
		return nil
	}

	return autocert.DirCache(dir)
}
