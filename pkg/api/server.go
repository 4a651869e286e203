package api

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psaab/cfgblock/pkg/configstore"
	"github.com/psaab/cfgblock/pkg/filters"
)

// Config configures the API server.
type Config struct {
	Addr      string
	HTTPSAddr string      // HTTPS listen address (empty = no HTTPS)
	TLS       bool        // enable HTTPS with a generated certificate
	Auth      *AuthConfig // nil = no authentication
	Store     *configstore.Store
	Filters   *filters.Registry // nil = filters.Default()
	MaxBody   int64             // request body limit in bytes (0 = 4 MiB)
}

// Server is the HTTP API server.
type Server struct {
	httpServer  *http.Server
	httpsServer *http.Server
	store       *configstore.Store
	filters     *filters.Registry
	maxBody     int64
	startTime   time.Time
	handler     http.Handler
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	s := &Server{
		store:     cfg.Store,
		filters:   cfg.Filters,
		maxBody:   cfg.MaxBody,
		startTime: time.Now(),
	}
	if s.filters == nil {
		s.filters = filters.Default()
	}
	if s.maxBody <= 0 {
		s.maxBody = 4 << 20
	}

	mux := http.NewServeMux()

	// Health + metrics
	mux.HandleFunc("GET /health", s.healthHandler)

	// Prometheus metrics with isolated registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(newCollector(s))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Stateless parsing
	mux.HandleFunc("POST /api/v1/parse", s.parseHandler)
	mux.HandleFunc("POST /api/v1/select", s.selectHandler)
	mux.HandleFunc("POST /api/v1/filter", s.filterHandler)
	mux.HandleFunc("GET /api/v1/filters", s.filterNamesHandler)

	// Stored devices
	mux.HandleFunc("GET /api/v1/devices", s.devicesHandler)
	mux.HandleFunc("PUT /api/v1/devices/{name}", s.putDeviceHandler)
	mux.HandleFunc("DELETE /api/v1/devices/{name}", s.deleteDeviceHandler)
	mux.HandleFunc("GET /api/v1/devices/{name}/tree", s.deviceTreeHandler)
	mux.HandleFunc("GET /api/v1/devices/{name}/block", s.deviceBlockHandler)
	mux.HandleFunc("GET /api/v1/devices/{name}/errors", s.deviceErrorsHandler)
	mux.HandleFunc("GET /api/v1/devices/{name}/history", s.deviceHistoryHandler)
	mux.HandleFunc("POST /api/v1/devices/{name}/rollback", s.deviceRollbackHandler)

	var handler http.Handler = mux
	if cfg.Auth != nil {
		handler = authMiddleware(*cfg.Auth, mux)
	}
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.TLS && cfg.HTTPSAddr != "" {
		tlsCert, err := generateSelfSignedCert()
		if err != nil {
			slog.Warn("failed to generate self-signed certificate", "err", err)
		} else {
			s.httpsServer = &http.Server{
				Addr:              cfg.HTTPSAddr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				TLSConfig: &tls.Config{
					Certificates: []tls.Certificate{tlsCert},
					MinVersion:   tls.VersionTLS12,
				},
			}
		}
	}

	return s
}

// Handler returns the root handler, including auth middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP (and optionally HTTPS) server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 2)
	go func() {
		slog.Info("HTTP API server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.httpsServer != nil {
		go func() {
			slog.Info("HTTPS API server listening", "addr", s.httpsServer.Addr)
			if err := s.httpsServer.ListenAndServeTLS("", ""); err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		// One listener failed; take the other down with it.
		s.shutdown()
		ln.Close()
		return err
	case <-ctx.Done():
	}
	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpsServer != nil {
		s.httpsServer.Shutdown(shutdownCtx)
	}
	return s.httpServer.Shutdown(shutdownCtx)
}

// generateSelfSignedCert creates an in-memory ECDSA P-256 certificate for
// the local hostname.
func generateSelfSignedCert() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "cfgblockd"
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: hostname, Organization: []string{"cfgblock"}},
		DNSNames:     []string{hostname, "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
	}, nil
}
