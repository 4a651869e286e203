package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/psaab/cfgblock/pkg/config"
	"github.com/psaab/cfgblock/pkg/configstore"
	"github.com/psaab/cfgblock/pkg/filters"
)

// Config configures the gRPC server.
type Config struct {
	Store   *configstore.Store
	Filters *filters.Registry // nil = filters.Default()
}

// Server implements ConfigBlockServiceServer.
type Server struct {
	store     *configstore.Store
	filters   *filters.Registry
	addr      string
	startTime time.Time
}

// NewServer creates a new gRPC server.
func NewServer(addr string, cfg Config) *Server {
	s := &Server{
		store:     cfg.Store,
		filters:   cfg.Filters,
		addr:      addr,
		startTime: time.Now(),
	}
	if s.filters == nil {
		s.filters = filters.Default()
	}
	return s
}

// Run starts the gRPC server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gRPC listen: %w", err)
	}
	return s.Serve(ctx, lis)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary))
	RegisterConfigBlockServiceServer(srv, s)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gRPC server listening", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	srv.GracefulStop()
	return nil
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	slog.Debug("gRPC call", "method", info.FullMethod,
		"duration", time.Since(start), "code", status.Code(err))
	return resp, err
}

// toStatus maps store, lookup and filter errors to gRPC status errors.
func toStatus(err error) error {
	switch {
	case errors.Is(err, configstore.ErrUnknownDevice),
		errors.Is(err, config.ErrBlockNotFound),
		errors.Is(err, filters.ErrUnknownFilter):
		return status.Errorf(codes.NotFound, "%v", err)
	default:
		return status.Errorf(codes.InvalidArgument, "%v", err)
	}
}

// --- RPCs ---

func (s *Server) Parse(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res := config.ParseText(stringField(req, "text"), intField(req, "indent"))
	out, err := parseResultStruct(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	return out, nil
}

func (s *Server) Select(_ context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	device := stringField(req, "device")
	text := stringField(req, "text")
	path := pathField(req)
	sep := stringField(req, "separator")
	if sep == "" {
		sep = config.DefaultSeparator
	}
	if len(path) == 0 {
		return nil, status.Error(codes.InvalidArgument, "path is required")
	}

	var keys []string
	switch {
	case device != "":
		if s.store == nil {
			return nil, status.Error(codes.Unavailable, "no device store")
		}
		var err error
		if keys, err = s.selectStored(device, path, sep); err != nil {
			return nil, toStatus(err)
		}
	default:
		tree := config.ParseText(text, intField(req, "indent")).Tree
		var ok bool
		if keys, ok = selectTree(tree, path, sep); !ok {
			return nil, status.Errorf(codes.NotFound, "%v: %s", config.ErrBlockNotFound, path)
		}
	}
	return stringList(keys), nil
}

func (s *Server) selectStored(device string, path []string, sep string) ([]string, error) {
	if len(path) == 1 {
		return s.store.SelectDotted(device, path[0], sep)
	}
	return s.store.Select(device, path)
}

// selectTree treats a single-element path as dotted and longer paths as
// already split.
func selectTree(tree *config.ConfigTree, path []string, sep string) ([]string, bool) {
	if len(path) == 1 {
		return config.SelectDotted(tree, path[0], sep)
	}
	return config.Select(tree, path)
}

func (s *Server) ApplyFilter(_ context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	name := stringField(req, "name")
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	out, found, err := s.filters.Apply(name, stringField(req, "text"), stringField(req, "arg"), intField(req, "indent"))
	if err != nil {
		return nil, toStatus(err)
	}
	if !found {
		return nil, status.Errorf(codes.NotFound, "%s: no result", name)
	}
	return stringList(out), nil
}

func (s *Server) ListDevices(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	out := &structpb.ListValue{}
	if s.store == nil {
		return out, nil
	}
	for _, snap := range s.store.Snapshots() {
		v, err := structpb.NewStruct(deviceFields(snap))
		if err != nil {
			return nil, status.Errorf(codes.Internal, "%v", err)
		}
		out.Values = append(out.Values, structpb.NewStructValue(v))
	}
	return out, nil
}

func (s *Server) PutDevice(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.Unavailable, "no device store")
	}
	snap, err := s.store.Put(stringField(req, "device"), stringField(req, "text"), intField(req, "indent"), "grpc")
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	out, err := structpb.NewStruct(deviceFields(snap))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	return out, nil
}
