package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"stockbt/internal/domain"
	"stockbt/internal/strategy"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "stockbt.v1.Backtest"

const runMethod = "/" + ServiceName + "/Run"

// userIDKey is the metadata key carrying the caller's user id.
const userIDKey = "x-user-id"

// BacktestServer is the server API for the Backtest service. Requests and
// results travel as google.protobuf.Struct in the same JSON shape as the
// HTTP API.
type BacktestServer interface {
	Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// Compile-time interface check.
var _ BacktestServer = (*BacktestService)(nil)

var backtestServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BacktestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stockbt/v1/backtest.proto",
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: runMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// BacktestService implements the Backtest gRPC service on top of a
// Backtester.
type BacktestService struct {
	backtester *strategy.Backtester
	log        *slog.Logger
}

// NewBacktestService creates a BacktestService.
func NewBacktestService(bt *strategy.Backtester, log *slog.Logger) *BacktestService {
	if log == nil {
		log = slog.Default()
	}
	return &BacktestService{backtester: bt, log: log.With("component", "grpc")}
}

// RegisterGRPC registers the service on the given gRPC server instance.
func (s *BacktestService) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&backtestServiceDesc, s)
}

// Run decodes a backtest request, runs it and returns the result. Runs are
// saved for the user named in the x-user-id metadata, if any.
func (s *BacktestService) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req domain.BacktestRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}

	var userID string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(userIDKey); len(v) > 0 {
			userID = v[0]
		}
	}

	res, err := s.backtester.RunAndSave(ctx, userID, req)
	if err != nil {
		return nil, s.toStatus(err)
	}
	out, err := toStruct(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding result: %v", err)
	}
	return out, nil
}

func (s *BacktestService) toStatus(err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, strings.Join(verr.Problems, "; "))
	case errors.Is(err, domain.ErrNoData):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientData):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.log.Error("backtest failed", "error", err)
		return status.Error(codes.Internal, "backtest failed")
	}
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client calls a remote Backtest service.
type Client struct {
	conn   *grpc.ClientConn
	userID string
}

// Dial creates a client for the gRPC server at addr. Extra options are
// appended after the default insecure transport credentials.
func Dial(addr, userID string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn, userID: userID}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Run executes a backtest remotely. Service errors are mapped back onto the
// domain errors Backtester.Run returns.
func (c *Client) Run(ctx context.Context, req domain.BacktestRequest) (*domain.BacktestResult, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	if c.userID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, userIDKey, c.userID)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, runMethod, in, out); err != nil {
		return nil, fromStatus(err)
	}
	var res domain.BacktestResult
	if err := fromStruct(out, &res); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return &res, nil
}

// RunRemote dials addr, runs one backtest and closes the connection.
func RunRemote(ctx context.Context, addr, userID string, req domain.BacktestRequest) (*domain.BacktestResult, error) {
	c, err := Dial(addr, userID)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Run(ctx, req)
}

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return &domain.ValidationError{Problems: strings.Split(st.Message(), "; ")}
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), domain.ErrNoData)
	case codes.FailedPrecondition:
		return fmt.Errorf("%s: %w", st.Message(), domain.ErrInsufficientData)
	default:
		return fmt.Errorf("remote backtest: %w", err)
	}
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes a Struct into v through its JSON encoding.
func fromStruct(s *structpb.Struct, v any) error {
	b, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
