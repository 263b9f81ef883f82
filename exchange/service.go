// Package exchange serves plan inspection over gRPC.
//
// Exchange messages travel as MessagePack under the "msgpack" content
// subtype and the service is registered from a hand-written
// grpc.ServiceDesc. Plans inside them are opaque Substrait protobuf bytes.
package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/hugr-lab/substrait-go/catalog"
	"github.com/hugr-lab/substrait-go/codec"
	"github.com/hugr-lab/substrait-go/internal/recovery"
	"github.com/hugr-lab/substrait-go/internal/serialize"
	"github.com/hugr-lab/substrait-go/plan"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "substrait.exchange.PlanExchange"

// PlanCodec converts plan envelopes to plans and back.
type PlanCodec interface {
	Marshal(p *plan.Plan) ([]byte, error)
	Unmarshal(data []byte) (*plan.Plan, error)
}

// Service implements the PlanExchange handlers.
type Service struct {
	codec     PlanCodec
	allocator memory.Allocator
	logger    *slog.Logger
	// parallelism bounds concurrent decodes of one Explain request.
	parallelism int
}

// NewService creates a Service. A nil allocator or logger uses the default.
func NewService(c PlanCodec, allocator memory.Allocator, logger *slog.Logger) *Service {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{codec: c, allocator: allocator, logger: logger, parallelism: 8}
}

// Inspect decodes one plan and describes it.
func (s *Service) Inspect(ctx context.Context, req *InspectRequest) (*InspectResponse, error) {
	resp, err := recovery.RecoverToStatus(s.logger, "Inspect", func() (*InspectResponse, error) {
		return s.inspect(ctx, req)
	})
	if err != nil {
		s.logger.Debug("Inspect failed", "error", err)
		return nil, toStatus(err)
	}
	s.logger.Info("Inspected plan",
		"bytes", len(req.Plan),
		"roots", len(resp.Roots),
		"functions", len(resp.Functions),
	)
	return resp, nil
}

func (s *Service) inspect(ctx context.Context, req *InspectRequest) (*InspectResponse, error) {
	p, err := s.codec.Unmarshal(req.Plan)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	canonical, err := s.codec.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("re-marshal: %w", err)
	}
	w, err := codec.Encode(p)
	if err != nil {
		return nil, fmt.Errorf("re-encode: %w", err)
	}

	uris := make(map[uint32]string, len(w.ExtensionUris))
	for _, u := range w.ExtensionUris {
		uris[u.ExtensionUriAnchor] = u.Uri
	}
	resp := &InspectResponse{Canonical: canonical, Explain: plan.Explain(p)}
	for _, decl := range w.Extensions {
		f := decl.GetExtensionFunction()
		if f == nil {
			continue
		}
		resp.Functions = append(resp.Functions, FunctionInfo{
			Anchor: f.FunctionAnchor,
			URI:    uris[f.ExtensionUriReference],
			Name:   f.Name,
		})
	}
	for _, root := range p.Roots() {
		resp.Roots = append(resp.Roots, s.rootInfo(root))
	}
	return resp, nil
}

func (s *Service) rootInfo(root *plan.Root) RootInfo {
	fields := root.Input.RecordType()
	info := RootInfo{Names: root.Names, Types: make([]string, len(fields))}
	for i, f := range fields {
		info.Types[i] = f.String()
	}

	as, err := catalog.SchemaToArrow(root.Schema())
	if err != nil {
		s.logger.Debug("Root schema has no arrow form", "names", root.Names, "error", err)
		return info
	}
	if info.ArrowSchema, err = serialize.SerializeSchema(as, s.allocator); err != nil {
		s.logger.Warn("Failed to serialize root schema", "error", err)
	}
	return info
}

// Explain decodes every plan of the request concurrently and renders them.
func (s *Service) Explain(ctx context.Context, req *ExplainRequest) (*ExplainResponse, error) {
	resp, err := recovery.RecoverToStatus(s.logger, "Explain", func() (*ExplainResponse, error) {
		return s.explain(ctx, req)
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *Service) explain(ctx context.Context, req *ExplainRequest) (*ExplainResponse, error) {
	out := make([]string, len(req.Plans))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, data := range req.Plans {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := s.codec.Unmarshal(data)
			if err != nil {
				return fmt.Errorf("plan %d: %w", i, err)
			}
			out[i] = plan.Explain(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ExplainResponse{Explains: out}, nil
}

// PlanExchangeServer is the server API of the PlanExchange service.
type PlanExchangeServer interface {
	Inspect(context.Context, *InspectRequest) (*InspectResponse, error)
	Explain(context.Context, *ExplainRequest) (*ExplainResponse, error)
}

// RegisterPlanExchangeServer registers srv on s.
func RegisterPlanExchangeServer(s grpc.ServiceRegistrar, srv PlanExchangeServer) {
	s.RegisterService(&serviceDesc, srv)
}

func inspectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InspectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlanExchangeServer).Inspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Inspect"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlanExchangeServer).Inspect(ctx, req.(*InspectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func explainHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ExplainRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlanExchangeServer).Explain(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Explain"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlanExchangeServer).Explain(ctx, req.(*ExplainRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlanExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Inspect", Handler: inspectHandler},
		{MethodName: "Explain", Handler: explainHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "substrait/exchange.msgpack",
}
