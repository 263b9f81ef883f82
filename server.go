package substrait

import (
	"fmt"

	"google.golang.org/grpc"

	"github.com/hugr-lab/substrait-go/auth"
	"github.com/hugr-lab/substrait-go/exchange"
)

// NewServer registers the plan exchange service on the provided gRPC server.
//
// The function:
//  1. Validates the ServerConfig
//  2. Creates a Codec and the exchange service around it
//  3. Registers the service on grpcServer
//
// Does NOT start the gRPC server - user controls lifecycle via grpcServer.Serve().
// The returned Codec is owned by the caller and must be closed after the
// server stops.
//
// For authentication, create the gRPC server with ServerOptions():
//
//	config := substrait.ServerConfig{Auth: substrait.BearerAuth(validateToken)}
//	grpcServer := grpc.NewServer(substrait.ServerOptions(config)...)
//	codec, err := substrait.NewServer(grpcServer, config)
func NewServer(grpcServer *grpc.Server, config ServerConfig) (*Codec, error) {
	if err := validateServerConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c, err := NewCodec(config.Config)
	if err != nil {
		return nil, err
	}
	logger := c.logger

	svc := exchange.NewService(c, config.Allocator, logger)
	exchange.RegisterPlanExchangeServer(grpcServer, svc)

	logger.Info("Plan exchange service registered",
		"has_auth", config.Auth != nil,
		"max_message_size", config.MaxMessageSize,
		"compression", config.Compression,
		"functions", c.collection.Len(),
	)
	return c, nil
}

// ServerOptions returns gRPC server options with authentication interceptors
// and message size limits.
func ServerOptions(config ServerConfig) []grpc.ServerOption {
	var opts []grpc.ServerOption

	if config.Auth != nil {
		opts = append(opts,
			grpc.UnaryInterceptor(auth.UnaryServerInterceptor(config.Auth)),
			grpc.StreamInterceptor(auth.StreamServerInterceptor(config.Auth)),
		)
	}

	if config.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(config.MaxMessageSize),
			grpc.MaxSendMsgSize(config.MaxMessageSize),
		)
	}

	return opts
}
