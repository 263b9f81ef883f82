package cli

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	substrait "github.com/hugr-lab/substrait-go"
	"github.com/hugr-lab/substrait-go/auth"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	Addr           string
	Tokens         []string // token=identity
	MaxMessageSize int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run a plan exchange gRPC server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":50051", "listen address")
	cmd.Flags().StringSliceVar(&opts.Tokens, "token", nil, "accepted bearer token as token=identity (repeatable)")
	cmd.Flags().IntVar(&opts.MaxMessageSize, "max-message-size", 0, "maximum gRPC message size in bytes")

	return cmd
}

func parseTokens(pairs []string) (map[string]string, error) {
	tokens := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		token, identity, ok := strings.Cut(pair, "=")
		if !ok || token == "" || identity == "" {
			return nil, fmt.Errorf("invalid token %q: expected token=identity", pair)
		}
		tokens[token] = identity
	}
	return tokens, nil
}

func runServe(ctx context.Context, rootOpts *RootOptions, opts *ServeOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	config, err := rootOpts.config()
	if err != nil {
		return err
	}
	serverConfig := substrait.ServerConfig{Config: config, MaxMessageSize: opts.MaxMessageSize}
	if len(opts.Tokens) > 0 {
		tokens, err := parseTokens(opts.Tokens)
		if err != nil {
			return err
		}
		serverConfig.Auth = auth.StaticTokens(tokens)
	}

	grpcServer := grpc.NewServer(substrait.ServerOptions(serverConfig)...)
	c, err := substrait.NewServer(grpcServer, serverConfig)
	if err != nil {
		return err
	}
	defer c.Close()

	lis, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", opts.Addr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Plan exchange server listening on %s\n", lis.Addr())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	return grpcServer.Serve(lis)
}
