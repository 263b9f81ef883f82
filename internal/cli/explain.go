package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hugr-lab/substrait-go/auth"
	"github.com/hugr-lab/substrait-go/exchange"
	"github.com/hugr-lab/substrait-go/plan"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	Remote string
	Token  string
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{}

	cmd := &cobra.Command{
		Use:   "explain <plan-file>...",
		Short: "Print the relation tree of serialized plans",
		Long: `Decode one or more plan envelopes and print their relation trees.

Files are decoded locally unless --remote names a plan exchange server,
in which case the raw envelopes are sent there for decoding.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd.Context(), rootOpts, opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Remote, "remote", "", "address of a plan exchange server")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token for --remote")

	return cmd
}

func runExplain(ctx context.Context, rootOpts *RootOptions, opts *ExplainOptions, files []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	envelopes, err := readFiles(ctx, files)
	if err != nil {
		return err
	}

	var explains []string
	if opts.Remote != "" {
		explains, err = explainRemote(ctx, opts, envelopes)
	} else {
		explains, err = explainLocal(ctx, rootOpts, envelopes)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, e := range explains {
		if len(files) > 1 {
			fmt.Fprintf(out, "== %s\n", files[i])
		}
		fmt.Fprint(out, e)
		if len(e) > 0 && e[len(e)-1] != '\n' {
			fmt.Fprintln(out)
		}
	}
	return nil
}

func readFiles(ctx context.Context, files []string) ([][]byte, error) {
	out := make([][]byte, len(files))
	g, _ := errgroup.WithContext(ctx)
	for i, name := range files {
		g.Go(func() error {
			data, err := os.ReadFile(name)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}
	return out, g.Wait()
}

func explainLocal(ctx context.Context, rootOpts *RootOptions, envelopes [][]byte) ([]string, error) {
	c, err := rootOpts.codec()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	out := make([]string, len(envelopes))
	g, _ := errgroup.WithContext(ctx)
	for i, data := range envelopes {
		g.Go(func() error {
			p, err := c.Unmarshal(data)
			if err != nil {
				return fmt.Errorf("plan %d: %w", i, err)
			}
			out[i] = plan.Explain(p)
			return nil
		})
	}
	return out, g.Wait()
}

func explainRemote(ctx context.Context, opts *ExplainOptions, envelopes [][]byte) ([]string, error) {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if opts.Token != "" {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(auth.BearerToken(opts.Token, false)))
	}
	conn, err := grpc.NewClient(opts.Remote, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Remote, err)
	}
	defer conn.Close()

	return exchange.NewClient(conn).Explain(ctx, envelopes)
}
