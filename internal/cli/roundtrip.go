package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRoundTripCommand creates the roundtrip command.
func NewRoundTripCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roundtrip <in> <out>",
		Short: "Decode a plan and write its canonical envelope",
		Long: `Decode a plan envelope, validate every node and write it back in
canonical form with the selected --compression. The written envelope is
decoded again and compared with the first decode.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoundTrip(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runRoundTrip(rootOpts *RootOptions, in, out string, cmd *cobra.Command) error {
	c, err := rootOpts.codec()
	if err != nil {
		return err
	}
	defer c.Close()

	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	p, err := c.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", in, err)
	}
	canonical, err := c.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	back, err := c.Unmarshal(canonical)
	if err != nil {
		return fmt.Errorf("decode canonical form: %w", err)
	}
	if !back.Equal(p) {
		return fmt.Errorf("canonical form of %s does not decode to the same plan", in)
	}

	if err := os.WriteFile(out, canonical, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes -> %s: %d bytes\n", in, len(data), out, len(canonical))
	return nil
}
