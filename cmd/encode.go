package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/statuslight/internal/color"
	"github.com/smazurov/statuslight/internal/pulse"
)

// CreateEncodeCmd creates the encode command.
func CreateEncodeCmd() *cobra.Command {
	var order string
	var words bool

	cmd := &cobra.Command{
		Use:   "encode <#rrggbb>...",
		Short: "Print the pulse train for one or more pixels",
		Long: `Encodes the given colors into the WS2812 pulse train on a simulated ` +
			`channel and checks that the train decodes back to the same bytes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			o, err := pulse.ParseOrder(order)
			if err != nil {
				return err
			}
			pixels := make([]color.Color, len(args))
			for i, arg := range args {
				if pixels[i], err = color.ParseHex(arg); err != nil {
					return err
				}
			}
			return writeEncoding(c.Context(), c.OutOrStdout(), pixels, o, words)
		},
	}

	cmd.Flags().StringVarP(&order, "order", "o", "grb", "Wire byte order (grb, rgb)")
	cmd.Flags().BoolVarP(&words, "words", "w", false, "Print packed 32-bit symbol words instead of pulse pairs")
	return cmd
}

func writeEncoding(ctx context.Context, w io.Writer, pixels []color.Color, order pulse.Order, words bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ch := pulse.NewSimChannel()
	enc, err := pulse.NewEncoder(ch, pulse.Config{Order: order})
	if err != nil {
		return err
	}
	defer enc.Close()

	if err := enc.Transmit(ctx, pixels); err != nil {
		return err
	}

	symbols := ch.LastFrame()
	want := order.Serialize(pixels)
	got, err := pulse.Decode(symbols, enc.Timing())
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("decode mismatch: got % x, want % x", got, want)
	}

	timing := enc.Timing()
	fmt.Fprintf(w, "# %d pixel(s), order %s, %d Hz, bytes % x\n", len(pixels), order, timing.Resolution, want)
	for i, s := range symbols {
		if words {
			fmt.Fprintf(w, "%4d 0x%08x\n", i, s.Word())
			continue
		}
		fmt.Fprintf(w, "%4d %s (%s + %s)\n", i, s, timing.Duration(uint32(s.Duration0)), timing.Duration(uint32(s.Duration1)))
	}
	_, err = fmt.Fprintf(w, "# %d symbols, decoded OK\n", len(symbols))
	return err
}
