package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/statuslight/internal/anim"
	"github.com/smazurov/statuslight/internal/status"
)

// CreatePreviewCmd creates the preview command.
func CreatePreviewCmd() *cobra.Command {
	var animation string
	var frames int
	var global int
	var period time.Duration

	cmd := &cobra.Command{
		Use:   "preview <status>",
		Short: "Print the colors a status renders frame by frame",
		Long: `Computes the color pushed to the LED for each frame of a status and ` +
			`animation, without touching the hardware.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			kind, err := status.ParseKind(args[0])
			if err != nil {
				return err
			}
			a, err := anim.Parse(animation)
			if err != nil {
				return err
			}
			if global < 0 || global > 255 {
				return fmt.Errorf("brightness %d out of range 0-255", global)
			}
			if frames < 1 {
				return fmt.Errorf("frames must be positive, got %d", frames)
			}

			setting := status.Setting{Status: kind, Animation: a, Brightness: 255}
			return writePreview(c.OutOrStdout(), setting, frames, uint8(global), period)
		},
	}

	cmd.Flags().StringVarP(&animation, "animation", "a", "none", "Animation (none, breathing, blinking, fade, rainbow, fade_in_out)")
	cmd.Flags().IntVarP(&frames, "frames", "n", 30, "Number of frames to print")
	cmd.Flags().IntVarP(&global, "brightness", "b", status.DefaultGlobalBrightness, "Global brightness 0-255")
	cmd.Flags().DurationVar(&period, "period", status.DefaultTickPeriod, "Frame period, used for the time column")
	return cmd
}

func writePreview(w io.Writer, setting status.Setting, frames int, global uint8, period time.Duration) error {
	if _, err := fmt.Fprintf(w, "# %s %s, global brightness %d\n", setting.Status, setting.Animation, global); err != nil {
		return err
	}
	for frame := range frames {
		c := status.Compose(setting, uint32(frame), global)
		at := time.Duration(frame) * period
		if _, err := fmt.Fprintf(w, "%4d %8s %s %3d %3d %3d\n", frame, at, c.Hex(), c.R, c.G, c.B); err != nil {
			return err
		}
	}
	return nil
}
