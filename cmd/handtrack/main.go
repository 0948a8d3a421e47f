package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/ayusman/handtrack/internal/app"
	"github.com/ayusman/handtrack/internal/detector"
	"github.com/spf13/cobra"
)

// options collects the flag values of the root command.
type options struct {
	config    app.Config
	noOverlay bool
	noMarkers bool
}

func (o options) appConfig() app.Config {
	config := o.config
	config.DrawOverlay = !o.noOverlay
	config.DrawMarkers = !o.noMarkers
	return config
}

// newRootCmd builds the base command. run is called with the configuration parsed from flags.
func newRootCmd(run func(ctx context.Context, config app.Config) error) *cobra.Command {
	opts := options{config: app.DefaultConfig()}

	cmd := &cobra.Command{
		Use:           "handtrack",
		Short:         "Webcam hand tracking",
		Long:          `Tracks hands in a webcam feed, draws their landmarks and prints the pixel position of one landmark per frame.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts.appConfig())
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.config.CameraID, "camera", "c", opts.config.CameraID, "Camera device ID")
	flags.IntVar(&opts.config.Detector.MaxHands, "max-hands", opts.config.Detector.MaxHands, "Maximum number of hands to detect")
	flags.Float64Var(&opts.config.Detector.MinDetectionConfidence, "detection-con", opts.config.Detector.MinDetectionConfidence, "Minimum detection confidence (0-1)")
	flags.Float64Var(&opts.config.Detector.MinTrackingConfidence, "track-con", opts.config.Detector.MinTrackingConfidence, "Minimum tracking confidence (0-1)")
	flags.BoolVar(&opts.config.Detector.StaticImageMode, "static", opts.config.Detector.StaticImageMode, "Treat every frame as an unrelated image")
	flags.IntVarP(&opts.config.Landmark, "landmark", "l", opts.config.Landmark, "Landmark index to print (4 is the thumb tip)")
	flags.IntVar(&opts.config.HandIndex, "hand", opts.config.HandIndex, "Index of the detected hand to project")
	flags.BoolVar(&opts.noOverlay, "no-overlay", false, "Do not draw the hand skeleton")
	flags.BoolVar(&opts.noMarkers, "no-markers", false, "Do not draw landmark markers")

	return cmd
}

// runTracker starts a MediaPipe backed tracker and blocks until it stops.
func runTracker(ctx context.Context, config app.Config) error {
	d, err := detector.NewMediaPipeDetector(config.Detector)
	if err != nil {
		return fmt.Errorf("hand detection not available: %w", err)
	}

	tracker, err := app.New(config, d)
	if err != nil {
		d.Close()
		return err
	}

	return tracker.Run(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(runTracker).ExecuteContext(ctx); err != nil {
		log.Println(err)
		stop()
		os.Exit(1)
	}
}
