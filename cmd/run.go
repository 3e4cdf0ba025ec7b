package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/dolphinwatch/internal/conf"
	"github.com/tphakala/dolphinwatch/internal/dsp"
	"github.com/tphakala/dolphinwatch/internal/inference"
	"github.com/tphakala/dolphinwatch/internal/logging"
	"github.com/tphakala/dolphinwatch/internal/orchestrator"
	"github.com/tphakala/dolphinwatch/internal/persistence"
	"github.com/tphakala/dolphinwatch/internal/ring"
	"github.com/tphakala/dolphinwatch/internal/tdoa"
	"github.com/tphakala/dolphinwatch/internal/trigger"
	"github.com/tphakala/dolphinwatch/internal/window"
)

// runCommand builds the "run" subcommand that starts the orchestrator
// and blocks until a shutdown signal or fatal error.
func runCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the real-time detection orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load(viper.GetViper(), *configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			closeLog, err := logging.Init(settings.Log, settings.Debug)
			if err != nil {
				return fmt.Errorf("logging: %w", err)
			}
			defer closeLog()

			o, err := buildOrchestrator(settings)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := probeRing(ctx, o); err != nil {
				return err
			}

			logging.Info("starting orchestrator", "ring", fmt.Sprintf("%s:%d", settings.Ring.Host, settings.Ring.Port))
			return o.Run(ctx)
		},
	}
	return cmd
}

func buildOrchestrator(settings *conf.Settings) (*orchestrator.Orchestrator, error) {
	highpass, err := newHighpassOrNil(settings)
	if err != nil {
		logging.Warn("highpass design failed, continuing without pre-filtering", "error", err)
	}

	sampleRate := settings.Window.SampleRate
	return &orchestrator.Orchestrator{
		Ring: ring.NewClient(
			settings.Ring.Host, settings.Ring.Port,
			time.Duration(settings.Ring.DialTimeoutSec)*time.Second,
			time.Duration(settings.Ring.ReadTimeoutSec)*time.Second,
		),
		Buffer: window.NewBuffer(sampleRate, settings.Window.WindowSec, settings.Window.HopSec),
		Trigger: trigger.NewDetector(
			float64(sampleRate), settings.Trigger.BandMinHz, settings.Trigger.BandMaxHz, settings.Trigger.ProminenceDB,
		),
		TDOA: tdoa.NewEstimator(
			settings.TDOA.SpeedOfSoundMps, settings.TDOA.MicrophoneSpacingM, settings.TDOA.CenterThresholdSec,
			settings.TDOA.MinFreqHz, settings.TDOA.MaxFreqHz, settings.TDOA.InvertPhase, highpass,
		),
		Inference: inference.NewClient(
			settings.Inference.Host, settings.Inference.PortBase, time.Duration(settings.Inference.TimeoutSec)*time.Second,
		),
		Persistence: persistence.NewRecorder(
			settings.Persistence.OutputDir, settings.Inference.DetectionThreshold, settings.Inference.DetectionThreshold*0.6,
			persistence.SpectrogramConfig{
				Enabled:     settings.Persistence.SaveSpectrogram,
				Width:       settings.Persistence.SpectrogramW,
				Height:      settings.Persistence.SpectrogramH,
				NFFT:        settings.Persistence.NFFT,
				OverlapFrac: settings.Persistence.OverlapFrac,
				MinFreqHz:   settings.TDOA.MinFreqHz,
				MaxFreqHz:   settings.TDOA.MaxFreqHz,
				Sobel:       settings.Persistence.Sobel,
			},
		),
		Config: orchestrator.Config{
			HalfWindow: time.Duration(settings.Window.HopSec * float64(time.Second)),
			TDOAWinSec: settings.Window.WindowSec,
		},
		Logger: logging.Default(),
	}, nil
}

func newHighpassOrNil(settings *conf.Settings) (*dsp.HighpassCascade, error) {
	return dsp.NewButterworthHighpass(float64(settings.Window.SampleRate), settings.TDOA.HighpassCutoffHz)
}

// probeRing does one short-timeout ring fetch before entering the main
// loop, so a misconfigured or down ring server fails fast at startup
// (exit code 2) instead of retrying silently inside the hop loop.
func probeRing(ctx context.Context, o *orchestrator.Orchestrator) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := o.Ring.Fetch(probeCtx)
	return err
}
