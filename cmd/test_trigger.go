package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/dolphinwatch/internal/conf"
	"github.com/tphakala/dolphinwatch/internal/inference"
	"github.com/tphakala/dolphinwatch/internal/ring"
	"github.com/tphakala/dolphinwatch/internal/tdoa"
	"github.com/tphakala/dolphinwatch/internal/trigger"
)

// testTriggerCommand builds the "test-trigger" diagnostic subcommand:
// fetch one block, run the trigger (and optionally TDOA/inference),
// and print the result as JSON for manual sanity checks.
func testTriggerCommand(configPath *string) *cobra.Command {
	var stereo, leftOnly, rightOnly, runTDOA, runDetect bool

	cmd := &cobra.Command{
		Use:   "test-trigger",
		Short: "Fetch one block and report the trigger/TDOA/detection result",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load(viper.GetViper(), *configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			ringClient := ring.NewClient(
				settings.Ring.Host, settings.Ring.Port,
				time.Duration(settings.Ring.DialTimeoutSec)*time.Second,
				time.Duration(settings.Ring.ReadTimeoutSec)*time.Second,
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			block, err := ringClient.Fetch(ctx)
			if err != nil {
				return fmt.Errorf("ring fetch: %w", err)
			}

			det := trigger.NewDetector(
				float64(block.SampleRate), settings.Trigger.BandMinHz, settings.Trigger.BandMaxHz, settings.Trigger.ProminenceDB,
			)
			report := det.Detect(block.Left, block.Right)

			out := map[string]any{"trigger": report}

			if (stereo || runTDOA) && report.Action == trigger.ActionTDOA {
				est := tdoa.NewEstimator(
					settings.TDOA.SpeedOfSoundMps, settings.TDOA.MicrophoneSpacingM, settings.TDOA.CenterThresholdSec,
					settings.TDOA.MinFreqHz, settings.TDOA.MaxFreqHz, settings.TDOA.InvertPhase, nil,
				)
				out["tdoa"] = est.Estimate(block.Left, block.Right, float64(block.SampleRate))
			}

			if runDetect {
				mono := block.Left
				if rightOnly {
					mono = block.Right
				}
				infClient := inference.NewClient(settings.Inference.Host, settings.Inference.PortBase, time.Duration(settings.Inference.TimeoutSec)*time.Second)
				score, err := infClient.Score(ctx, 0, block.SampleRate, mono)
				if err != nil {
					out["inference_error"] = err.Error()
				} else {
					out["score"] = score
				}
			}

			encoded, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	cmd.Flags().BoolVar(&stereo, "stereo", false, "same as --tdoa; the trigger always analyzes both channels")
	cmd.Flags().BoolVar(&leftOnly, "left", false, "score the left channel with --detect (the default); does not restrict the trigger")
	cmd.Flags().BoolVar(&rightOnly, "right", false, "score the right channel with --detect; does not restrict the trigger")
	cmd.Flags().BoolVar(&runTDOA, "tdoa", false, "also run TDOA estimation when both channels trigger")
	cmd.Flags().BoolVar(&runDetect, "detect", false, "also call the inference server for a score")

	return cmd
}
