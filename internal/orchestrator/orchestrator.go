// Package orchestrator drives the sliding-window scheduler: fetch,
// window, trigger, dispatch to TDOA/inference, and persist, once per
// hop, forever until canceled.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/tphakala/dolphinwatch/internal/inference"
	"github.com/tphakala/dolphinwatch/internal/persistence"
	"github.com/tphakala/dolphinwatch/internal/ring"
	"github.com/tphakala/dolphinwatch/internal/tdoa"
	"github.com/tphakala/dolphinwatch/internal/trigger"
	"github.com/tphakala/dolphinwatch/internal/window"
)

// WindowSaveMode controls the debug "save analyzed windows"
// side-channel, independent of the normal threshold-routed save.
type WindowSaveMode string

const (
	WindowSaveNone    WindowSaveMode = "none"
	WindowSaveAll     WindowSaveMode = "all"
	WindowSaveTrigger WindowSaveMode = "trigger"
)

// Config bundles the tunables the orchestrator needs beyond the
// sub-component constructors it is handed directly.
type Config struct {
	HalfWindow time.Duration
	TDOAWinSec float64
	WindowSave WindowSaveMode
}

// Orchestrator composes the ring client, windowing buffer, trigger,
// TDOA estimator, inference client, and persistence recorder into the
// per-hop pipeline described by the state machine
// IDLE -> FETCH -> WINDOW -> TRIGGER -> (TDOA?) -> INFER -> DECIDE -> SLEEP.
type Orchestrator struct {
	Ring        *ring.Client
	Buffer      *window.Buffer
	Trigger     *trigger.Detector
	TDOA        *tdoa.Estimator
	Inference   *inference.Client
	Persistence *persistence.Recorder
	Config      Config
	Logger      *slog.Logger

	windowCounter int
}

// Run loops forever, processing one hop per iteration, until ctx is
// canceled. It returns nil on clean cancellation.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		start := time.Now()
		o.runHop(ctx, logger)

		elapsed := time.Since(start)
		sleep := o.Config.HalfWindow - elapsed
		if sleep < 0 {
			sleep = 0
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}

func (o *Orchestrator) runHop(ctx context.Context, logger *slog.Logger) {
	block, err := o.Ring.Fetch(ctx)
	if err != nil {
		logger.Warn("ring fetch failed", "error", err)
		return
	}

	win, warm := o.Buffer.Push(block)
	if !warm {
		logger.Debug("window below target length, warming up", "samples", win.Len())
		return
	}
	o.windowCounter++

	report := o.Trigger.Detect(win.Left, win.Right)

	if o.Config.WindowSave == WindowSaveAll || (o.Config.WindowSave == WindowSaveTrigger && report.Action != trigger.ActionNone) {
		if _, err := o.Persistence.SaveWindow(o.windowCounter, report, nil, nil, win.SampleRate, win.Left, win.Right, win.Left); err != nil {
			logger.Error("debug window save failed", "error", err)
		}
	}

	if report.Action == trigger.ActionNone {
		return
	}

	var tdoaResult *tdoa.Result
	var selectedLeft bool

	switch report.Action {
	case trigger.ActionTDOA:
		result := o.TDOA.Estimate(tdoaSlice(win.Left, win.SampleRate, o.Config.TDOAWinSec), tdoaSlice(win.Right, win.SampleRate, o.Config.TDOAWinSec), float64(win.SampleRate))
		tdoaResult = &result
		if !result.Success {
			logger.Warn("tdoa estimation failed, skipping inference")
			return
		}
		selectedLeft = result.Direction != tdoa.DirectionRight
	case trigger.ActionLeftOnly:
		selectedLeft = true
	case trigger.ActionRightOnly:
		selectedLeft = false
	}

	mono := win.Right
	if selectedLeft {
		mono = win.Left
	}

	score, err := o.Inference.Score(ctx, 0, win.SampleRate, mono)
	if err != nil {
		logger.Warn("inference call failed, no score this hop", "error", err)
		return
	}

	result, err := o.Persistence.Save(report, tdoaResult, float64(score), win.SampleRate, win.Left, win.Right, mono)
	if err != nil {
		logger.Error("persistence save failed", "error", err)
		return
	}
	if result.Saved {
		logger.Info("detection saved", "path", result.WavPath, "score", score)
	}
}

// tdoaSlice restricts a window to the last tdoaWinSec seconds, as the
// orchestrator hands TDOA a shorter slice than the full analysis
// window.
func tdoaSlice(data []float32, sampleRate int, tdoaWinSec float64) []float32 {
	n := int(float64(sampleRate) * tdoaWinSec)
	if n <= 0 || n >= len(data) {
		return data
	}
	return data[len(data)-n:]
}
