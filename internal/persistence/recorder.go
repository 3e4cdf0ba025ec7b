// Package persistence writes detection records (stereo WAV plus a
// JSON sidecar) under timestamp-named stems in a Detections directory,
// with a below-threshold bucket and an optional debug "save every
// window" mode.
package persistence

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/dolphinwatch/internal/apperr"
	"github.com/tphakala/dolphinwatch/internal/dsp"
	"github.com/tphakala/dolphinwatch/internal/tdoa"
	"github.com/tphakala/dolphinwatch/internal/trigger"
)

// Record is the full detection event as written to the JSON sidecar.
type Record struct {
	Timestamp string       `json:"timestamp"`
	Trigger   TriggerJSON  `json:"trigger"`
	Direction *string      `json:"direction"`
	AngleDeg  *float64     `json:"angle_deg"`
	Detected  bool         `json:"detected"`
	Score     *float64     `json:"score"`
}

// TriggerJSON is the JSON-stable projection of a trigger.Report.
type TriggerJSON struct {
	Left   bool   `json:"left"`
	Right  bool   `json:"right"`
	Action string `json:"action"`
}

// SpectrogramConfig controls the optional third "<stem>.png" output
// rendered alongside the WAV/JSON pair, mirroring DiNardo/main.py's
// `--sobel` flag and spectrogram_to_image band-crop defaults.
type SpectrogramConfig struct {
	Enabled     bool
	Width       int
	Height      int
	NFFT        int
	OverlapFrac float64
	MinFreqHz   float64
	MaxFreqHz   float64
	Sobel       bool
}

// Recorder owns the output directory layout and the bookkeeping needed
// to break filename collisions within the same second.
type Recorder struct {
	OutputDir          string
	BelowThresholdDir  string
	WindowSaveDir      string
	DetectionThreshold float64
	MinThreshold       float64
	Spectrogram        SpectrogramConfig

	mu       sync.Mutex
	lastBase string
	lastSeq  int
}

// NewRecorder builds a Recorder rooted at outputDir, with sibling
// below-threshold and window-save directories.
func NewRecorder(outputDir string, detectionThreshold, minThreshold float64, spectrogram SpectrogramConfig) *Recorder {
	return &Recorder{
		OutputDir:          filepath.Join(outputDir, "Detections"),
		BelowThresholdDir:  filepath.Join(outputDir, "Detections_below_threshold"),
		WindowSaveDir:      filepath.Join(outputDir, "window_saves"),
		DetectionThreshold: detectionThreshold,
		MinThreshold:       minThreshold,
		Spectrogram:        spectrogram,
	}
}

// SaveResult reports where (if anywhere) a Save call wrote files.
type SaveResult struct {
	Saved   bool
	WavPath string
	Dir     string
}

// Save routes a trigger/TDOA/score triple to the correct bucket by
// threshold, writes "<stem>.wav" and "<stem>.json" (and, when enabled,
// "<stem>.png"), and reports the outcome. A score below MinThreshold
// writes nothing. mono is the single channel that was actually scored,
// used to render the optional spectrogram.
func (r *Recorder) Save(report trigger.Report, tdoaResult *tdoa.Result, score float64, sampleRate int, left, right, mono []float32) (SaveResult, error) {
	var dir string
	detected := score >= r.DetectionThreshold
	switch {
	case score >= r.DetectionThreshold:
		dir = r.OutputDir
	case score >= r.MinThreshold:
		dir = r.BelowThresholdDir
	default:
		return SaveResult{}, nil
	}

	return r.write(dir, report, tdoaResult, &score, detected, sampleRate, left, right, mono)
}

// SaveWindow writes every analyzed window regardless of outcome, for
// the debug "save all" mode, indexed by a monotonic window counter
// rather than threshold routing.
func (r *Recorder) SaveWindow(windowCounter int, report trigger.Report, tdoaResult *tdoa.Result, score *float64, sampleRate int, left, right, mono []float32) (SaveResult, error) {
	stem := fmt.Sprintf("window_%s_%06d", time.Now().Format("20060102-150405"), windowCounter)
	return r.writeStem(r.WindowSaveDir, stem, report, tdoaResult, score, false, sampleRate, left, right, mono)
}

func (r *Recorder) write(dir string, report trigger.Report, tdoaResult *tdoa.Result, score *float64, detected bool, sampleRate int, left, right, mono []float32) (SaveResult, error) {
	stem := r.nextStem()
	return r.writeStem(dir, stem, report, tdoaResult, score, detected, sampleRate, left, right, mono)
}

// nextStem builds a local-time timestamp stem, appending a counter
// suffix only when the base actually collides with the previous call's
// base (i.e. two saves landed in the same second), rather than
// unconditionally on every call after the first.
func (r *Recorder) nextStem() string {
	base := time.Now().Format("2006-01-02_15-04-05")

	r.mu.Lock()
	defer r.mu.Unlock()

	if base != r.lastBase {
		r.lastBase = base
		r.lastSeq = 0
		return base
	}
	r.lastSeq++
	return fmt.Sprintf("%s-%d", base, r.lastSeq)
}

func (r *Recorder) writeStem(dir, stem string, report trigger.Report, tdoaResult *tdoa.Result, score *float64, detected bool, sampleRate int, left, right, mono []float32) (SaveResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SaveResult{}, apperr.PersistenceIO(fmt.Errorf("persistence: creating %s: %w", dir, err))
	}

	wavPath := filepath.Join(dir, stem+".wav")
	jsonPath := filepath.Join(dir, stem+".json")

	if err := writeStereoWAV(wavPath, sampleRate, left, right); err != nil {
		return SaveResult{}, apperr.PersistenceIO(err)
	}

	record := buildRecord(report, tdoaResult, score, detected)
	if err := writeJSONAtomic(jsonPath, record); err != nil {
		return SaveResult{}, apperr.PersistenceIO(err)
	}

	if r.Spectrogram.Enabled && len(mono) > 0 {
		pngPath := filepath.Join(dir, stem+".png")
		if err := r.writeSpectrogramPNG(pngPath, sampleRate, mono); err != nil {
			return SaveResult{}, apperr.PersistenceIO(err)
		}
	}

	return SaveResult{Saved: true, WavPath: wavPath, Dir: dir}, nil
}

// writeSpectrogramPNG renders mono's band-cropped, normalized
// spectrogram into a resized grayscale image (optionally passed
// through the vertical Sobel kernel) and writes it atomically.
func (r *Recorder) writeSpectrogramPNG(path string, sampleRate int, mono []float32) error {
	f64 := make([]float64, len(mono))
	for i, v := range mono {
		f64[i] = float64(v)
	}

	spec := dsp.Generate(f64, float64(sampleRate), r.Spectrogram.NFFT, r.Spectrogram.OverlapFrac)
	cropped := spec.Crop(r.Spectrogram.MinFreqHz, r.Spectrogram.MaxFreqHz)
	img := dsp.ToGray(cropped.Normalize(), r.Spectrogram.Width, r.Spectrogram.Height)
	if r.Spectrogram.Sobel {
		grid := dsp.SobelVertical(grayToGrid(img))
		// grid rows run top-down (highest frequency first); ToGray expects
		// row 0 = lowest frequency, so reverse them before it flips again.
		for i, j := 0, len(grid)-1; i < j; i, j = i+1, j-1 {
			grid[i], grid[j] = grid[j], grid[i]
		}
		img = dsp.ToGray(grid, r.Spectrogram.Width, r.Spectrogram.Height)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("persistence: creating temp png %s: %w", tmp, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("persistence: encoding png: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persistence: closing png file: %w", err)
	}
	return os.Rename(tmp, path)
}

// grayToGrid reads back an already-flipped, already-resized *image.Gray
// into a [0,1]-normalized grid, so the Sobel kernel can be applied in
// image space (post-resize), matching DiNardo/dsp.py's
// apply_sobel_vertical, which runs on the rendered image, not the raw
// spectrogram.
func grayToGrid(img *image.Gray) [][]float64 {
	bounds := img.Bounds()
	grid := make([][]float64, bounds.Dy())
	for y := 0; y < bounds.Dy(); y++ {
		row := make([]float64, bounds.Dx())
		for x := 0; x < bounds.Dx(); x++ {
			row[x] = float64(img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y) / 255
		}
		grid[y] = row
	}
	return grid
}

func buildRecord(report trigger.Report, tdoaResult *tdoa.Result, score *float64, detected bool) Record {
	record := Record{
		Timestamp: time.Now().Format(time.RFC3339),
		Trigger: TriggerJSON{
			Left:   report.Left.Triggered,
			Right:  report.Right.Triggered,
			Action: string(report.Action),
		},
		Detected: detected,
		Score:    score,
	}
	if tdoaResult != nil && tdoaResult.Success {
		dir := string(tdoaResult.Direction)
		angle := tdoaResult.AngleDeg
		record.Direction = &dir
		record.AngleDeg = &angle
	}
	return record
}

// writeStereoWAV encodes two equal-length float32 channels in [-1,1]
// as 16-bit PCM stereo, clipping/rounding per clip(round(x*32767),
// -32768, 32767).
func writeStereoWAV(path string, sampleRate int, left, right []float32) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("persistence: creating temp wav %s: %w", tmp, err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)

	n := len(left)
	data := make([]int, n*2)
	for i := 0; i < n; i++ {
		data[i*2] = floatToPCM16(left[i])
		data[i*2+1] = floatToPCM16(right[i])
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("persistence: writing wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("persistence: closing wav encoder: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persistence: closing wav file: %w", err)
	}

	return os.Rename(tmp, path)
}

func floatToPCM16(x float32) int {
	v := math.Round(float64(x) * 32767)
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int(v)
}

func writeJSONAtomic(path string, record Record) error {
	tmp := path + ".tmp"
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshaling record: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("persistence: writing temp json %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
