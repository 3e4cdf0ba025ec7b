package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/dolphinwatch/internal/tdoa"
	"github.com/tphakala/dolphinwatch/internal/trigger"
)

func sampleReport() trigger.Report {
	return trigger.Report{
		Left:   trigger.ChannelResult{Triggered: true, ProminenceDB: 15, PeakFreqHz: 12000},
		Right:  trigger.ChannelResult{Triggered: true, ProminenceDB: 14, PeakFreqHz: 12000},
		Action: trigger.ActionTDOA,
	}
}

func TestSaveAboveThresholdWritesToDetections(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0.7, 0.3, SpectrogramConfig{})

	left := []float32{0.1, 0.2, -0.1}
	right := []float32{-0.1, -0.2, 0.1}

	result, err := r.Save(sampleReport(), &tdoa.Result{Success: true, Direction: tdoa.DirectionLeft, AngleDeg: 5}, 0.91, 192000, left, right, left)
	require.NoError(t, err)
	assert.True(t, result.Saved)
	assert.Equal(t, r.OutputDir, result.Dir)

	jsonPath := result.WavPath[:len(result.WavPath)-len(".wav")] + ".json"
	_, err = os.Stat(jsonPath)
	require.NoError(t, err)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.True(t, rec.Detected)
	assert.Equal(t, 0.91, *rec.Score)
	assert.Equal(t, "left", *rec.Direction)
}

func TestSaveBelowThresholdGoesToBelowDir(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0.7, 0.3, SpectrogramConfig{})

	result, err := r.Save(sampleReport(), nil, 0.45, 192000, []float32{0.1}, []float32{0.1}, []float32{0.1})
	require.NoError(t, err)
	assert.True(t, result.Saved)
	assert.Equal(t, r.BelowThresholdDir, result.Dir)
}

func TestSaveBelowMinimumDoesNotSave(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0.7, 0.3, SpectrogramConfig{})

	result, err := r.Save(sampleReport(), nil, 0.1, 192000, []float32{0.1}, []float32{0.1}, []float32{0.1})
	require.NoError(t, err)
	assert.False(t, result.Saved)
}

func TestSaveProducesPlayableStereoWAV(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0.7, 0.3, SpectrogramConfig{})

	left := []float32{0.5, -0.5, 1.0, -1.0}
	right := []float32{-0.5, 0.5, -1.0, 1.0}

	result, err := r.Save(sampleReport(), nil, 0.9, 48000, left, right, left)
	require.NoError(t, err)

	f, err := os.Open(result.WavPath)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	require.True(t, dec.IsValidFile())
	assert.Equal(t, 2, int(dec.NumChans))
	assert.Equal(t, 48000, int(dec.SampleRate))
}

func TestSaveWindowIndexesByCounter(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0.7, 0.3, SpectrogramConfig{})

	result, err := r.SaveWindow(42, sampleReport(), nil, nil, 192000, []float32{0.1}, []float32{0.1}, []float32{0.1})
	require.NoError(t, err)
	assert.True(t, result.Saved)
	assert.Contains(t, filepath.Base(result.WavPath), "000042")
}

func TestSaveWithSpectrogramEnabledWritesPNG(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir, 0.7, 0.3, SpectrogramConfig{
		Enabled:     true,
		Width:       64,
		Height:      32,
		NFFT:        64,
		OverlapFrac: 0.5,
		MinFreqHz:   0,
		MaxFreqHz:   20000,
		Sobel:       true,
	})

	mono := make([]float32, 4096)
	for i := range mono {
		mono[i] = float32(i%100) / 100
	}

	result, err := r.Save(sampleReport(), nil, 0.9, 48000, mono, mono, mono)
	require.NoError(t, err)
	require.True(t, result.Saved)

	pngPath := result.WavPath[:len(result.WavPath)-len(".wav")] + ".png"
	_, err = os.Stat(pngPath)
	require.NoError(t, err)
}

func TestNextStemBreaksTiesWithinSameSecond(t *testing.T) {
	r := &Recorder{}
	a := r.nextStem()
	b := r.nextStem()
	assert.NotEqual(t, a, b)
}
