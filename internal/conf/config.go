// Package conf loads and holds the immutable runtime configuration for
// dolphinwatch: a typed Settings struct populated from a YAML file,
// environment variables, and CLI flags via viper.
package conf

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/viper"
)

// Settings is the full, immutable configuration for a detector run.
// Zero values are never used directly; Load always applies Defaults
// first.
type Settings struct {
	Debug bool // enable verbose/trace logging

	Ring struct {
		Host           string // ring buffer server host
		Port           int    // ring buffer server port
		DialTimeoutSec int    // TCP dial timeout in seconds
		ReadTimeoutSec int    // per-command read timeout in seconds
	}

	Window struct {
		SampleRate int     // expected sample rate in Hz; sizes windows and designs trigger/highpass, 0 is not replaced by the ring server's rate
		WindowSec  float64 // sliding window length in seconds
		HopSec     float64 // hop (and ring poll cadence) in seconds
	}

	Trigger struct {
		BandMinHz        float64 // lower edge of prominence band, Hz
		BandMaxHz        float64 // upper edge of prominence band, Hz
		ProminenceDB     float64 // trigger threshold, dB above band median
	}

	TDOA struct {
		SpeedOfSoundMps    float64 // propagation speed, m/s (1460 for water)
		MicrophoneSpacingM float64 // hydrophone spacing, m
		HighpassCutoffHz   float64 // Butterworth highpass cutoff, Hz
		CenterThresholdSec float64 // |tdoa| below this is reported as centered
		MinFreqHz          float64 // cross-spectrum band-limit low edge, Hz
		MaxFreqHz          float64 // cross-spectrum band-limit high edge, Hz
		InvertPhase        bool    // negate the right channel before cross-correlation
	}

	Inference struct {
		Host           string // inference task server host
		PortBase       int    // base port; actual port is PortBase+slot
		TimeoutSec     int    // per-request deadline in seconds
		DetectionThreshold float64 // score at/above which a detection is saved
	}

	Persistence struct {
		OutputDir      string // root directory for saved detections
		SaveSpectrogram bool  // also render and save a PNG spectrogram
		SpectrogramW   int    // spectrogram image width in px
		SpectrogramH   int    // spectrogram image height in px
		NFFT           int    // FFT size for spectrogram generation
		OverlapFrac    float64 // STFT hop overlap fraction
		Sobel          bool    // apply the vertical Sobel kernel to the saved spectrogram
	}

	Log LogConfig
}

// LogConfig controls structured-log destination and rotation, mirrored
// on the teacher's own log configuration shape.
type LogConfig struct {
	Enabled  bool
	Path     string
	MaxSizeMB int
	MaxBackups int
	MaxAgeDays int
}

var (
	once     sync.Once
	instance *Settings
)

// Defaults returns a Settings populated with the constants recorded in
// the design notes (derived from the original detector's config
// module): 3-25kHz prominence band at 12dB, 1460 m/s speed of sound in
// water, 0.46m hydrophone spacing, 1kHz highpass, 0.8s/0.4s window/hop,
// and a 0.5 detection threshold.
func Defaults() *Settings {
	s := &Settings{}
	s.Ring.Host = "127.0.0.1"
	s.Ring.Port = 8888
	s.Ring.DialTimeoutSec = 5
	s.Ring.ReadTimeoutSec = 10

	s.Window.SampleRate = 192000
	s.Window.WindowSec = 0.8
	s.Window.HopSec = 0.4

	s.Trigger.BandMinHz = 3000
	s.Trigger.BandMaxHz = 25000
	s.Trigger.ProminenceDB = 12.0

	s.TDOA.SpeedOfSoundMps = 1460
	s.TDOA.MicrophoneSpacingM = 0.46
	s.TDOA.HighpassCutoffHz = 1000
	s.TDOA.CenterThresholdSec = 0.000061
	s.TDOA.MinFreqHz = 5000
	s.TDOA.MaxFreqHz = 25000
	s.TDOA.InvertPhase = false

	s.Inference.Host = "127.0.0.1"
	s.Inference.PortBase = 12001
	s.Inference.TimeoutSec = 10
	s.Inference.DetectionThreshold = 0.5

	s.Persistence.OutputDir = "./detections"
	s.Persistence.SaveSpectrogram = false
	s.Persistence.SpectrogramW = 300
	s.Persistence.SpectrogramH = 150
	s.Persistence.NFFT = 512
	s.Persistence.OverlapFrac = 0.5
	s.Persistence.Sobel = false

	s.Log.Enabled = true
	s.Log.Path = "dolphinwatch.log"
	s.Log.MaxSizeMB = 10
	s.Log.MaxBackups = 3
	s.Log.MaxAgeDays = 28

	return s
}

// Load builds Settings from defaults, then an optional config file on
// disk (if present), then environment variables prefixed DOLPHINWATCH_,
// then whatever flags v already has bound. The result is cached; later
// calls to Load return the first computed Settings.
func Load(v *viper.Viper, configPath string) (*Settings, error) {
	var err error
	once.Do(func() {
		instance, err = load(v, configPath)
	})
	return instance, err
}

func load(v *viper.Viper, configPath string) (*Settings, error) {
	settings := Defaults()

	v.SetEnvPrefix("DOLPHINWATCH")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("conf: reading config file %q: %w", configPath, err)
			}
		}
	}

	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("conf: unmarshaling settings: %w", err)
	}

	return settings, nil
}

// Reset clears the cached Settings singleton. It exists for tests that
// need to Load more than once in the same process.
func Reset() {
	once = sync.Once{}
	instance = nil
}
