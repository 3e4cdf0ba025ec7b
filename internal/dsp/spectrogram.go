package dsp

import "sort"

// Spectrogram holds a short-time Fourier transform result as
// Data[freqBin][timeFrame] magnitude in decibels, alongside the
// frequency (Hz) each row corresponds to.
type Spectrogram struct {
	Data  [][]float64
	Freqs []float64
}

// Generate computes a magnitude spectrogram of signal using a Hann
// window of length nfft, hopping by (1-overlapFrac)*nfft samples per
// frame, with dB = 20*log10(|X|+1e-12).
func Generate(signal []float64, sampleRate float64, nfft int, overlapFrac float64) *Spectrogram {
	if nfft <= 0 {
		nfft = 512
	}
	hop := int(float64(nfft) * (1 - overlapFrac))
	if hop <= 0 {
		hop = 1
	}

	var frames [][]float64
	for start := 0; start+nfft <= len(signal); start += hop {
		windowed := HannWindow(signal[start : start+nfft])
		coeffs := RFFT(windowed, nfft)
		frames = append(frames, MagnitudeDB(coeffs, 1e-12))
	}

	bins := nfft/2 + 1
	data := make([][]float64, bins)
	for b := 0; b < bins; b++ {
		row := make([]float64, len(frames))
		for t, frame := range frames {
			row[t] = frame[b]
		}
		data[b] = row
	}

	return &Spectrogram{
		Data:  data,
		Freqs: RFFTFrequencies(nfft, sampleRate),
	}
}

// Crop restricts the spectrogram to the frequency bins within
// [minHz, maxHz], inclusive, using the same binary-search semantics as
// numpy.searchsorted (side="left" for minHz, side="right" for maxHz).
func (s *Spectrogram) Crop(minHz, maxHz float64) *Spectrogram {
	lo := sort.SearchFloat64s(s.Freqs, minHz)
	hi := sort.Search(len(s.Freqs), func(i int) bool { return s.Freqs[i] > maxHz })
	if hi > len(s.Freqs) {
		hi = len(s.Freqs)
	}
	if lo >= hi {
		return &Spectrogram{Data: nil, Freqs: nil}
	}
	return &Spectrogram{
		Data:  s.Data[lo:hi],
		Freqs: s.Freqs[lo:hi],
	}
}

// Normalize rescales the block to [0, 1] via (x - min) / (max - min),
// guarding the divide so a silent/flat block never produces NaN or Inf.
func (s *Spectrogram) Normalize() [][]float64 {
	if len(s.Data) == 0 {
		return nil
	}

	min, max := s.Data[0][0], s.Data[0][0]
	for _, row := range s.Data {
		for _, v := range row {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}

	denom := max - min
	if denom == 0 {
		denom = 1
	}

	out := make([][]float64, len(s.Data))
	for i, row := range s.Data {
		normRow := make([]float64, len(row))
		for j, v := range row {
			normRow[j] = (v - min) / denom
		}
		out[i] = normRow
	}
	return out
}
