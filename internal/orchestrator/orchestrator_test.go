package orchestrator

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/dolphinwatch/internal/inference"
	"github.com/tphakala/dolphinwatch/internal/persistence"
	"github.com/tphakala/dolphinwatch/internal/ring"
	"github.com/tphakala/dolphinwatch/internal/tdoa"
	"github.com/tphakala/dolphinwatch/internal/trigger"
	"github.com/tphakala/dolphinwatch/internal/window"
)

func startFakeRingServer(t *testing.T, sampleRate int, seconds float64, ampLeft, ampRight, freqHz float64) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	n := int(float64(sampleRate) * seconds)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				reader := bufio.NewReader(conn)
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						return
					}
					cmd := trimNL(line)
					switch cmd {
					case "nframes":
						conn.Write([]byte(strconv.Itoa(n) + "\n"))
					case "len":
						conn.Write([]byte("1\n"))
					case "rate":
						conn.Write([]byte(strconv.Itoa(sampleRate) + "\n"))
					case "seconds":
						conn.Write([]byte("1\n"))
					case "dump":
						buf := make([]byte, 0, n*8)
						for i := 0; i < n; i++ {
							l := float32(ampLeft * mathSin(2*math.Pi*freqHz*float64(i)/float64(sampleRate)))
							r := float32(ampRight * mathSin(2*math.Pi*freqHz*float64(i)/float64(sampleRate)))
							var b [4]byte
							binary.LittleEndian.PutUint32(b[:], math.Float32bits(l))
							buf = append(buf, b[:]...)
							binary.LittleEndian.PutUint32(b[:], math.Float32bits(r))
							buf = append(buf, b[:]...)
						}
						conn.Write(buf)
						return
					}
				}
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func mathSin(x float64) float64 { return math.Sin(x) }

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func startFakeInferenceServer(t *testing.T, score string) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				reader := bufio.NewReader(conn)
				header := make([]byte, 0, 64)
				byteLen := 0
				for {
					b, err := reader.ReadByte()
					if err != nil {
						return
					}
					header = append(header, b)
					parts := splitComma(string(header))
					if len(parts) == 3 {
						if v, err := strconv.Atoi(parts[2]); err == nil && (v == 2 || v == 4) {
							byteLen, _ = strconv.Atoi(parts[1])
							break
						}
					}
				}
				conn.Write([]byte("ACK"))
				payload := make([]byte, byteLen)
				total := 0
				for total < len(payload) {
					nRead, err := reader.Read(payload[total:])
					total += nRead
					if err != nil {
						return
					}
				}
				conn.Write([]byte(score))
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func splitComma(s string) []string {
	var parts []string
	cur := ""
	for _, c := range s {
		if c == ',' {
			parts = append(parts, cur)
			cur = ""
		} else {
			cur += string(c)
		}
	}
	parts = append(parts, cur)
	return parts
}

func TestRunHopSilenceSkipsInferenceAndSave(t *testing.T) {
	sampleRate := 48000
	ringHost, ringPort := startFakeRingServer(t, sampleRate, 0.8, 0, 0, 12000)
	infHost, infPort := startFakeInferenceServer(t, "0.9")

	dir := t.TempDir()
	o := &Orchestrator{
		Ring:        ring.NewClient(ringHost, ringPort, time.Second, time.Second),
		Buffer:      window.NewBuffer(sampleRate, 0.8, 0.4),
		Trigger:     trigger.NewDetector(float64(sampleRate), 3000, 25000, 12.0),
		TDOA:        tdoa.NewEstimator(1460, 0.46, 0.000061, 5000, 25000, false, nil),
		Inference:   inference.NewClient(infHost, infPort, time.Second),
		Persistence: persistence.NewRecorder(dir, 0.7, 0.3, persistence.SpectrogramConfig{}),
		Config:      Config{HalfWindow: 400 * time.Millisecond, TDOAWinSec: 0.8},
	}

	o.runHop(context.Background(), testLogger())
	o.runHop(context.Background(), testLogger())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "Detections", e.Name())
	}
}

func TestRunHopTriggeredTonePersistsDetection(t *testing.T) {
	sampleRate := 48000
	ringHost, ringPort := startFakeRingServer(t, sampleRate, 0.8, 0.5, 0.5, 12000)
	infHost, infPort := startFakeInferenceServer(t, "0.91")

	dir := t.TempDir()
	o := &Orchestrator{
		Ring:        ring.NewClient(ringHost, ringPort, time.Second, time.Second),
		Buffer:      window.NewBuffer(sampleRate, 0.8, 0.4),
		Trigger:     trigger.NewDetector(float64(sampleRate), 3000, 25000, 12.0),
		TDOA:        tdoa.NewEstimator(1460, 0.46, 0.000061, 5000, 25000, false, nil),
		Inference:   inference.NewClient(infHost, infPort, time.Second),
		Persistence: persistence.NewRecorder(dir, 0.7, 0.3, persistence.SpectrogramConfig{}),
		Config:      Config{HalfWindow: 400 * time.Millisecond, TDOAWinSec: 0.8},
	}

	o.runHop(context.Background(), testLogger())
	o.runHop(context.Background(), testLogger())

	entries, err := os.ReadDir(o.Persistence.OutputDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
