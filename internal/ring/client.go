// Package ring implements a client for the ring-buffer server's
// line-and-dump protocol: a handful of newline-terminated text
// commands followed by a raw float32 interleaved-stereo dump.
package ring

import (
	"bufio"
	"context"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/dolphinwatch/internal/apperr"
)

// StereoBlock is one fetched chunk of interleaved stereo audio: equal
// length left/right slices at a fixed sample rate.
type StereoBlock struct {
	SampleRate int
	Left       []float32
	Right      []float32
}

// Client talks to a ring server at Host:Port, opening a fresh TCP
// connection per Fetch call.
type Client struct {
	Host string
	Port int

	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// NewClient builds a Client with the given network address and
// per-operation timeouts.
func NewClient(host string, port int, dialTimeout, readTimeout time.Duration) *Client {
	return &Client{Host: host, Port: port, DialTimeout: dialTimeout, ReadTimeout: readTimeout}
}

const bytesPerFloat = 4

// Fetch runs the full nframes/len/rate/seconds/dump exchange and
// returns exactly F*B interleaved stereo frames, split into left and
// right channels.
func (c *Client) Fetch(ctx context.Context) (*StereoBlock, error) {
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))

	dialer := net.Dialer{Timeout: c.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, apperr.RingUnreachable(err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if c.ReadTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.ReadTimeout))
	}

	reader := bufio.NewReader(conn)

	nframes, err := sendAndReadInt(conn, reader, "nframes")
	if err != nil {
		return nil, err
	}
	nblocks, err := sendAndReadInt(conn, reader, "len")
	if err != nil {
		return nil, err
	}
	sampleRate, err := sendAndReadInt(conn, reader, "rate")
	if err != nil {
		return nil, err
	}
	// The "seconds" round-trip is kept for wire compatibility; its
	// reply is discarded and may be absent or non-numeric.
	if err := send(conn, "seconds"); err != nil {
		return nil, apperr.RingProtocol(err)
	}
	_, _ = reader.ReadString('\n')

	if nframes <= 0 || nblocks <= 0 {
		return nil, apperr.RingProtocol(apperr.NewStd("ring: non-positive nframes or blocks"))
	}

	if err := send(conn, "dump"); err != nil {
		return nil, apperr.RingProtocol(err)
	}

	blockSize := bytesPerFloat * nframes * 2
	totalBytes := blockSize * nblocks
	raw := make([]byte, totalBytes)
	if _, err := readFull(reader, raw); err != nil {
		return nil, apperr.RingProtocol(err)
	}

	frames := nframes * nblocks
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		off := i * 2 * bytesPerFloat
		left[i] = decodeFloat32LE(raw[off : off+4])
		right[i] = decodeFloat32LE(raw[off+4 : off+8])
	}

	return &StereoBlock{SampleRate: sampleRate, Left: left, Right: right}, nil
}

func send(conn net.Conn, cmd string) error {
	_, err := conn.Write([]byte(cmd + "\n"))
	return err
}

func sendAndReadInt(conn net.Conn, reader *bufio.Reader, cmd string) (int, error) {
	if err := send(conn, cmd); err != nil {
		return 0, apperr.RingProtocol(err)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, apperr.RingProtocol(err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, apperr.RingProtocol(err)
	}
	return n, nil
}

func readFull(reader *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := reader.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func decodeFloat32LE(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}
