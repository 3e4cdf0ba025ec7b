// Package inference implements the client side of the task-server
// protocol: one TCP connection per request, an ASCII size header, a
// 3-byte ACK, the raw mono block, and a read-until-EOF scalar score.
package inference

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/dolphinwatch/internal/apperr"
)

// ElementSize names the wire encoding of each sample sent to the task
// server.
type ElementSize int

const (
	ElementFloat32 ElementSize = 4
	ElementInt16   ElementSize = 2
)

// Client dispatches mono blocks to one of several task-server slots,
// each reachable at Host:(PortBase+slot).
type Client struct {
	Host     string
	PortBase int
	Timeout  time.Duration
}

// NewClient builds a Client against the given host/base-port with a
// per-request deadline.
func NewClient(host string, portBase int, timeout time.Duration) *Client {
	return &Client{Host: host, PortBase: portBase, Timeout: timeout}
}

// Score sends a mono float32 block to the task server at the given
// slot and returns the scalar score it replies with.
func (c *Client) Score(ctx context.Context, slot int, sampleRate int, mono []float32) (float32, error) {
	payload := encodeFloat32LE(mono)
	return c.send(ctx, slot, sampleRate, ElementFloat32, payload)
}

func (c *Client) send(ctx context.Context, slot, sampleRate int, elemSize ElementSize, payload []byte) (float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.PortBase+slot))
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, apperr.New(err).Category(apperr.CategoryInference).Kind(apperr.KindUnreachable).Build()
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	header := fmt.Sprintf("%d,%d,%d", sampleRate, len(payload), int(elemSize))
	if _, err := conn.Write([]byte(header)); err != nil {
		return 0, apperr.InferenceProtocol(err)
	}

	ack := make([]byte, 3)
	if _, err := io.ReadFull(conn, ack); err != nil {
		if isTimeout(err) {
			return 0, apperr.InferenceTimeout(err)
		}
		return 0, apperr.InferenceProtocol(err)
	}
	if string(ack) != "ACK" {
		return 0, apperr.InferenceProtocol(fmt.Errorf("inference: expected ACK, got %q", ack))
	}

	if _, err := conn.Write(payload); err != nil {
		return 0, apperr.InferenceProtocol(err)
	}

	response, err := io.ReadAll(conn)
	if err != nil {
		if isTimeout(err) {
			return 0, apperr.InferenceTimeout(err)
		}
		return 0, apperr.InferenceProtocol(err)
	}

	score, err := parseScore(response)
	if err != nil {
		return 0, apperr.InferenceParse(err)
	}
	return score, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// parseScore strips whitespace and optional surrounding brackets, then
// parses the remaining text as a float32.
func parseScore(raw []byte) (float32, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)

	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("inference: malformed score payload %q: %w", raw, err)
	}
	return float32(v), nil
}

func encodeFloat32LE(data []float32) []byte {
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
