// Package stream reconstructs the final assistant answer from a server-sent
// event stream.
//
// The remote service streams progressively longer snapshots of the answer
// rather than deltas, so the collector keeps only the latest qualifying
// snapshot and never concatenates. Malformed events are skipped; the stream
// is consumed until the service marks it finished or the body ends.
package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const dataPrefix = "data: "

// chunk is the wire shape of one streamed event payload.
type chunk struct {
	Role    string `json:"role"`
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
	Finished bool `json:"finished"`
}

// Collector accumulates the answer snapshot line by line.
type Collector struct {
	text      string
	finished  bool
	malformed int
	logger    *slog.Logger
}

// CollectorOption customizes a collector.
type CollectorOption func(*Collector)

// WithLogger attaches a logger for skipped-event diagnostics.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCollector returns an empty collector.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Feed consumes one raw stream line and reports whether the stream is
// complete. Lines without the data prefix, lines that fail to decode, and
// events without a role are skipped; none of them is an error. An assistant
// event carrying non-empty text replaces the accumulated snapshot wholesale.
func (c *Collector) Feed(line string) (done bool) {
	if c.finished {
		return true
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return false
	}

	var event chunk
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		c.malformed++
		if c.logger != nil {
			c.logger.Debug("skipping malformed stream event", slog.String("error", err.Error()))
		}
		return false
	}
	if event.Role == "" {
		c.malformed++
		return false
	}

	if event.Role == "assistant" {
		if text := strings.ToValidUTF8(event.Content.Text, ""); text != "" {
			c.text = text
		}
	}
	if event.Finished {
		c.finished = true
	}
	return c.finished
}

// Text returns the reconstructed answer, trimmed of surrounding whitespace.
// An empty stream yields an empty string.
func (c *Collector) Text() string {
	return strings.TrimSpace(c.text)
}

// Finished reports whether the service marked the stream complete.
func (c *Collector) Finished() bool { return c.finished }

// Malformed reports how many events were skipped as undecodable.
func (c *Collector) Malformed() int { return c.malformed }

// Collect drains r line by line and returns the reconstructed answer.
// Consumption stops early once the stream is marked finished. Read failures
// surface as errors; a stream that ends without a completion marker or
// without any assistant text is not a failure and yields an empty string.
func Collect(r io.Reader, opts ...CollectorOption) (string, error) {
	c := NewCollector(opts...)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)
	for scanner.Scan() {
		if c.Feed(scanner.Text()) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return c.Text(), nil
}
