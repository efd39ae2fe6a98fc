// Package statsd emits the portal's operational metrics over the StatsD
// line protocol. The portal produces a handful of low-cardinality series
// (request counts, latency, an in-flight gauge), so a small UDP writer is
// all the transport it needs.
package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Series emitted by the portal. Declared here so the HTTP middleware and
// the dashboards agree on the names.
const (
	MetricHTTPRequests        = "http.requests"
	MetricHTTPRequestDuration = "http.request_duration"
	MetricHTTPInflight        = "http.inflight"
)

// Sink is the minimal surface the portal's instrumentation points need.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Config describes the StatsD endpoint the portal reports to.
type Config struct {
	Enabled    bool
	Address    string
	Prefix     string
	Logger     *slog.Logger
	GlobalTags map[string]string
}

// Client writes StatsD lines to a UDP endpoint. Safe for concurrent use;
// all methods are no-ops on a nil receiver so callers never need to guard
// the disabled case.
type Client struct {
	prefix     string
	globalTags map[string]string
	logger     *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	enabled bool
}

var _ Sink = (*Client)(nil)

// NewClient dials the configured endpoint. A disabled or address-less
// config yields an inert client rather than an error; only an actual dial
// failure is fatal.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "."),
		globalTags: copyTags(cfg.GlobalTags),
		logger:     logger,
	}

	address := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || address == "" {
		return client, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}
	client.conn = conn
	client.enabled = true

	return client, nil
}

// Enabled reports whether the client actively emits metrics.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled && c.conn != nil
}

// Count increments a counter series.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	if c == nil {
		return
	}
	c.emit(name, strconv.FormatInt(value, 10), "c", tags)
}

// Gauge reports the current value of a gauge series.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	if c == nil {
		return
	}
	c.emit(name, formatFloat(value), "g", tags)
}

// Timing reports a duration in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	if c == nil {
		return
	}
	ms := float64(value) / float64(time.Millisecond)
	c.emit(name, formatFloat(ms), "ms", tags)
}

// Close releases the UDP connection. Further writes become no-ops.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) emit(name, value, unit string, tags map[string]string) {
	series := c.series(name)
	if series == "" {
		return
	}

	var line strings.Builder
	line.WriteString(series)
	line.WriteByte(':')
	line.WriteString(value)
	line.WriteByte('|')
	line.WriteString(unit)
	line.WriteString(formatTags(c.globalTags, tags))

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled || c.conn == nil {
		return
	}
	if _, err := c.conn.Write([]byte(line.String())); err != nil {
		// UDP metrics are fire-and-forget; a lost line is not worth more
		// than a debug entry.
		c.logger.Debug("statsd write failed", "series", series, "error", err)
	}
}

func (c *Client) series(name string) string {
	n := normalizeMetricName(name)
	if n == "" {
		return ""
	}
	if c.prefix == "" {
		return n
	}
	return c.prefix + "." + n
}

// normalizeMetricName maps free-form names onto the dotted StatsD
// convention: spaces become underscores, path separators become dots, and
// empty segments collapse.
func normalizeMetricName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case ' ':
			return '_'
		case '/':
			return '.'
		default:
			return r
		}
	}, strings.TrimSpace(name))

	segments := strings.FieldsFunc(mapped, func(r rune) bool { return r == '.' })
	return strings.Join(segments, ".")
}

// formatTags renders the DogStatsD tag suffix. Local tags override global
// ones on key collision; keys are sorted so output is deterministic.
func formatTags(global, local map[string]string) string {
	merged := make(map[string]string, len(global)+len(local))
	for _, tags := range [2]map[string]string{global, local} {
		for k, v := range tags {
			if key := strings.TrimSpace(k); key != "" {
				merged[key] = strings.TrimSpace(v)
			}
		}
	}
	if len(merged) == 0 {
		return ""
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + ":" + merged[k]
	}
	return "|#" + strings.Join(pairs, ",")
}

func copyTags(tags map[string]string) map[string]string {
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		if key := strings.TrimSpace(k); key != "" {
			cp[key] = strings.TrimSpace(v)
		}
	}
	return cp
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
