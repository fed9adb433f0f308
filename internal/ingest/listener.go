package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Config configures the statsd UDP listener.
type Config struct {
	// Enabled enables the listener.
	// Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// Addr is the UDP listen address.
	// Defaults to "127.0.0.1:8125".
	Addr string `yaml:"addr"`

	// MaxDatagramSize is the read buffer size per packet.
	// Defaults to 65535.
	MaxDatagramSize int `yaml:"max_datagram_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8125",
		MaxDatagramSize: 65535,
	}
}

// IsEnabled returns whether the listener should run.
func (c *Config) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}

	return *c.Enabled
}

// ApplyDefaults applies default values to unset fields.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Addr == "" {
		c.Addr = defaults.Addr
	}

	if c.MaxDatagramSize <= 0 {
		c.MaxDatagramSize = defaults.MaxDatagramSize
	}
}

// Listener reads statsd datagrams from a UDP socket.
type Listener struct {
	log   logrus.FieldLogger
	cfg   Config
	rec   Recorder
	lines *prometheus.CounterVec // result (applied/rejected)

	conn net.PacketConn
	wg   sync.WaitGroup
}

// NewListener creates a Listener. reg may be nil.
func NewListener(
	log logrus.FieldLogger,
	cfg Config,
	rec Recorder,
	reg prometheus.Registerer,
) *Listener {
	cfg.ApplyDefaults()

	l := &Listener{
		log: log.WithField("component", "statsd"),
		cfg: cfg,
		rec: rec,
		lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nrmetrics",
				Name:      "ingest_lines_total",
				Help:      "Total statsd lines received by result.",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(l.lines)
	}

	return l
}

// Start binds the socket and begins reading.
func (l *Listener) Start(_ context.Context) error {
	conn, err := net.ListenPacket("udp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.cfg.Addr, err)
	}

	l.conn = conn

	l.wg.Add(1)

	go l.readLoop()

	l.log.WithField("addr", conn.LocalAddr().String()).Info("Statsd listener started")

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (l *Listener) Addr() string {
	if l.conn != nil {
		return l.conn.LocalAddr().String()
	}

	return l.cfg.Addr
}

// Stop closes the socket and waits for the read loop to exit.
func (l *Listener) Stop() error {
	if l.conn == nil {
		return nil
	}

	err := l.conn.Close()
	l.wg.Wait()

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}

func (l *Listener) readLoop() {
	defer l.wg.Done()

	buf := make([]byte, l.cfg.MaxDatagramSize)

	for {
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			l.log.WithError(err).Warn("Statsd read failed")

			continue
		}

		applied, errs := ParsePacket(l.rec, buf[:n])

		l.lines.WithLabelValues("applied").Add(float64(applied))

		if len(errs) > 0 {
			l.lines.WithLabelValues("rejected").Add(float64(len(errs)))
			l.log.WithError(errors.Join(errs...)).Debug("Rejected statsd lines")
		}
	}
}
