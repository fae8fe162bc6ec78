package juntek

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bikerpatch/juntek_monitor/ports"
)

const (
	DefaultPollInterval = 60 * time.Second

	maximumFailedQueries = 3
	maxReads             = 8
	maxBuffered          = 512
)

var ErrTimeout = errors.New("no measurement frame from monitor")

// Publisher is the bridge side of the monitor.
type Publisher interface {
	Announce(deviceName string) error
	Publish() error
}

// Monitor polls a Juntek KG series battery monitor over a CommunicationPort
// and feeds the decoded readings to the bridge.
type Monitor struct {
	name      string
	address   int
	port      ports.CommunicationPort
	data      *JTData
	publisher Publisher
	logger    zerolog.Logger

	mu     sync.Mutex
	buf    []byte
	frames int
}

func NewMonitor(name string, address int, port ports.CommunicationPort, data *JTData, publisher Publisher, logger zerolog.Logger) *Monitor {
	return &Monitor{
		name:      name,
		address:   address,
		port:      port,
		data:      data,
		publisher: publisher,
		logger:    logger.With().Str("device", name).Logger(),
	}
}

// Callback decodes every complete line in the buffered input. Incomplete
// lines are kept for the next call. The first decode error is returned after
// all lines are processed.
func (m *Monitor) Callback(raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf = append(m.buf, raw...)

	var firstErr error
	for {
		i := bytes.IndexByte(m.buf, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimSpace(m.buf[:i]))
		m.buf = m.buf[i+1:]
		if line == "" {
			continue
		}

		r, err := ParseFrame(line)
		switch {
		case errors.Is(err, ErrUnknownFrame):
			m.logger.Debug().Str("line", line).Msg("ignoring frame")
			continue
		case err != nil:
			m.logger.Warn().Err(err).Str("line", line).Msg("failed to decode frame")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		m.data.Update(r)
		m.frames++
	}

	if len(m.buf) > maxBuffered {
		n := len(m.buf)
		m.buf = nil
		if firstErr == nil {
			firstErr = fmt.Errorf("%w: %d bytes without line end", ErrMalformedFrame, n)
		}
	}

	return firstErr
}

func (m *Monitor) frameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func (m *Monitor) resetBuffer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf = nil
}

func (m *Monitor) query() error {
	if err := m.port.Open(); err != nil {
		return err
	}
	defer m.port.Close()
	m.resetBuffer()

	if _, err := m.port.Write(Query(m.address)); err != nil {
		return fmt.Errorf("write query: %w", err)
	}

	before := m.frameCount()
	buf := make([]byte, 256)
	for i := 0; i < maxReads; i++ {
		n, err := m.port.Read(buf)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			return ErrTimeout
		}
		if err := m.Callback(buf[:n]); err != nil {
			return err
		}
		if m.frameCount() > before {
			return nil
		}
	}
	return ErrTimeout
}

func (m *Monitor) pollOnce() {
	m.logger.Debug().Msg("performing measurements")

	var err error
	for retry := 0; retry < maximumFailedQueries; retry++ {
		if err = m.query(); err == nil {
			break
		}
		m.logger.Warn().Err(err).Int("retry", retry).Msg("failed to perform measurements")
	}

	if err := m.publisher.Publish(); err != nil {
		m.logger.Error().Err(err).Msg("failed to publish values")
	}
}

// Poll announces the device once and then queries and publishes every
// interval until ctx is done. Only a failed announce is returned.
func (m *Monitor) Poll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if err := m.publisher.Announce(m.name); err != nil {
		return fmt.Errorf("announce %s: %w", m.name, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		m.pollOnce()

		select {
		case <-ctx.Done():
			m.logger.Info().Msg("polling stopped")
			return nil
		case <-ticker.C:
		}
	}
}
