package juntek

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakePort replays canned read chunks; an empty chunk is a read timeout.
type fakePort struct {
	chunks  [][]byte
	writes  []string
	opened  int
	closed  int
	openErr error
}

func (p *fakePort) Open() error {
	p.opened++
	return p.openErr
}

func (p *fakePort) Close() error {
	p.closed++
	return nil
}

func (p *fakePort) Read(buf []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(buf, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *fakePort) Write(payload []byte) (int, error) {
	p.writes = append(p.writes, string(payload))
	return len(payload), nil
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Announce(deviceName string) error {
	return m.Called(deviceName).Error(0)
}

func (m *MockPublisher) Publish() error {
	return m.Called().Error(0)
}

func newTestMonitor(port *fakePort, pub *MockPublisher) (*Monitor, *JTData) {
	data := NewJTData("juntek")
	return NewMonitor("BTG065", 1, port, data, pub, zerolog.Nop()), data
}

func TestMonitor_Callback(t *testing.T) {
	t.Run("split frame across calls", func(t *testing.T) {
		m, data := newTestMonitor(&fakePort{}, new(MockPublisher))

		require.NoError(t, m.Callback([]byte(chargingFrame[:20])))
		assert.Empty(t, data.Values())
		require.NoError(t, m.Callback([]byte(chargingFrame[20:]+"\r\n")))

		values := data.Values()
		require.NotEmpty(t, values)
		assert.Equal(t, 13.25, values[0].Value)
	})

	t.Run("several lines in one chunk", func(t *testing.T) {
		m, data := newTestMonitor(&fakePort{}, new(MockPublisher))

		err := m.Callback([]byte(chargingFrame + "\r\n:r51=1,1,\r\n" + dischargingFrame + "\r\n"))
		require.NoError(t, err)
		assert.Equal(t, 2, m.frameCount())
		assert.Equal(t, -13.0, data.Values()[1].Value)
	})

	t.Run("bad line does not stop good ones", func(t *testing.T) {
		m, data := newTestMonitor(&fakePort{}, new(MockPublisher))

		err := m.Callback([]byte(":r50=1,1,2,\r\n" + chargingFrame + "\r\n"))
		assert.ErrorIs(t, err, ErrMalformedFrame)
		assert.Equal(t, 1, m.frameCount())
		assert.NotEmpty(t, data.Values())
	})

	t.Run("overlong garbage is dropped", func(t *testing.T) {
		m, _ := newTestMonitor(&fakePort{}, new(MockPublisher))

		err := m.Callback(make([]byte, maxBuffered+1))
		assert.ErrorIs(t, err, ErrMalformedFrame)
		assert.Empty(t, m.buf)
	})
}

func TestMonitor_Query(t *testing.T) {
	t.Run("reads until a frame decodes", func(t *testing.T) {
		port := &fakePort{chunks: [][]byte{[]byte(chargingFrame[:30]), []byte(chargingFrame[30:] + "\r\n")}}
		m, data := newTestMonitor(port, new(MockPublisher))

		require.NoError(t, m.query())
		assert.Equal(t, []string{":R50=1,2,1,\r\n"}, port.writes)
		assert.Equal(t, 1, port.opened)
		assert.Equal(t, 1, port.closed)
		assert.NotEmpty(t, data.Values())
	})

	t.Run("silent device times out", func(t *testing.T) {
		port := &fakePort{}
		m, _ := newTestMonitor(port, new(MockPublisher))

		assert.ErrorIs(t, m.query(), ErrTimeout)
		assert.Equal(t, 1, port.closed)
	})

	t.Run("open failure", func(t *testing.T) {
		offline := errors.New("no such device")
		port := &fakePort{openErr: offline}
		m, _ := newTestMonitor(port, new(MockPublisher))

		assert.ErrorIs(t, m.query(), offline)
		assert.Empty(t, port.writes)
	})
}

func TestMonitor_Poll(t *testing.T) {
	t.Run("announces then publishes each tick", func(t *testing.T) {
		port := &fakePort{chunks: [][]byte{[]byte(chargingFrame + "\r\n")}}
		pub := new(MockPublisher)
		m, _ := newTestMonitor(port, pub)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		pub.On("Announce", "BTG065").Return(nil).Once()
		pub.On("Publish").Return(nil).Once()
		pub.On("Publish").Return(errors.New("broker down")).Run(func(mock.Arguments) { cancel() }).Once()

		require.NoError(t, m.Poll(ctx, 10*time.Millisecond))
		pub.AssertExpectations(t)
		// first poll answered at once, the second poll exhausts its retries
		assert.Len(t, port.writes, 1+maximumFailedQueries)
	})

	t.Run("announce failure aborts", func(t *testing.T) {
		pub := new(MockPublisher)
		m, _ := newTestMonitor(&fakePort{}, pub)
		refused := errors.New("not authorized")
		pub.On("Announce", "BTG065").Return(refused).Once()

		err := m.Poll(context.Background(), time.Second)
		assert.ErrorIs(t, err, refused)
		pub.AssertNotCalled(t, "Publish")
	})

	t.Run("cancelled context stops before polling", func(t *testing.T) {
		port := &fakePort{}
		pub := new(MockPublisher)
		m, _ := newTestMonitor(port, pub)
		pub.On("Announce", "BTG065").Return(nil).Once()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.NoError(t, m.Poll(ctx, 0))
		assert.Zero(t, port.opened)
		pub.AssertNotCalled(t, "Publish")
	})
}
