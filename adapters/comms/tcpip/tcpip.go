package tcpip

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

const (
	dialTimeout = 5 * time.Second
	ioTimeout   = 2 * time.Second
)

var ErrClosed = errors.New("tcp connection not open")

// TcpIp talks to an RS485-to-Ethernet converter in transparent mode.
type TcpIp struct {
	address string
	conn    net.Conn
}

func New(address string) *TcpIp {
	return &TcpIp{address: address}
}

func (t *TcpIp) Open() error {
	conn, err := net.DialTimeout("tcp", t.address, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.address, err)
	}
	t.conn = conn
	return nil
}

func (t *TcpIp) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// Read returns 0, nil on a read deadline so callers see the same timeout
// behaviour as the serial port.
func (t *TcpIp) Read(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, ErrClosed
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(ioTimeout)); err != nil {
		return 0, err
	}
	n, err := t.conn.Read(buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (t *TcpIp) Write(payload []byte) (int, error) {
	if t.conn == nil {
		return 0, ErrClosed
	}
	if err := t.conn.SetWriteDeadline(time.Now().Add(ioTimeout)); err != nil {
		return 0, err
	}
	return t.conn.Write(payload)
}
