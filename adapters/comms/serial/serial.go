package serial

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

const readTimeout = 2 * time.Second

var ErrClosed = errors.New("serial port not open")

type Serial struct {
	name string
	mode *serial.Mode
	port serial.Port
}

func New(name string, baudRate int, dataBits int, parity serial.Parity, stopBits serial.StopBits) *Serial {
	return &Serial{
		name: name,
		mode: &serial.Mode{
			BaudRate: baudRate,
			DataBits: dataBits,
			Parity:   parity,
			StopBits: stopBits,
		},
	}
}

func (s *Serial) Open() error {
	port, err := serial.Open(s.name, s.mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.name, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("set read timeout on %s: %w", s.name, err)
	}
	// drop anything the monitor pushed before we asked
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return fmt.Errorf("reset %s: %w", s.name, err)
	}
	s.port = port
	return nil
}

func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Read returns 0, nil when nothing arrived within the read timeout.
func (s *Serial) Read(buf []byte) (int, error) {
	if s.port == nil {
		return 0, ErrClosed
	}
	return s.port.Read(buf)
}

func (s *Serial) Write(payload []byte) (int, error) {
	if s.port == nil {
		return 0, ErrClosed
	}
	return s.port.Write(payload)
}
