package ports

import (
	"context"
	"time"
)

// Poller is implemented by device-specific code. Poll drives the device and
// the publisher until ctx is done; Callback decodes raw device bytes.
type Poller interface {
	Poll(ctx context.Context, interval time.Duration) error
	Callback(raw []byte) error
}

type CommunicationPort interface {
	Open() error
	Read(buf []byte) (int, error)
	Write(payload []byte) (int, error)
	Close() error
}
