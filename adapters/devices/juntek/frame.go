package juntek

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrChecksum       = errors.New("juntek frame checksum mismatch")
	ErrMalformedFrame = errors.New("malformed juntek frame")
	ErrUnknownFrame   = errors.New("unsupported juntek frame")
)

const (
	measurementPrefix = ":r50="
	// address, checksum and twelve measurement fields
	measurementFields = 14
)

// Reading is one decoded :r50 measurement frame.
type Reading struct {
	Address            int
	Voltage            float64 // V
	Current            float64 // A, negative while discharging
	Power              float64 // W, negative while discharging
	RemainingCapacity  float64 // Ah
	CumulativeCapacity float64 // Ah
	Energy             float64 // kWh
	Runtime            int     // s
	Temperature        int     // °C
	BatteryLife        int     // min
	InternalResistance float64 // mΩ
	Charging           bool
	OutputOn           bool
}

func (r Reading) Direction() string {
	if r.Charging {
		return "charging"
	}
	return "discharging"
}

func (r Reading) Output() string {
	if r.OutputOn {
		return "on"
	}
	return "off"
}

// Query returns the request that makes the monitor at address answer with a
// measurement frame.
func Query(address int) []byte {
	return []byte(fmt.Sprintf(":R50=%d,2,1,\r\n", address))
}

func checksum(values []int64) int64 {
	var sum int64
	for _, v := range values {
		sum += v
	}
	return sum%255 + 1
}

// ParseFrame decodes a single line such as
// ":r50=1,245,1325,250,80000,123456,1234567,3600,125,0,0,1,480,250,".
func ParseFrame(line string) (Reading, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, measurementPrefix) {
		if strings.HasPrefix(line, ":r") {
			return Reading{}, fmt.Errorf("%w: %.5s", ErrUnknownFrame, line)
		}
		return Reading{}, fmt.Errorf("%w: missing %s prefix", ErrMalformedFrame, measurementPrefix)
	}

	body := strings.TrimSuffix(strings.TrimPrefix(line, measurementPrefix), ",")
	parts := strings.Split(body, ",")
	if len(parts) != measurementFields {
		return Reading{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformedFrame, len(parts), measurementFields)
	}

	raw := make([]int64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: field %d: %v", ErrMalformedFrame, i, err)
		}
		raw[i] = v
	}

	values := raw[2:]
	if want := checksum(values); raw[1] != want {
		return Reading{}, fmt.Errorf("%w: got %d, want %d", ErrChecksum, raw[1], want)
	}

	r := Reading{
		Address:            int(raw[0]),
		Voltage:            float64(values[0]) / 100,
		Current:            float64(values[1]) / 100,
		RemainingCapacity:  float64(values[2]) / 1000,
		CumulativeCapacity: float64(values[3]) / 1000,
		Energy:             float64(values[4]) / 100000,
		Runtime:            int(values[5]),
		Temperature:        int(values[6]) - 100,
		OutputOn:           values[8] == 0,
		Charging:           values[9] == 1,
		BatteryLife:        int(values[10]),
		InternalResistance: float64(values[11]) / 100,
	}
	if !r.Charging {
		r.Current = -r.Current
	}
	r.Power = math.Round(r.Voltage*r.Current*1000) / 1000

	return r, nil
}
