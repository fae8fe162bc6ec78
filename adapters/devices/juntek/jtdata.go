package juntek

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bikerpatch/juntek_monitor/ports"
)

type sensor struct {
	id         string
	name       string
	unit       string
	stateClass string
	value      func(Reading) interface{}
}

var sensors = []sensor{
	{id: "voltage", name: "Voltage", unit: "V", value: func(r Reading) interface{} { return r.Voltage }},
	{id: "current", name: "Current", unit: "A", value: func(r Reading) interface{} { return r.Current }},
	{id: "power", name: "Power", unit: "W", value: func(r Reading) interface{} { return r.Power }},
	{id: "remaining_capacity", name: "Remaining Capacity", unit: "Ah", value: func(r Reading) interface{} { return r.RemainingCapacity }},
	{id: "cumulative_capacity", name: "Cumulative Capacity", unit: "Ah", stateClass: "total_increasing", value: func(r Reading) interface{} { return r.CumulativeCapacity }},
	{id: "energy", name: "Energy", unit: "kWh", value: func(r Reading) interface{} { return r.Energy }},
	{id: "temperature", name: "Temperature", unit: "°C", value: func(r Reading) interface{} { return r.Temperature }},
	{id: "runtime", name: "Runtime", unit: "s", value: func(r Reading) interface{} { return r.Runtime }},
	{id: "battery_life", name: "Battery Life", unit: "min", value: func(r Reading) interface{} { return r.BatteryLife }},
	{id: "internal_resistance", name: "Internal Resistance", unit: "mΩ", value: func(r Reading) interface{} { return r.InternalResistance }},
	{id: "direction", name: "Direction", value: func(r Reading) interface{} { return r.Direction() }},
	{id: "output", name: "Output", value: func(r Reading) interface{} { return r.Output() }},
}

// DiscoveryConfig is the Home Assistant MQTT discovery payload for one sensor.
// https://www.home-assistant.io/integrations/mqtt/#mqtt-discovery
type DiscoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	DeviceClass       string          `json:"device_class,omitempty"`
	StateClass        string          `json:"state_class,omitempty"`
	StateTopic        string          `json:"state_topic"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	Device            DiscoveryDevice `json:"device"`
}

type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	Name         string   `json:"name"`
}

// unitToDeviceClass maps a unit to a Home Assistant sensor device class.
// https://developers.home-assistant.io/docs/core/entity/sensor/
func unitToDeviceClass(unit string) string {
	switch {
	case strings.HasSuffix(unit, "Wh"):
		return "energy"
	case strings.HasSuffix(unit, "Ah"):
		return "" // no charge class in Home Assistant
	case strings.HasSuffix(unit, "W"):
		return "power"
	case strings.HasSuffix(unit, "V"):
		return "voltage"
	case strings.HasSuffix(unit, "A"):
		return "current"
	case strings.HasSuffix(unit, "°C"), strings.HasSuffix(unit, "℃"):
		return "temperature"
	case unit == "s", unit == "min", unit == "h":
		return "duration"
	default:
		return ""
	}
}

func unitToStateClass(unit string) string {
	switch {
	case unit == "":
		return ""
	case strings.HasSuffix(unit, "Wh"):
		return "total_increasing"
	default:
		return "measurement"
	}
}

// JTData holds the latest reading and serves it to the bridge. Values only
// reports a reading once.
type JTData struct {
	prefix string

	mu      sync.Mutex
	reading Reading
	fresh   bool
}

func NewJTData(statePrefix string) *JTData {
	return &JTData{prefix: strings.TrimSuffix(statePrefix, "/")}
}

func (d *JTData) stateTopic(s sensor) string {
	return fmt.Sprintf("%s/%s", d.prefix, s.id)
}

func (d *JTData) Update(r Reading) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reading = r
	d.fresh = true
}

// Values returns every sensor's state for the latest reading, or nothing
// when no new reading arrived since the previous call.
func (d *JTData) Values() []ports.ValueSample {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.fresh {
		return nil
	}
	d.fresh = false

	out := make([]ports.ValueSample, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, ports.ValueSample{Key: d.stateTopic(s), Value: s.value(d.reading)})
	}
	return out
}

func (d *JTData) Entries(deviceName string) []ports.DiscoveryEntry {
	base := strings.ToLower(deviceName)
	device := DiscoveryDevice{
		Identifiers:  []string{"juntek_" + base},
		Manufacturer: "Juntek",
		Model:        deviceName,
		Name:         "Juntek " + deviceName,
	}

	out := make([]ports.DiscoveryEntry, 0, len(sensors))
	for _, s := range sensors {
		key := base + "_" + s.id
		stateClass := s.stateClass
		if stateClass == "" {
			stateClass = unitToStateClass(s.unit)
		}
		out = append(out, ports.DiscoveryEntry{
			Key: key,
			Config: DiscoveryConfig{
				Name:              s.name,
				UniqueID:          key,
				DeviceClass:       unitToDeviceClass(s.unit),
				StateClass:        stateClass,
				StateTopic:        d.stateTopic(s),
				UnitOfMeasurement: s.unit,
				Device:            device,
			},
		})
	}
	return out
}
