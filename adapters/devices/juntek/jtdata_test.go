package juntek

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitToDeviceClass(t *testing.T) {
	cases := map[string]string{
		"V":   "voltage",
		"A":   "current",
		"W":   "power",
		"kWh": "energy",
		"Ah":  "",
		"°C":  "temperature",
		"℃":   "temperature",
		"s":   "duration",
		"min": "duration",
		"mΩ":  "",
		"":    "",
	}
	for unit, want := range cases {
		assert.Equal(t, want, unitToDeviceClass(unit), unit)
	}
}

func TestJTData_Values(t *testing.T) {
	d := NewJTData("juntek/")
	assert.Empty(t, d.Values(), "no reading yet")

	r, err := ParseFrame(chargingFrame)
	require.NoError(t, err)
	d.Update(r)

	values := d.Values()
	require.Len(t, values, len(sensors))
	assert.Equal(t, "juntek/voltage", values[0].Key)
	assert.Equal(t, 13.25, values[0].Value)
	assert.Equal(t, "juntek/temperature", values[6].Key)
	assert.Equal(t, 25, values[6].Value)
	assert.Equal(t, "juntek/direction", values[10].Key)
	assert.Equal(t, "charging", values[10].Value)
	assert.Equal(t, "juntek/output", values[11].Key)
	assert.Equal(t, "on", values[11].Value)

	assert.Empty(t, d.Values(), "reading already reported")

	d.Update(r)
	assert.Len(t, d.Values(), len(sensors))
}

func TestJTData_Entries(t *testing.T) {
	d := NewJTData("juntek")
	entries := d.Entries("BTG065")
	require.Len(t, entries, len(sensors))

	assert.Equal(t, "btg065_voltage", entries[0].Key)
	payload, err := json.Marshal(entries[0].Config)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "Voltage",
		"unique_id": "btg065_voltage",
		"device_class": "voltage",
		"state_class": "measurement",
		"state_topic": "juntek/voltage",
		"unit_of_measurement": "V",
		"device": {"identifiers": ["juntek_btg065"], "manufacturer": "Juntek", "model": "BTG065", "name": "Juntek BTG065"}
	}`, string(payload))

	byKey := map[string]DiscoveryConfig{}
	for _, e := range entries {
		byKey[e.Key] = e.Config.(DiscoveryConfig)
	}
	assert.Equal(t, "total_increasing", byKey["btg065_energy"].StateClass)
	assert.Equal(t, "energy", byKey["btg065_energy"].DeviceClass)
	assert.Equal(t, "total_increasing", byKey["btg065_cumulative_capacity"].StateClass)
	assert.Equal(t, "", byKey["btg065_direction"].StateClass)
	assert.Equal(t, "", byKey["btg065_direction"].UnitOfMeasurement)
	assert.Equal(t, "juntek/direction", byKey["btg065_direction"].StateTopic)
}
