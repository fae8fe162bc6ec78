package ports

// DiscoveryEntry pairs a sensor key with its discovery config payload.
type DiscoveryEntry struct {
	Key    string
	Config interface{}
}

// ValueSample pairs a state topic with its current value.
type ValueSample struct {
	Key   string
	Value interface{}
}

type DataSource interface {
	Entries(deviceName string) []DiscoveryEntry
	Values() []ValueSample
}
