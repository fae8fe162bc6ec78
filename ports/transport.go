package ports

// Message is a single MQTT publish handed to a Transport.
type Message struct {
	Topic   string
	Payload string
	Retain  bool
}

// Auth carries broker credentials. A nil *Auth means anonymous.
type Auth struct {
	Username string
	Password string
}

// Transport publishes a batch of messages to a broker. Connection lifecycle,
// timeouts and QoS are the implementation's concern.
type Transport interface {
	PublishMultiple(msgs []Message, host string, port int, auth *Auth) error
}
