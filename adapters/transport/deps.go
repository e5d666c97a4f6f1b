//go:build tools

package transport

// The generated bindings import these clients. Requiring them here keeps
// their versions pinned for the type-check tests of generated code.
import (
	_ "github.com/eclipse/paho.mqtt.golang"
	_ "github.com/nats-io/nats.go"
	_ "github.com/rabbitmq/amqp091-go"
)
