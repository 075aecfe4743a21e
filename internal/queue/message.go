package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message wraps a job with its delivery metadata for acknowledgment
type Message struct {
	Job         *Job
	DeliveryTag uint64
	Channel     *amqp.Channel
}

// Ack acknowledges successful processing of the message
func (m *Message) Ack() error {
	return m.Channel.Ack(m.DeliveryTag, false)
}

// Nack rejects the message; requeue=false routes it to the DLQ
func (m *Message) Nack(requeue bool) error {
	return m.Channel.Nack(m.DeliveryTag, false, requeue)
}

// GetJob returns the job carried by this message
func (m *Message) GetJob() *Job {
	return m.Job
}

var _ MessageInterface = (*Message)(nil)
