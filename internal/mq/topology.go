package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
)

// Dead-letter exchange и ключ маршрутизации фиксированы.
const (
	DeadLetterExchange   = "dead.letter.exchange"
	DeadLetterRoutingKey = "dead.letter.routing.key"
)

// ConsumeDescriptor описывает consume-очередь.
// Если DLQ настроена, очередь привязывается к dead-letter exchange.
func (c Config) ConsumeDescriptor() domain.QueueDescriptor {
	q := domain.QueueDescriptor{Name: c.ConsumeQueue, Durable: true}
	if c.DeadLetterQueue != "" {
		q.DeadLetter = &domain.DeadLetterBinding{
			Exchange:   DeadLetterExchange,
			RoutingKey: DeadLetterRoutingKey,
		}
	}
	return q
}

// PublishDescriptor описывает publish-очередь.
func (c Config) PublishDescriptor() domain.QueueDescriptor {
	return domain.QueueDescriptor{Name: c.PublishQueue, Durable: true}
}

// DeadLetterDescriptor описывает DLQ. ok=false, если DLQ не настроена.
func (c Config) DeadLetterDescriptor() (domain.QueueDescriptor, bool) {
	if c.DeadLetterQueue == "" {
		return domain.QueueDescriptor{}, false
	}
	return domain.QueueDescriptor{Name: c.DeadLetterQueue, Durable: true}, true
}

// declareTopology объявляет exchanges, очереди и bindings.
//
// Порядок важен: DLX и DLQ должны существовать до объявления
// consume-очереди с x-dead-letter-exchange.
func declareTopology(cfg Config, consume, publish, deadLetter *amqp.Channel) error {
	if dlq, ok := cfg.DeadLetterDescriptor(); ok {
		// 1. Dead-letter exchange и очередь
		err := deadLetter.ExchangeDeclare(
			DeadLetterExchange, // name
			"direct",           // type
			true,               // durable
			false,              // auto-deleted
			false,              // internal
			false,              // no-wait
			nil,                // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", DeadLetterExchange, err)
		}

		if err := declareQueue(deadLetter, dlq); err != nil {
			return err
		}

		err = deadLetter.QueueBind(
			dlq.Name,             // queue name
			DeadLetterRoutingKey, // routing key
			DeadLetterExchange,   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", dlq.Name, DeadLetterExchange, err)
		}
	}

	// 2. Consume-очередь (с DLX, если настроена)
	if err := declareQueue(consume, cfg.ConsumeDescriptor()); err != nil {
		return err
	}

	// 3. Publish-очередь
	if err := declareQueue(publish, cfg.PublishDescriptor()); err != nil {
		return err
	}

	return nil
}

func declareQueue(ch *amqp.Channel, q domain.QueueDescriptor) error {
	var args amqp.Table
	if q.HasDeadLetter() {
		args = amqp.Table(q.Arguments())
	}

	_, err := ch.QueueDeclare(
		q.Name,    // name
		q.Durable, // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		args,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", q.Name, err)
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo(cfg Config) string {
	info := fmt.Sprintf("\n  Relay RabbitMQ Topology:\n\n    %s [durable]\n            Consumer: indexing job, transfer job\n", cfg.ConsumeQueue)
	if cfg.DeadLetterQueue != "" {
		info += fmt.Sprintf("            DLX: %s → %s\n", DeadLetterExchange, cfg.DeadLetterQueue)
	}
	info += fmt.Sprintf("    %s [durable]\n            Consumer: continuous transfer loop\n", cfg.PublishQueue)
	if cfg.DeadLetterQueue != "" {
		info += fmt.Sprintf("\n    %s (direct)\n    └── %s [routing: %s]\n            Manual processing\n",
			DeadLetterExchange, cfg.DeadLetterQueue, DeadLetterRoutingKey)
	}
	return info
}
