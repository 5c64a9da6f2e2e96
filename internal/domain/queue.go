package domain

// DeadLetterBinding — привязка очереди к dead-letter exchange.
type DeadLetterBinding struct {
	// Exchange — имя direct exchange для отклонённых сообщений.
	Exchange string

	// RoutingKey — ключ, по которому DLQ привязана к exchange.
	RoutingKey string
}

// QueueDescriptor — описание очереди из конфигурации.
//
// Создаётся один раз при старте и больше не меняется.
type QueueDescriptor struct {
	// Name — имя очереди.
	Name string

	// Durable — очередь переживает рестарт брокера.
	Durable bool

	// DeadLetter — опциональная привязка к DLX (nil — без DLQ).
	DeadLetter *DeadLetterBinding
}

// HasDeadLetter возвращает true, если для очереди настроен DLX.
func (q QueueDescriptor) HasDeadLetter() bool {
	return q.DeadLetter != nil
}

// Arguments возвращает x-аргументы для объявления очереди.
func (q QueueDescriptor) Arguments() map[string]any {
	if q.DeadLetter == nil {
		return nil
	}

	return map[string]any{
		"x-dead-letter-exchange":    q.DeadLetter.Exchange,
		"x-dead-letter-routing-key": q.DeadLetter.RoutingKey,
	}
}
