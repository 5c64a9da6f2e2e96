// Package scheduler реализует обработку очередей Relay.
//
// Scheduler собирает поведение из mq.Retriever, mq.Publisher,
// mq.Acknowledger и индексатора:
//
//   - transfer   — cron: батч из consume-очереди публикуется в publish-очередь
//   - index      — cron: батч индексируется и публикуется с processed=true
//   - heartbeat  — cron: проверка RabbitMQ и Elasticsearch, переподключение
//   - continuous — фоновый цикл publish → consume с параллельными подбатчами
//
// Структура:
//   - scheduler.go — Scheduler, cron-задачи, heartbeat, аудит отклонений
//   - loop.go      — фоновый цикл (StartContinuous / StopContinuous)
//   - cron.go      — парсинг cron-выражений
//
// Ошибка одного сообщения не прерывает батч: сообщение отклоняется
// (reject), остальные обрабатываются. После каждого батча PendingTable
// пуста — незавершённые сообщения возвращаются в очередь.
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Retriever:    mq.NewRetriever(conn, logger),
//	    Publisher:    publisher,
//	    Acknowledger: mq.NewAcknowledger(publisher, logger),
//	    Broker:       conn,
//	    Indexer:      es,
//	    ConsumeQueue: "input_queue",
//	    PublishQueue: "output_queue",
//	    IndexSchedule:     "*/1 * * * *",
//	    HeartbeatSchedule: "*/5 * * * *",
//	})
//
//	if err := sched.Start(ctx); err != nil {
//	    return err
//	}
//	defer sched.Stop(context.Background())
package scheduler
