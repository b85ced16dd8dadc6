// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - call.finished — звонок кампании завершён (hangup или ошибка)
//   - sms.send      — задание на отправку SMS
//
// Exchanges:
//   - vocata.calls — события звонков
//   - vocata.sms   — задания на SMS
//   - vocata.dlq   — dead letter queue
package mq
