// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (хранилища, dispatcher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и голосовые документы
//   - dto.go              — Data Transfer Objects (request/response)
//   - webhook_handler.go  — call-flow вебхуки оператора связи
//   - campaign_handler.go — управление кампаниями, графы, responses
//
// Две поверхности: /call-flow/* отвечает оператору XML-документами
// и никогда не возвращает ошибочный статус (фатальный путь — это
// apology-документ), /api/v1/* — обычный REST для управления.
package api
