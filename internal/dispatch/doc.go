// Package dispatch — конечный автомат звонка.
//
// Состояния — типы узлов графа обзвона; переходы управляются
// резолвером узлов и повторной доставкой вебхуков оператора.
// Состояние между вебхуками целиком живёт в continuation-токене
// (token.go), закодированном в query-параметрах callback-URL.
//
// Структура:
//   - token.go      — версионированный continuation-токен
//   - dispatcher.go — реестр обработчиков, фатальный путь (apology hangup)
//   - handlers.go   — обработчики всех типов узлов
package dispatch
