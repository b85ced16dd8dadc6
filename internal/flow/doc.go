// Package flow содержит чистую логику графа обзвона.
//
// Включает:
//   - resolver.go    — резолюция следующего узла (INITIAL, цифры, линейный переход)
//   - placeholder.go — подстановка токенов {{{path.to.value}}} в шаблоны узлов
//
// Пакет не обращается к БД и к сети: граф передаётся целиком,
// контекст переменных — готовой map. Это делает резолюцию
// детерминированной и тривиально тестируемой.
package flow
