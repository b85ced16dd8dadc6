// Package dialer реализует планировщик обзвона кампаний.
//
// Каждый аккаунт с активными кампаниями получает собственный loop
// с тиком раз в 5 секунд. Кампания продвигается строго по одной
// цели за раз: INITIATED → CALLING (продвижение) → STARTED (набор)
// → терминальный статус (hangup, ошибка или watchdog). Все переходы —
// conditional update'ы, двойное продвижение невозможно.
//
// Структура:
//   - dialer.go  — account-loop'ы и тик кампании
//   - advance.go — закрытие цели и продвижение очереди (Advancer)
//   - window.go  — cron-окно обзвона
//
// Leader Election:
//
// Dialer не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Run() вызывается только лидером.
package dialer
