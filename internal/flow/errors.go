package flow

import "errors"

// Ошибки резолюции узлов. Все фатальны для звонка:
// dispatcher превращает их в прощальное сообщение и hangup.
var (
	// ErrFlowIncomplete — в графе нет INITIAL узла или ребра из него.
	ErrFlowIncomplete = errors.New("flow has no INITIAL node or no edge from it")

	// ErrNodeNotFound — узел с данным ID отсутствует в графе.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound — исходящее ребро для данного порта отсутствует.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrNoDigitMatch — нажатая цифра не совпала ни с одной веткой
	// и wildcard-ветки OTHER нет.
	ErrNoDigitMatch = errors.New("no digit branch matched")
)
