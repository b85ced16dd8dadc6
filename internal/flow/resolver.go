package flow

import (
	"fmt"

	"github.com/shaiso/Vocata/internal/domain"
)

// ResolveRequest — входные данные резолюции следующего узла.
type ResolveRequest struct {
	// NodeID — текущий узел. Пусто — звонок только начался,
	// вход через INITIAL.
	NodeID string

	// Digit — нажатая цифра, если оператор прислал ввод.
	Digit string

	// AITurn — повторный заход AI-сессии: вернуть тот же узел.
	AITurn bool
}

// Resolve определяет следующий узел графа для запроса.
//
// Правила, в порядке приоритета:
//  1. AITurn — вернуть узел NodeID без движения по рёбрам.
//  2. Нет NodeID и нет Digit — войти через единственный INITIAL узел
//     и перейти по его ребру.
//  3. Есть Digit — найти ветку в таблице цифр узла (точное совпадение,
//     затем OTHER) и перейти по ребру ветки.
//  4. Иначе — линейный переход по ребру с sourceHandle == NodeID.
//
// Любая ошибка терминальна для звонка и не ретраится.
func Resolve(g *domain.FlowGraph, req ResolveRequest) (*domain.Node, error) {
	if req.AITurn {
		node := g.FindNode(req.NodeID)
		if node == nil {
			return nil, fmt.Errorf("%w: ai node %q in %s", ErrNodeNotFound, req.NodeID, g.Ref())
		}
		return node, nil
	}

	if req.NodeID == "" && req.Digit == "" {
		return resolveInitial(g)
	}

	if req.Digit != "" {
		return resolveDigit(g, req.NodeID, req.Digit)
	}

	return follow(g, req.NodeID)
}

// resolveInitial находит INITIAL узел и возвращает цель его ребра.
func resolveInitial(g *domain.FlowGraph) (*domain.Node, error) {
	initial := g.FindInitial()
	if initial == nil {
		return nil, fmt.Errorf("%w: %s", ErrFlowIncomplete, g.Ref())
	}

	edge := g.EdgeFrom(initial.ID)
	if edge == nil {
		return nil, fmt.Errorf("%w: no edge from INITIAL in %s", ErrFlowIncomplete, g.Ref())
	}

	node := g.FindNode(edge.Target)
	if node == nil {
		return nil, fmt.Errorf("%w: target %q of INITIAL edge in %s", ErrNodeNotFound, edge.Target, g.Ref())
	}
	return node, nil
}

// resolveDigit сопоставляет нажатую цифру с таблицей веток узла.
func resolveDigit(g *domain.FlowGraph, nodeID, digit string) (*domain.Node, error) {
	node := g.FindNode(nodeID)
	if node == nil {
		return nil, fmt.Errorf("%w: %q in %s", ErrNodeNotFound, nodeID, g.Ref())
	}

	handle := matchDigit(node.Data.Digits, digit)
	if handle == "" {
		return nil, fmt.Errorf("%w: digit %q at node %q", ErrNoDigitMatch, digit, nodeID)
	}

	return follow(g, handle)
}

// matchDigit возвращает sourceHandle ветки: точное совпадение цифры,
// иначе ветка OTHER, иначе пустая строка.
func matchDigit(branches []domain.DigitBranch, digit string) string {
	var other string
	for _, b := range branches {
		if b.Digit == digit {
			return b.ID
		}
		if b.Digit == domain.DigitOther && other == "" {
			other = b.ID
		}
	}
	return other
}

// follow переходит по ребру с данным sourceHandle к его целевому узлу.
func follow(g *domain.FlowGraph, handle string) (*domain.Node, error) {
	edge := g.EdgeFrom(handle)
	if edge == nil {
		return nil, fmt.Errorf("%w: source handle %q in %s", ErrEdgeNotFound, handle, g.Ref())
	}

	node := g.FindNode(edge.Target)
	if node == nil {
		return nil, fmt.Errorf("%w: edge target %q in %s", ErrNodeNotFound, edge.Target, g.Ref())
	}
	return node, nil
}
