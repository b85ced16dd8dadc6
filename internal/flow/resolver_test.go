package flow

import (
	"errors"
	"testing"

	"github.com/shaiso/Vocata/internal/domain"
)

// testGraph строит граф:
//
//	INITIAL → greet(SAY) → menu(GATHER) [1→sales, OTHER→operator] → …
func testGraph() *domain.FlowGraph {
	return &domain.FlowGraph{
		AccountID: "acc1",
		FlowID:    "main",
		Version:   1,
		Nodes: []domain.Node{
			{ID: "start", Type: domain.NodeInitial},
			{ID: "greet", Type: domain.NodeSay, Data: domain.NodeData{Message: "Hi"}},
			{ID: "menu", Type: domain.NodeGather, Data: domain.NodeData{
				Digits: []domain.DigitBranch{
					{Digit: "1", ID: "branch-sales"},
					{Digit: domain.DigitOther, ID: "branch-operator"},
				},
			}},
			{ID: "sales", Type: domain.NodeSay},
			{ID: "operator", Type: domain.NodeSay},
			{ID: "bye", Type: domain.NodeHangup},
		},
		Edges: []domain.Edge{
			{SourceHandle: "start", Target: "greet"},
			{SourceHandle: "greet", Target: "menu"},
			{SourceHandle: "branch-sales", Target: "sales"},
			{SourceHandle: "branch-operator", Target: "operator"},
			{SourceHandle: "sales", Target: "bye"},
		},
	}
}

func TestResolve_Initial(t *testing.T) {
	node, err := Resolve(testGraph(), ResolveRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.ID != "greet" {
		t.Errorf("expected greet, got %s", node.ID)
	}
}

func TestResolve_Initial_MissingInitialNode(t *testing.T) {
	g := testGraph()
	g.Nodes = g.Nodes[1:] // выкидываем INITIAL

	_, err := Resolve(g, ResolveRequest{})
	if !errors.Is(err, ErrFlowIncomplete) {
		t.Errorf("expected ErrFlowIncomplete, got %v", err)
	}
}

func TestResolve_Initial_MissingEdge(t *testing.T) {
	g := testGraph()
	g.Edges = g.Edges[1:] // выкидываем ребро из INITIAL

	_, err := Resolve(g, ResolveRequest{})
	if !errors.Is(err, ErrFlowIncomplete) {
		t.Errorf("expected ErrFlowIncomplete, got %v", err)
	}
}

func TestResolve_Linear(t *testing.T) {
	node, err := Resolve(testGraph(), ResolveRequest{NodeID: "greet"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.ID != "menu" {
		t.Errorf("expected menu, got %s", node.ID)
	}
}

func TestResolve_Linear_EdgeNotFound(t *testing.T) {
	_, err := Resolve(testGraph(), ResolveRequest{NodeID: "operator"})
	if !errors.Is(err, ErrEdgeNotFound) {
		t.Errorf("expected ErrEdgeNotFound, got %v", err)
	}
}

func TestResolve_Digit(t *testing.T) {
	tests := []struct {
		name     string
		digit    string
		expected string
	}{
		{name: "exact match", digit: "1", expected: "sales"},
		{name: "wildcard fallback", digit: "9", expected: "operator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Resolve(testGraph(), ResolveRequest{NodeID: "menu", Digit: tt.digit})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if node.ID != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, node.ID)
			}
		})
	}
}

func TestResolve_Digit_NoMatchNoOther(t *testing.T) {
	g := testGraph()
	// оставляем только точную ветку "1"
	g.Nodes[2].Data.Digits = []domain.DigitBranch{{Digit: "1", ID: "branch-sales"}}

	_, err := Resolve(g, ResolveRequest{NodeID: "menu", Digit: "7"})
	if !errors.Is(err, ErrNoDigitMatch) {
		t.Errorf("expected ErrNoDigitMatch, got %v", err)
	}
}

func TestResolve_Digit_UnknownNode(t *testing.T) {
	_, err := Resolve(testGraph(), ResolveRequest{NodeID: "ghost", Digit: "1"})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestResolve_Digit_DanglingEdgeTarget(t *testing.T) {
	g := testGraph()
	g.Edges[2].Target = "ghost" // branch-sales → несуществующий узел

	_, err := Resolve(g, ResolveRequest{NodeID: "menu", Digit: "1"})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestResolve_AITurn(t *testing.T) {
	g := testGraph()
	g.Nodes = append(g.Nodes, domain.Node{ID: "assistant", Type: domain.NodeOpenAI})

	node, err := Resolve(g, ResolveRequest{NodeID: "assistant", AITurn: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.ID != "assistant" {
		t.Errorf("expected the same node back, got %s", node.ID)
	}

	_, err = Resolve(g, ResolveRequest{NodeID: "ghost", AITurn: true})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}
