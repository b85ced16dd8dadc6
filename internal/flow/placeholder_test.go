package flow

import "testing"

func testContext() map[string]any {
	return map[string]any{
		"recipient_number": "15550100",
		"digits":           "4",
		"order": map[string]any{
			"id":    float64(42),
			"total": 19.5,
			"items": []any{
				map[string]any{"sku": "A-1"},
				map[string]any{"sku": "B-2"},
			},
		},
	}
}

func TestResolvePlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "plain string passes through",
			template: "Welcome to support",
			expected: "Welcome to support",
		},
		{
			name:     "top level key",
			template: "You called from {{{recipient_number}}}",
			expected: "You called from 15550100",
		},
		{
			name:     "nested path",
			template: "Order {{{order.id}}}",
			expected: "Order 42",
		},
		{
			name:     "array index",
			template: "First item {{{order.items[0].sku}}}",
			expected: "First item A-1",
		},
		{
			name:     "second array index",
			template: "Second item {{{order.items[1].sku}}}",
			expected: "Second item B-2",
		},
		{
			name:     "missing key becomes NA",
			template: "Hello {{{customer.name}}}",
			expected: "Hello NA",
		},
		{
			name:     "index out of range becomes NA",
			template: "{{{order.items[5].sku}}}",
			expected: "NA",
		},
		{
			name:     "float value",
			template: "Total {{{order.total}}}",
			expected: "Total 19.5",
		},
		{
			name:     "stringify object",
			template: "{{{JSON.stringify(order.items[0])}}}",
			expected: `{"sku":"A-1"}`,
		},
		{
			name:     "stringify missing path",
			template: "{{{JSON.stringify(nope.nothing)}}}",
			expected: "NA",
		},
		{
			name:     "multiple tokens",
			template: "{{{digits}}} and {{{order.id}}}",
			expected: "4 and 42",
		},
		{
			name:     "token with spaces",
			template: "{{{ order.id }}}",
			expected: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolvePlaceholders(tt.template, testContext())
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// Детерминизм: одинаковые шаблон и контекст всегда дают одинаковый результат.
func TestResolvePlaceholders_Deterministic(t *testing.T) {
	template := "Order {{{order.id}}}: {{{JSON.stringify(order)}}} for {{{recipient_number}}}"
	ctx := testContext()

	first := ResolvePlaceholders(template, ctx)
	for i := 0; i < 50; i++ {
		if got := ResolvePlaceholders(template, ctx); got != first {
			t.Fatalf("iteration %d: expected %q, got %q", i, first, got)
		}
	}
}

func TestResolvePlaceholders_NilContext(t *testing.T) {
	got := ResolvePlaceholders("Hello {{{name}}}", nil)
	if got != "Hello NA" {
		t.Errorf("expected NA substitution, got %q", got)
	}
}

func TestResolvePlaceholders_NeverUndefined(t *testing.T) {
	// Отсутствующий путь никогда не даёт null/undefined артефактов
	ctx := map[string]any{"a": nil}
	got := ResolvePlaceholders("{{{a}}} {{{a.b}}}", ctx)
	if got != "NA NA" {
		t.Errorf("expected \"NA NA\", got %q", got)
	}
}
