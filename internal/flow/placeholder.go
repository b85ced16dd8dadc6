package flow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Missing — литерал, подставляемый вместо отсутствующего пути.
// Значение никогда не пропагируется как null/undefined.
const Missing = "NA"

// stringifyPrefix — обёртка токена, требующая JSON-сериализации значения.
const stringifyPrefix = "JSON.stringify("

// tokenRe — токен вида {{{path.to.value}}}.
var tokenRe = regexp.MustCompile(`\{\{\{([^}]+)\}\}\}`)

// ResolvePlaceholders подставляет токены {{{a.b[0].c}}} в шаблон
// по значениям из контекста переменных.
//
// Сегменты пути разделяются на ".", "[", "]"; числовые сегменты
// индексируют массивы. Отсутствующий путь даёт литерал "NA".
// Токен {{{JSON.stringify(path)}}} сериализует значение в компактный JSON.
// Строки без токенов возвращаются без изменений.
//
// Функция чистая: одинаковые шаблон и контекст всегда дают
// одинаковый результат.
func ResolvePlaceholders(template string, data map[string]any) string {
	if !strings.Contains(template, "{{{") {
		return template
	}

	return tokenRe.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.TrimSpace(tokenRe.FindStringSubmatch(match)[1])

		if strings.HasPrefix(key, stringifyPrefix) && strings.HasSuffix(key, ")") {
			inner := strings.TrimSpace(key[len(stringifyPrefix) : len(key)-1])
			value, ok := lookupPath(inner, data)
			if !ok {
				return Missing
			}
			b, err := json.Marshal(value)
			if err != nil {
				return Missing
			}
			return string(b)
		}

		value, ok := lookupPath(key, data)
		if !ok {
			return Missing
		}
		return formatValue(value)
	})
}

// lookupPath разрешает путь вида "a.b[0].c" относительно значения.
func lookupPath(path string, data any) (any, bool) {
	segments := strings.FieldsFunc(path, func(r rune) bool {
		return r == '.' || r == '[' || r == ']'
	})
	if len(segments) == 0 {
		return nil, false
	}

	value := data
	for _, seg := range segments {
		switch v := value.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			value = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			value = v[idx]
		default:
			return nil, false
		}
	}
	return value, true
}

// formatValue превращает значение в текст подстановки.
// Составные значения сериализуются в компактный JSON,
// скаляры — через fmt.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return Missing
	case string:
		return v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return Missing
		}
		return string(b)
	case float64:
		// json.Unmarshal отдаёт числа как float64; целые печатаем без ".0"
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
