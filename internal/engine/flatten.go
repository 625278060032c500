package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// FlattenSeparator разделяет уровни вложенности в ключах.
const FlattenSeparator = "."

// DecodeRaw разбирает JSON-документ в RawRecord.
//
// Числа остаются json.Number, чтобы большие целые не теряли точность
// до проверки схемы.
func DecodeRaw(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode raw: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode raw: trailing data after JSON value")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotObject, v)
	}
	return obj, nil
}

// Flatten разворачивает вложенные объекты в один уровень с ключами через точку:
//
//	{"owner": {"login": "x"}} → {"owner.login": "x"}
//
// Массивы остаются значениями как есть. Пустые вложенные объекты не дают ключей.
// Исходная карта не изменяется.
func Flatten(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	flattenInto(out, "", raw)
	return out
}

func flattenInto(out map[string]any, prefix string, obj map[string]any) {
	// Сортировка делает результат детерминированным при коллизии ключей
	// вида "a.b" и {"a": {"b": ...}}: побеждает последний по порядку.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + FlattenSeparator + k
		}
		if nested, ok := obj[k].(map[string]any); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = obj[k]
	}
}
