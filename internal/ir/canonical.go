package ir

import (
	"bytes"
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical encodes v as RFC 8785 canonical JSON. It is the only
// encoding used for content-addressed IDs and stored payloads.
//
// Compared to encoding/json:
//   - object keys are sorted by UTF-16 code units
//   - strings are NFC normalized and only quote, backslash and control
//     characters are escaped (no HTML escaping, U+2028/U+2029 literal)
//   - floats and null are rejected
//
// Supported inputs: string, bool, int, int64, *big.Int (as a decimal
// string), common.Address (as EIP-55 hex), []any and map[string]any.
func MarshalCanonical(v any) ([]byte, error) {
	var w canonicalWriter
	if err := w.value(v); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

type canonicalWriter struct {
	buf bytes.Buffer
}

func (w *canonicalWriter) value(v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		w.string(val)
	case int:
		w.buf.WriteString(strconv.Itoa(val))
	case int64:
		w.buf.WriteString(strconv.FormatInt(val, 10))
	case bool:
		w.buf.WriteString(strconv.FormatBool(val))
	case *big.Int:
		if val == nil {
			return fmt.Errorf("null is forbidden in canonical JSON")
		}
		w.string(val.String())
	case common.Address:
		w.string(val.Hex())
	case []any:
		return w.array(val)
	case map[string]any:
		return w.object(val)
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func (w *canonicalWriter) array(arr []any) error {
	w.buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		if err := w.value(elem); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	w.buf.WriteByte(']')
	return nil
}

func (w *canonicalWriter) object(obj map[string]any) error {
	type member struct {
		key   string
		units []uint16
		value any
	}
	members := make([]member, 0, len(obj))
	for k, v := range obj {
		nk := norm.NFC.String(k)
		members = append(members, member{key: nk, units: utf16.Encode([]rune(nk)), value: v})
	}
	slices.SortFunc(members, func(a, b member) int {
		return slices.Compare(a.units, b.units)
	})

	w.buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			w.buf.WriteByte(',')
		}
		w.quoted(m.key)
		w.buf.WriteByte(':')
		if err := w.value(m.value); err != nil {
			return fmt.Errorf("value for key %q: %w", m.key, err)
		}
	}
	w.buf.WriteByte('}')
	return nil
}

func (w *canonicalWriter) string(s string) {
	w.quoted(norm.NFC.String(s))
}

// quoted writes s as a JSON string. Invalid UTF-8 is replaced with U+FFFD.
func (w *canonicalWriter) quoted(s string) {
	const hex = "0123456789abcdef"

	w.buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '"':
			w.buf.WriteString(`\"`)
		case r == '\\':
			w.buf.WriteString(`\\`)
		case r == '\b':
			w.buf.WriteString(`\b`)
		case r == '\f':
			w.buf.WriteString(`\f`)
		case r == '\n':
			w.buf.WriteString(`\n`)
		case r == '\r':
			w.buf.WriteString(`\r`)
		case r == '\t':
			w.buf.WriteString(`\t`)
		case r < 0x20:
			w.buf.WriteString(`\u00`)
			w.buf.WriteByte(hex[r>>4])
			w.buf.WriteByte(hex[r&0xf])
		default:
			// DecodeRuneInString yields RuneError for invalid bytes.
			w.buf.WriteRune(r)
		}
	}
	w.buf.WriteByte('"')
}
