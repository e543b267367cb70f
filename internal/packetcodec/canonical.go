package packetcodec

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// normalizeForCanonical round-trips an arbitrary Go value (struct, map, or
// already-generic JSON value) through encoding/json so CanonicalJSON only
// ever has to deal with the handful of generic shapes json.Unmarshal
// produces into interface{}: map[string]any, []any, string, float64, bool,
// nil. []byte is handled directly since json.Marshal would otherwise
// base64-encode it before CanonicalJSON sees it.
func normalizeForCanonical(v any) any {
	if raw, ok := v.([]byte); ok {
		return raw
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var generic any
	if err := json.Unmarshal(buf, &generic); err != nil {
		return v
	}
	return generic
}

// CanonicalJSON renders v (expected to be a JSON-ish value built from
// map[string]any, []any, string, float64/int, bool, or nil, as produced by
// ToMap/encoding/json) deterministically: object keys in ascending
// code-point order, arrays in input order, no insignificant whitespace.
// This is the only serialization used for signing inputs.
func CanonicalJSON(v any) ([]byte, error) {
	var b strings.Builder
	if err := encodeCanonical(&b, v); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func encodeCanonical(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		encodeCanonicalString(b, val)
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(val), 10))
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			b.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
		} else {
			b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
		}
	case []byte:
		// Raw bytes serialize as a JSON array of integers, never base64, so
		// canonical output stays a pure function of logical value.
		encodeCanonicalByteSlice(b, val)
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encodeCanonical(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		first := true
		for _, k := range keys {
			if val[k] == nil {
				continue // undefined/nil fields are omitted
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			encodeCanonicalString(b, k)
			b.WriteByte(':')
			if err := encodeCanonical(b, val[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return fmt.Errorf("packetcodec: unsupported canonical value type %T", v)
	}
	return nil
}

func encodeCanonicalByteSlice(b *strings.Builder, raw []byte) {
	b.WriteByte('[')
	for i, v := range raw {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(v)))
	}
	b.WriteByte(']')
}

// encodeCanonicalString applies minimal JSON string escaping: the
// characters JSON requires to be escaped, nothing more.
func encodeCanonicalString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
