// Package sanitize normalizes chunk metadata and store identifiers.
//
// Vector store payloads reject null values and heterogeneous types. The
// metadata sanitizer is a total function: every input key maps to exactly
// one of {string, int64, float64, bool, []string}, with absence coerced to
// a type-appropriate sentinel rather than omitted.
package sanitize

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// UnknownNumber is the sentinel for numeric fields that are absent or
	// cannot be coerced to an integer.
	UnknownNumber = int64(-1)

	// MaxTextLength bounds the stored text preview, in characters. Full
	// chunk text is not needed at query time.
	MaxTextLength = 2000
)

// Well-known metadata keys with field-specific coercion rules.
const (
	KeyText       = "text"
	KeySourcePDF  = "source_pdf"
	KeySourceAct  = "source_act"
	KeyPageNumber = "page_number"
	KeyFileHash   = "file_hash"
	KeyChunkIndex = "chunk_index"
)

// Metadata normalizes arbitrary chunk metadata into the schema-safe shape
// accepted by the vector store. It never fails and never emits a nil value
// for a key present in the input.
func Metadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch k {
		case KeyPageNumber, KeyChunkIndex:
			out[k] = toInt64(v)
		case KeyFileHash, KeySourcePDF, KeySourceAct:
			out[k] = toString(v)
		case KeyText:
			out[k] = Truncate(toString(v), MaxTextLength)
		default:
			out[k] = passthrough(v)
		}
	}
	return out
}

// Truncate bounds s to at most n runes. The cut always lands on a rune
// boundary, so the result stays valid UTF-8.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// toInt64 coerces v to an integer, returning UnknownNumber for nil or
// anything that does not parse cleanly.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case nil:
		return UnknownNumber
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			// Accept float-formatted strings like "7.0".
			f, ferr := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if ferr != nil {
				return UnknownNumber
			}
			return int64(f)
		}
		return parsed
	default:
		return UnknownNumber
	}
}

// toString coerces v to a string, mapping nil to the empty string.
func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// passthrough applies the generic value rules: allowed primitives pass
// unchanged, homogeneous string lists pass, everything else is stringified.
func passthrough(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case string, bool:
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case float32:
		return float64(val)
	case float64:
		return val
	case []string:
		return val
	case []any:
		strs := make([]string, len(val))
		for i, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return fmt.Sprintf("%v", v)
			}
			strs[i] = s
		}
		return strs
	default:
		return fmt.Sprintf("%v", v)
	}
}
