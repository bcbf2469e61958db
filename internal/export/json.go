package export

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/roach88/dhall/internal/eval"
)

// JSON renders v as JSON. Object keys keep their order. With a non-empty
// indent the output is pretty-printed and ends in a newline.
//
// NaN and infinities have no JSON representation and fail with an
// *ExportError.
func JSON(v Value, indent string) ([]byte, error) {
	w := jsonWriter{indent: indent}
	if err := w.value(v, nil, 0); err != nil {
		return nil, err
	}
	if indent != "" {
		w.buf.WriteByte('\n')
	}
	return w.buf.Bytes(), nil
}

type jsonWriter struct {
	buf    bytes.Buffer
	indent string
}

func (w *jsonWriter) newline(depth int) {
	if w.indent == "" {
		return
	}
	w.buf.WriteByte('\n')
	for range depth {
		w.buf.WriteString(w.indent)
	}
}

func (w *jsonWriter) value(v Value, path []string, depth int) error {
	switch x := v.(type) {
	case Null:
		w.buf.WriteString("null")
	case Bool:
		w.buf.WriteString(strconv.FormatBool(bool(x)))
	case Natural:
		w.buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case Integer:
		w.buf.WriteString(strconv.FormatInt(int64(x), 10))
	case Double:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fail(path, "%s cannot be represented in JSON", eval.ShowDouble(f))
		}
		w.buf.WriteString(eval.ShowDouble(f))
	case Text:
		w.string(string(x))
	case Array:
		if len(x) == 0 {
			w.buf.WriteString("[]")
			return nil
		}
		w.buf.WriteByte('[')
		for i, el := range x {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.newline(depth + 1)
			if err := w.value(el, appendPath(path, "["+strconv.Itoa(i)+"]"), depth+1); err != nil {
				return err
			}
		}
		w.newline(depth)
		w.buf.WriteByte(']')
	case Object:
		if len(x) == 0 {
			w.buf.WriteString("{}")
			return nil
		}
		w.buf.WriteByte('{')
		for i, m := range x {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			w.newline(depth + 1)
			w.string(m.Key)
			w.buf.WriteByte(':')
			if w.indent != "" {
				w.buf.WriteByte(' ')
			}
			if err := w.value(m.Value, appendPath(path, m.Key), depth+1); err != nil {
				return err
			}
		}
		w.newline(depth)
		w.buf.WriteByte('}')
	default:
		return fail(path, "unsupported value %T", v)
	}
	return nil
}

// string writes s as a JSON string without HTML escaping.
func (w *jsonWriter) string(s string) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	w.buf.Write(bytes.TrimSuffix(b.Bytes(), []byte("\n")))
}
