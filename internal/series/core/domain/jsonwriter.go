package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// objectWriter emits a JSON object whose keys keep insertion order.
// encoding/json sorts map keys lexically, which would break the canonical
// category order the dashboard relies on.
type objectWriter struct {
	buf *bytes.Buffer
	n   int
}

func newObjectWriter(buf *bytes.Buffer) *objectWriter {
	buf.WriteByte('{')
	return &objectWriter{buf: buf}
}

func (w *objectWriter) key(k string) {
	if w.n > 0 {
		w.buf.WriteByte(',')
	}
	w.n++
	kb, _ := json.Marshal(k)
	w.buf.Write(kb)
	w.buf.WriteByte(':')
}

func (w *objectWriter) raw(k string, v []byte) {
	w.key(k)
	w.buf.Write(v)
}

func (w *objectWriter) value(k string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.raw(k, b)
	return nil
}

func (w *objectWriter) close() {
	w.buf.WriteByte('}')
}

func appendNumber(dst []byte, v float64, kind MetricKind) []byte {
	if kind == Count {
		return strconv.AppendInt(dst, int64(v), 10)
	}
	return strconv.AppendFloat(dst, v, 'f', -1, 64)
}

func writeNumbers(buf *bytes.Buffer, vals []float64, kind MetricKind) {
	var scratch []byte
	buf.WriteByte('[')
	for i, v := range vals {
		if i > 0 {
			buf.WriteByte(',')
		}
		scratch = appendNumber(scratch[:0], v, kind)
		buf.Write(scratch)
	}
	buf.WriteByte(']')
}

// OrderedCounts renders integer counts keyed by name, in the given order.
type OrderedCounts struct {
	Keys   []string
	Counts map[string]int
}

func (o OrderedCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	w := newObjectWriter(&buf)
	for _, k := range o.Keys {
		w.raw(k, strconv.AppendInt(nil, int64(o.Counts[k]), 10))
	}
	w.close()
	return buf.Bytes(), nil
}

// OrderedObject renders arbitrary values keyed by name, in the given order.
type OrderedObject struct {
	Keys   []string
	Values map[string]any
}

func (o OrderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	w := newObjectWriter(&buf)
	for _, k := range o.Keys {
		if err := w.value(k, o.Values[k]); err != nil {
			return nil, err
		}
	}
	w.close()
	return buf.Bytes(), nil
}
