// Package rw has small io helpers.
package rw

import (
	"bytes"
	"io"
)

// CountWriter counts the bytes and newline-terminated lines passed through to w.
type CountWriter struct {
	w     io.Writer
	n     int64
	lines int64
}

func NewCountWriter(w io.Writer) *CountWriter {
	return &CountWriter{w: w}
}

func (cw *CountWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	cw.lines += int64(bytes.Count(p[:n], []byte{'\n'}))
	return n, err
}

// BytesWritten returns the total number of bytes written.
func (cw *CountWriter) BytesWritten() int64 {
	return cw.n
}

// Lines returns the number of complete lines written.
func (cw *CountWriter) Lines() int64 {
	return cw.lines
}
