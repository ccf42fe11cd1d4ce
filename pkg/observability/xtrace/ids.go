package xtrace

import (
	"crypto/rand"

	"go.opentelemetry.io/otel/trace"
)

// newTraceID 生成非全零的 TraceID。crypto/rand 不可用时 panic。
func newTraceID() trace.TraceID {
	var id trace.TraceID
	for !id.IsValid() {
		if _, err := rand.Read(id[:]); err != nil {
			panic("xtrace: crypto/rand.Read failed: " + err.Error())
		}
	}
	return id
}

// newSpanID 生成非全零的 SpanID。
func newSpanID() trace.SpanID {
	var id trace.SpanID
	for !id.IsValid() {
		if _, err := rand.Read(id[:]); err != nil {
			panic("xtrace: crypto/rand.Read failed: " + err.Error())
		}
	}
	return id
}
