package xtrace

import (
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
)

// 单个 Span 的属性与事件上限，超出部分计入 Dropped*。
const (
	MaxAttributesPerSpan = 128
	MaxEventsPerSpan     = 128
)

// Status Span 状态。
type Status struct {
	Code        codes.Code
	Description string
}

// Event Span 上的时间点事件。
type Event struct {
	Name       string
	Time       time.Time
	Attributes []attribute.KeyValue
}

// SpanData Span 结束时的不可变快照。
type SpanData struct {
	Name              string
	Kind              trace.SpanKind
	SpanContext       trace.SpanContext
	Parent            trace.SpanContext
	StartTime         time.Time
	EndTime           time.Time
	Status            Status
	Attributes        []attribute.KeyValue
	Events            []Event
	DroppedAttributes int
	DroppedEvents     int
	Scope             string
	Resource          *resource.Resource
}

// Span 一个进行中的操作。所有方法并发安全，nil 接收者为空操作。
type Span struct {
	tracer    *Tracer
	sc        trace.SpanContext
	parent    trace.SpanContext
	kind      trace.SpanKind
	recording bool

	mu            sync.Mutex
	name          string
	start         time.Time
	end           time.Time
	ended         bool
	status        Status
	attrs         []attribute.KeyValue
	events        []Event
	droppedAttrs  int
	droppedEvents int
}

// SpanContext 返回 Span 的标识。
func (s *Span) SpanContext() trace.SpanContext {
	if s == nil {
		return trace.SpanContext{}
	}
	return s.sc
}

// IsRecording 报告 Span 是否仍在记录数据。
func (s *Span) IsRecording() bool {
	if s == nil || !s.recording {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ended
}

// SetAttributes 设置属性，同键覆盖。
func (s *Span) SetAttributes(kv ...attribute.KeyValue) {
	if !s.IsRecording() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAttributesLocked(kv)
}

func (s *Span) setAttributesLocked(kv []attribute.KeyValue) {
	for _, a := range kv {
		if !a.Valid() {
			s.droppedAttrs++
			continue
		}
		replaced := false
		for i := range s.attrs {
			if s.attrs[i].Key == a.Key {
				s.attrs[i] = a
				replaced = true
				break
			}
		}
		if replaced {
			continue
		}
		if len(s.attrs) >= MaxAttributesPerSpan {
			s.droppedAttrs++
			continue
		}
		s.attrs = append(s.attrs, a)
	}
}

// SetStatus 设置状态。Ok 一经设置不再改变；Unset 被忽略；
// 描述只对 Error 保留。
func (s *Span) SetStatus(code codes.Code, description string) {
	if !s.IsRecording() || code == codes.Unset {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Code == codes.Ok {
		return
	}
	if code != codes.Error {
		description = ""
	}
	s.status = Status{Code: code, Description: description}
}

// AddEvent 添加事件。
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.addEvent(name, time.Now(), attrs)
}

// RecordError 添加 exception 事件（exception.type / exception.message），不修改状态。
func (s *Span) RecordError(err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}
	all := make([]attribute.KeyValue, 0, len(attrs)+2)
	all = append(all,
		attribute.String("exception.type", fmt.Sprintf("%T", err)),
		attribute.String("exception.message", err.Error()),
	)
	all = append(all, attrs...)
	s.addEvent("exception", time.Now(), all)
}

func (s *Span) addEvent(name string, t time.Time, attrs []attribute.KeyValue) {
	if !s.IsRecording() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) >= MaxEventsPerSpan {
		s.droppedEvents++
		return
	}
	s.events = append(s.events, Event{Name: name, Time: t, Attributes: append([]attribute.KeyValue(nil), attrs...)})
}

// SetName 修改 Span 名称。
func (s *Span) SetName(name string) {
	if !s.IsRecording() {
		return
	}
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// End 结束 Span。只有第一次调用生效；被采样的 Span 交给 SpanSink。
func (s *Span) End() {
	if s == nil || !s.recording {
		return
	}
	now := time.Now()

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.end = now
	data := s.snapshotLocked()
	s.mu.Unlock()

	if s.sc.IsSampled() {
		s.tracer.provider.emit(data)
	}
}

func (s *Span) snapshotLocked() SpanData {
	return SpanData{
		Name:              s.name,
		Kind:              s.kind,
		SpanContext:       s.sc,
		Parent:            s.parent,
		StartTime:         s.start,
		EndTime:           s.end,
		Status:            s.status,
		Attributes:        append([]attribute.KeyValue(nil), s.attrs...),
		Events:            append([]Event(nil), s.events...),
		DroppedAttributes: s.droppedAttrs,
		DroppedEvents:     s.droppedEvents,
		Scope:             s.tracer.name,
		Resource:          s.tracer.provider.resource,
	}
}
