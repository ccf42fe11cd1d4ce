// Package xresource 构建日志、Span、指标共享的资源描述。
//
// 资源至少包含 service.name、service.version、service.instance.id，
// 创建后不可变。
package xresource

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// SDKName 写入 telemetry.sdk.name。
const SDKName = "xotel"

// Version 写入 telemetry.sdk.version。
const Version = "0.1.0"

const (
	defaultServiceName    = "xotel-demo"
	defaultServiceVersion = "1.0.0"
)

type options struct {
	serviceName    string
	serviceVersion string
	instanceID     string
	attrs          []attribute.KeyValue
}

// Option 资源配置选项。
type Option func(*options)

// WithServiceName 设置 service.name，空字符串被忽略。
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithServiceVersion 设置 service.version，空字符串被忽略。
func WithServiceVersion(version string) Option {
	return func(o *options) {
		if version != "" {
			o.serviceVersion = version
		}
	}
}

// WithInstanceID 设置 service.instance.id，默认取 InstanceID()。
func WithInstanceID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.instanceID = id
		}
	}
}

// WithAttributes 追加自定义属性，与内置键冲突时内置键优先。
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) {
		o.attrs = append(o.attrs, attrs...)
	}
}

// New 构建资源。
func New(opts ...Option) *resource.Resource {
	o := &options{
		serviceName:    defaultServiceName,
		serviceVersion: defaultServiceVersion,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.instanceID == "" {
		o.instanceID = InstanceID()
	}

	// 同键时 NewWithAttributes 保留最后一个值
	attrs := make([]attribute.KeyValue, 0, len(o.attrs)+6)
	attrs = append(attrs, o.attrs...)
	attrs = append(attrs,
		semconv.ServiceName(o.serviceName),
		semconv.ServiceVersion(o.serviceVersion),
		semconv.ServiceInstanceID(o.instanceID),
		semconv.TelemetrySDKName(SDKName),
		semconv.TelemetrySDKLanguageGo,
		semconv.TelemetrySDKVersion(Version),
	)
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// InstanceID 返回实例标识：$HOSTNAME，其次 os.Hostname()，都不可用时生成随机 UUID。
func InstanceID() string {
	if h := strings.TrimSpace(os.Getenv("HOSTNAME")); h != "" {
		return h
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return uuid.NewString()
}

// ServiceName 读取资源中的 service.name，缺失时返回空字符串。
func ServiceName(res *resource.Resource) string {
	if res == nil {
		return ""
	}
	v, ok := res.Set().Value(semconv.ServiceNameKey)
	if !ok {
		return ""
	}
	return v.AsString()
}
