package xexport

import (
	"crypto/tls"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/grpc"
)

type config struct {
	res        *resource.Resource
	insecure   bool
	tlsConfig  *tls.Config
	headers    map[string]string
	gzip       bool
	keepalive  time.Duration
	connectTO  time.Duration
	dialOpts   []grpc.DialOption
	maxSizeMB  int
	maxBackups int
}

func defaultConfig() config {
	return config{
		insecure:   true,
		keepalive:  30 * time.Second,
		maxSizeMB:  100,
		maxBackups: 5,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Option 导出器配置选项。
type Option func(*config)

// WithResource 设置请求携带的资源。
func WithResource(res *resource.Resource) Option {
	return func(c *config) { c.res = res }
}

// WithInsecure 是否使用明文连接，默认 true。
func WithInsecure(insecure bool) Option {
	return func(c *config) { c.insecure = insecure }
}

// WithTLSConfig 使用 TLS 连接，覆盖 WithInsecure。
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *config) {
		c.tlsConfig = cfg
		if cfg != nil {
			c.insecure = false
		}
	}
}

// WithHeaders 设置每个请求附带的 gRPC metadata。
func WithHeaders(headers map[string]string) Option {
	return func(c *config) { c.headers = headers }
}

// WithGzip 启用 gzip 压缩。
func WithGzip() Option {
	return func(c *config) { c.gzip = true }
}

// WithKeepalive 设置 keepalive ping 间隔，<=0 关闭。
func WithKeepalive(d time.Duration) Option {
	return func(c *config) { c.keepalive = d }
}

// WithConnectTimeout 设置单次建连的最短超时，<=0 使用 gRPC 默认值（20s）。
func WithConnectTimeout(d time.Duration) Option {
	return func(c *config) { c.connectTO = d }
}

// WithDialOptions 追加 gRPC 拨号选项。
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *config) { c.dialOpts = append(c.dialOpts, opts...) }
}

// WithMaxSizeMB 设置文件导出单个文件的大小上限。
func WithMaxSizeMB(mb int) Option {
	return func(c *config) {
		if mb > 0 {
			c.maxSizeMB = mb
		}
	}
}

// WithMaxBackups 设置文件导出保留的历史文件数。
func WithMaxBackups(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxBackups = n
		}
	}
}
