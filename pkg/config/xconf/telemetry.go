package xconf

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
)

// 导出器类型。
const (
	ExporterOTLP    = "otlp"
	ExporterConsole = "console"
	ExporterFile    = "file"
	ExporterNone    = "none"
)

// 队列满时的丢弃策略名。
const (
	DropNewest = "drop_newest"
	DropOldest = "drop_oldest"
	DropBlock  = "block"
)

// 指标累积方式。
const (
	TemporalityCumulative = "cumulative"
	TemporalityDelta      = "delta"
)

// Telemetry 遥测管线的完整配置。
type Telemetry struct {
	Service     ServiceConfig   `koanf:"service"`
	Collector   CollectorConfig `koanf:"collector"`
	Exporter    string          `koanf:"exporter"`
	File        FileConfig      `koanf:"file"`
	LogLevel    string          `koanf:"log_level"`
	SampleRatio float64         `koanf:"sample_ratio"`
	Logs        BatchConfig     `koanf:"logs"`
	Spans       BatchConfig     `koanf:"spans"`
	Metrics     MetricsConfig   `koanf:"metrics"`
}

// ServiceConfig 服务身份。
type ServiceConfig struct {
	Name       string `koanf:"name"`
	Version    string `koanf:"version"`
	InstanceID string `koanf:"instance_id"`
}

// CollectorConfig OTLP gRPC 收集器地址。
type CollectorConfig struct {
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Insecure bool          `koanf:"insecure"`
	Timeout  time.Duration `koanf:"timeout"`
}

// FileConfig file 导出器输出。
type FileConfig struct {
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

// BatchConfig 日志/Span 批处理参数。
type BatchConfig struct {
	MaxQueueSize  int           `koanf:"max_queue_size"`
	MaxBatchSize  int           `koanf:"max_batch_size"`
	BatchDelay    time.Duration `koanf:"batch_delay"`
	ExportTimeout time.Duration `koanf:"export_timeout"`
	MaxAttempts   int           `koanf:"max_attempts"`
	DropPolicy    string        `koanf:"drop_policy"`
	BlockTimeout  time.Duration `koanf:"block_timeout"`
}

// MetricsConfig 周期指标读取器参数。
type MetricsConfig struct {
	Interval    time.Duration `koanf:"interval"`
	Timeout     time.Duration `koanf:"timeout"`
	Temporality string        `koanf:"temporality"`
}

// DefaultBatch 返回批处理默认值。
func DefaultBatch() BatchConfig {
	return BatchConfig{
		MaxQueueSize:  2048,
		MaxBatchSize:  512,
		BatchDelay:    5 * time.Second,
		ExportTimeout: 30 * time.Second,
		MaxAttempts:   3,
		DropPolicy:    DropNewest,
		BlockTimeout:  100 * time.Millisecond,
	}
}

// Default 返回全部默认值。
func Default() *Telemetry {
	return &Telemetry{
		Service: ServiceConfig{Name: "xotel-demo", Version: "1.0.0"},
		Collector: CollectorConfig{
			Host:     "127.0.0.1",
			Port:     4317,
			Insecure: true,
			Timeout:  10 * time.Second,
		},
		Exporter:    ExporterOTLP,
		File:        FileConfig{Path: "xotel.jsonl", MaxSizeMB: 100, MaxBackups: 5},
		LogLevel:    "info",
		SampleRatio: 1,
		Logs:        DefaultBatch(),
		Spans:       DefaultBatch(),
		Metrics: MetricsConfig{
			Interval:    5 * time.Second,
			Timeout:     30 * time.Second,
			Temporality: TemporalityCumulative,
		},
	}
}

// legacyEnvKeys 先加载，同名键会被 envKeys 覆盖。
var legacyEnvKeys = map[string]string{
	"SERVICE_NAME":    "service.name",
	"SERVICE_VERSION": "service.version",
}

var envKeys = map[string]string{
	"OTEL_COLLECTOR_HOST":       "collector.host",
	"OTEL_COLLECTOR_PORT":       "collector.port",
	"OTEL_INSECURE":             "collector.insecure",
	"OTEL_SERVICE_NAME":         "service.name",
	"XOTEL_EXPORTER":            "exporter",
	"XOTEL_FILE_PATH":           "file.path",
	"XOTEL_LOG_LEVEL":           "log_level",
	"XOTEL_SAMPLE_RATIO":        "sample_ratio",
	"XOTEL_METRICS_INTERVAL":    "metrics.interval",
	"XOTEL_METRICS_TEMPORALITY": "metrics.temporality",
}

// durationKeys 在配置文件和环境变量中都接受纯数字（毫秒）或 Go duration 字符串。
var durationKeys = map[string]bool{
	"metrics.interval": true,
}

func init() {
	fields := []string{"max_queue_size", "max_batch_size", "batch_delay", "max_attempts", "drop_policy", "block_timeout"}
	for _, signal := range []string{"logs", "spans"} {
		for _, f := range fields {
			envKeys["XOTEL_"+strings.ToUpper(signal+"_"+f)] = signal + "." + f
		}
		durationKeys[signal+".batch_delay"] = true
		durationKeys[signal+".block_timeout"] = true
	}
}

func envProvider(table map[string]string) *env.Env {
	return env.ProviderWithValue("", ".", func(name, value string) (string, any) {
		key, ok := table[name]
		if !ok {
			return "", nil
		}
		return key, strings.TrimSpace(value)
	})
}

// Load 读取配置：默认值 → 可选配置文件 → 环境变量。
//
// path 为空时跳过配置文件。返回前执行 Validate。
func Load(path string) (*Telemetry, error) {
	if path == "" {
		return build(envLayers())
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //#nosec G304 -- 路径由调用方配置
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return LoadBytes(data, format)
}

// LoadBytes 与 Load 相同，配置文件内容由 data 直接提供。
func LoadBytes(data []byte, format Format) (*Telemetry, error) {
	file, err := fileLayer(data, format)
	if err != nil {
		return nil, err
	}
	return build(append([]layer{file}, envLayers()...))
}

func (t *Telemetry) normalize() {
	t.Exporter = strings.ToLower(strings.TrimSpace(t.Exporter))
	t.Metrics.Temporality = strings.ToLower(strings.TrimSpace(t.Metrics.Temporality))
	t.Logs.DropPolicy = strings.ToLower(strings.TrimSpace(t.Logs.DropPolicy))
	t.Spans.DropPolicy = strings.ToLower(strings.TrimSpace(t.Spans.DropPolicy))
}

// Endpoint 返回收集器 host:port。
func (t *Telemetry) Endpoint() string {
	return net.JoinHostPort(t.Collector.Host, strconv.Itoa(t.Collector.Port))
}

// Validate 校验配置，所有问题合并为一个 ErrInvalidConfig。
func (t *Telemetry) Validate() error {
	var errs []error
	if t.Service.Name == "" {
		errs = append(errs, errors.New("service.name is empty"))
	}
	switch t.Exporter {
	case ExporterOTLP:
		if t.Collector.Host == "" {
			errs = append(errs, errors.New("collector.host is empty"))
		}
		if t.Collector.Port <= 0 || t.Collector.Port > 65535 {
			errs = append(errs, fmt.Errorf("collector.port %d out of range", t.Collector.Port))
		}
	case ExporterFile:
		if t.File.Path == "" {
			errs = append(errs, errors.New("file.path is empty"))
		}
	case ExporterConsole, ExporterNone:
	default:
		errs = append(errs, fmt.Errorf("unknown exporter %q", t.Exporter))
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("sample_ratio %v not in [0, 1]", t.SampleRatio))
	}
	switch t.Metrics.Temporality {
	case TemporalityCumulative, TemporalityDelta:
	default:
		errs = append(errs, fmt.Errorf("unknown metrics.temporality %q", t.Metrics.Temporality))
	}
	if t.Metrics.Interval <= 0 {
		errs = append(errs, errors.New("metrics.interval must be positive"))
	}
	errs = append(errs, t.Logs.validate("logs")...)
	errs = append(errs, t.Spans.validate("spans")...)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func (b BatchConfig) validate(prefix string) []error {
	var errs []error
	if b.MaxQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("%s.max_queue_size must be positive", prefix))
	}
	if b.MaxBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%s.max_batch_size must be positive", prefix))
	}
	if b.BatchDelay <= 0 {
		errs = append(errs, fmt.Errorf("%s.batch_delay must be positive", prefix))
	}
	if b.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("%s.max_attempts must be positive", prefix))
	}
	switch b.DropPolicy {
	case DropNewest, DropOldest, DropBlock:
	default:
		errs = append(errs, fmt.Errorf("unknown %s.drop_policy %q", prefix, b.DropPolicy))
	}
	return errs
}
