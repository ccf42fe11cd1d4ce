package xexport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/omeyang/xotel/pkg/observability/xbatch"
	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/observability/xmetrics"
	"github.com/omeyang/xotel/pkg/observability/xtrace"
	"github.com/omeyang/xotel/pkg/resilience/xretry"
)

// OTLP 到 collector 的 gRPC 连接，三类导出器共享。
//
// 连接在最后一个导出器 Shutdown 时关闭；未创建任何导出器时由调用方 Close。
type OTLP struct {
	conn     *grpc.ClientConn
	shared   *sharedCloser
	res      *resource.Resource
	md       metadata.MD
	callOpts []grpc.CallOption
}

// NewOTLP 创建到 endpoint（host:port）的客户端。
//
// grpc.NewClient 不会立即拨号，collector 不可达时错误在首次导出时暴露。
func NewOTLP(endpoint string, opts ...Option) (*OTLP, error) {
	endpoint = trimScheme(endpoint)
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	cfg := applyOptions(opts)

	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(transportCredentials(&cfg))}
	if cfg.keepalive > 0 {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.keepalive,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}))
	}
	if cfg.connectTO > 0 {
		dialOpts = append(dialOpts, grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: cfg.connectTO,
		}))
	}
	dialOpts = append(dialOpts, cfg.dialOpts...)

	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("xexport: create grpc client %q: %w", endpoint, err)
	}

	o := &OTLP{
		conn:   conn,
		shared: newSharedCloser(conn.Close),
		res:    cfg.res,
	}
	if len(cfg.headers) > 0 {
		o.md = metadata.New(cfg.headers)
	}
	if cfg.gzip {
		o.callOpts = append(o.callOpts, grpc.UseCompressor(gzip.Name))
	}
	return o, nil
}

func trimScheme(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	for _, p := range []string{"http://", "https://", "grpc://"} {
		if rest, ok := strings.CutPrefix(endpoint, p); ok {
			return strings.TrimSuffix(rest, "/")
		}
	}
	return endpoint
}

func transportCredentials(cfg *config) credentials.TransportCredentials {
	if cfg.insecure && cfg.tlsConfig == nil {
		return insecure.NewCredentials()
	}
	tlsCfg := cfg.tlsConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return credentials.NewTLS(tlsCfg)
}

// Close 立即关闭连接，已创建的导出器随之失效。
func (o *OTLP) Close() error {
	if o == nil {
		return nil
	}
	return o.shared.Close()
}

func (o *OTLP) outgoing(ctx context.Context) context.Context {
	if len(o.md) == 0 {
		return ctx
	}
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		return metadata.NewOutgoingContext(ctx, metadata.Join(md, o.md))
	}
	return metadata.NewOutgoingContext(ctx, o.md)
}

// otlpExporter 三类导出器共有的关闭逻辑。
type otlpExporter struct {
	o       *OTLP
	closed  atomic.Bool
	release func() error
}

func newOTLPExporter(o *OTLP) otlpExporter {
	return otlpExporter{o: o, release: o.shared.acquire()}
}

func (e *otlpExporter) check() error {
	if e.closed.Load() || e.o.shared.isClosed() {
		return xretry.NewPermanentError(ErrClosed)
	}
	return nil
}

// Shutdown 释放对共享连接的引用，可重复调用。
func (e *otlpExporter) Shutdown(context.Context) error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.release()
}

// LogExporter 通过 OTLP 导出日志。
type LogExporter struct {
	otlpExporter
	client collogspb.LogsServiceClient
}

// LogExporter 创建日志导出器。
func (o *OTLP) LogExporter() *LogExporter {
	return &LogExporter{
		otlpExporter: newOTLPExporter(o),
		client:       collogspb.NewLogsServiceClient(o.conn),
	}
}

// Export 发送一批日志。
func (e *LogExporter) Export(ctx context.Context, records []xlog.Record) error {
	if err := e.check(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	resp, err := e.client.Export(e.o.outgoing(ctx), LogsRequest(e.o.res, records), e.o.callOpts...)
	if err != nil {
		return classify(err)
	}
	ps := resp.GetPartialSuccess()
	return partial(len(records), ps.GetRejectedLogRecords(), ps.GetErrorMessage(), "log records")
}

// SpanExporter 通过 OTLP 导出 span。
type SpanExporter struct {
	otlpExporter
	client coltracepb.TraceServiceClient
}

// SpanExporter 创建 span 导出器。
func (o *OTLP) SpanExporter() *SpanExporter {
	return &SpanExporter{
		otlpExporter: newOTLPExporter(o),
		client:       coltracepb.NewTraceServiceClient(o.conn),
	}
}

// Export 发送一批 span。
func (e *SpanExporter) Export(ctx context.Context, spans []xtrace.SpanData) error {
	if err := e.check(); err != nil {
		return err
	}
	if len(spans) == 0 {
		return nil
	}
	resp, err := e.client.Export(e.o.outgoing(ctx), TracesRequest(e.o.res, spans), e.o.callOpts...)
	if err != nil {
		return classify(err)
	}
	ps := resp.GetPartialSuccess()
	return partial(len(spans), ps.GetRejectedSpans(), ps.GetErrorMessage(), "spans")
}

// MetricExporter 通过 OTLP 导出指标快照。
type MetricExporter struct {
	otlpExporter
	client colmetricspb.MetricsServiceClient
}

// MetricExporter 创建指标导出器。
func (o *OTLP) MetricExporter() *MetricExporter {
	return &MetricExporter{
		otlpExporter: newOTLPExporter(o),
		client:       colmetricspb.NewMetricsServiceClient(o.conn),
	}
}

// Export 发送一份指标快照。部分拒绝以永久错误返回。
func (e *MetricExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	if err := e.check(); err != nil {
		return err
	}
	if rm == nil || len(rm.ScopeMetrics) == 0 {
		return nil
	}
	resp, err := e.client.Export(e.o.outgoing(ctx), MetricsRequest(rm), e.o.callOpts...)
	if err != nil {
		return classify(err)
	}
	if ps := resp.GetPartialSuccess(); ps.GetRejectedDataPoints() > 0 {
		return xretry.NewPermanentError(fmt.Errorf("%w: %d data points: %s",
			ErrRejected, ps.GetRejectedDataPoints(), ps.GetErrorMessage()))
	}
	return nil
}

func partial(total int, rejected int64, msg, what string) error {
	if rejected <= 0 {
		return nil
	}
	accepted := max(total-int(min(rejected, int64(total))), 0)
	return &xbatch.PartialError{
		Accepted: accepted,
		Err:      fmt.Errorf("%w: %d %s: %s", ErrRejected, rejected, what, msg),
	}
}

// classify 按 gRPC 状态码区分可重试与永久错误。
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return xretry.NewPermanentError(err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return xretry.NewTemporaryError(err)
	}
	if retryableCode(st.Code()) {
		return xretry.NewTemporaryError(err)
	}
	return xretry.NewPermanentError(err)
}

func retryableCode(c codes.Code) bool {
	switch c {
	case codes.Unavailable,
		codes.ResourceExhausted,
		codes.Aborted,
		codes.DeadlineExceeded,
		codes.OutOfRange,
		codes.DataLoss:
		return true
	default:
		return false
	}
}

var (
	_ xbatch.Exporter[xlog.Record]     = (*LogExporter)(nil)
	_ xbatch.Exporter[xtrace.SpanData] = (*SpanExporter)(nil)
	_ xmetrics.Exporter                = (*MetricExporter)(nil)
)
