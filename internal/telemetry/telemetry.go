package telemetry

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/unkn0wn-root/curlparse/internal/curl"
)

var (
	tracerName  = "github.com/unkn0wn-root/curlparse/internal/telemetry"
	httpHostKey = attribute.Key("http.host")
)

const spanParse = "curl.parse"

type Instrumenter interface {
	Start(ctx context.Context, info ParseStart) (context.Context, ParseSpan)
	Shutdown(ctx context.Context) error
}

type ParseStart struct {
	Command string
	// Source names the caller, e.g. "cli" or "api".
	Source string
}

type ParseOutcome struct {
	Request *curl.Request
	Err     error
}

type ParseSpan interface {
	End(outcome ParseOutcome)
}

type providerOptions struct {
	exporter       sdktrace.SpanExporter
	spanProcessors []sdktrace.SpanProcessor
}

type Option func(*providerOptions)

func WithSpanProcessor(proc sdktrace.SpanProcessor) Option {
	return func(opts *providerOptions) {
		if proc != nil {
			opts.spanProcessors = append(opts.spanProcessors, proc)
		}
	}
}

func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(opts *providerOptions) {
		if exp != nil {
			opts.exporter = exp
		}
	}
}

type manager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	shutdown sync.Once
}

func New(cfg Config, opts ...Option) (Instrumenter, error) {
	builder := providerOptions{}
	for _, opt := range opts {
		opt(&builder)
	}

	if !cfg.Enabled() && builder.exporter == nil && len(builder.spanProcessors) == 0 {
		return Noop(), nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(buildResourceAttributes(cfg)...),
	)
	if err != nil {
		return nil, err
	}

	exporter := builder.exporter
	if exporter == nil && cfg.Enabled() {
		exporter, err = newExporter(cfg)
		if err != nil {
			return nil, err
		}
	}

	var tpOpts []sdktrace.TracerProviderOption
	tpOpts = append(tpOpts, sdktrace.WithResource(res))
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	for _, proc := range builder.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(proc))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &manager{tracer: tp.Tracer(tracerName), provider: tp}, nil
}

func (m *manager) Start(ctx context.Context, info ParseStart) (context.Context, ParseSpan) {
	attrs := []attribute.KeyValue{
		attribute.Int("curlparse.command.length", len(info.Command)),
	}
	if src := strings.TrimSpace(info.Source); src != "" {
		attrs = append(attrs, attribute.String("curlparse.source", src))
	}
	ctx, span := m.tracer.Start(
		ctx,
		spanParse,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, &parseSpan{span: span}
}

func (m *manager) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	var shutdownErr error
	m.shutdown.Do(func() {
		shutdownErr = m.provider.Shutdown(ctx)
	})
	return shutdownErr
}

type parseSpan struct {
	span trace.Span
}

func (ps *parseSpan) End(outcome ParseOutcome) {
	if ps == nil || ps.span == nil {
		return
	}

	if req := outcome.Request; req != nil {
		ps.span.SetAttributes(requestAttributes(req)...)
		for _, w := range req.Warnings {
			ps.span.AddEvent(
				"curlparse.warning",
				trace.WithAttributes(attribute.String("curlparse.warning", w)),
			)
		}
	}

	if outcome.Err != nil {
		ps.span.RecordError(outcome.Err)
		ps.span.SetStatus(codes.Error, outcome.Err.Error())
	} else {
		ps.span.SetStatus(codes.Ok, "OK")
	}
	ps.span.End()
}

func requestAttributes(req *curl.Request) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.HTTPMethodKey.String(req.Method),
		attribute.Int("curlparse.headers.count", len(req.Headers)),
		attribute.Bool("curlparse.body.present", req.HasBody),
		attribute.Int("curlparse.warnings.count", len(req.Warnings)),
	}
	if req.FullURL != "" {
		attrs = append(attrs, semconv.HTTPURLKey.String(req.FullURL))
		if u, err := url.Parse(req.FullURL); err == nil && u.Host != "" {
			attrs = append(attrs, httpHostKey.String(u.Host))
		}
	}
	if len(req.QueryParams) > 0 {
		attrs = append(attrs, attribute.Bool("curlparse.query.present", true))
	}
	return attrs
}

func Noop() Instrumenter {
	return noopInstrumenter{}
}

type noopInstrumenter struct{}

type noopSpan struct{}

func (noopInstrumenter) Start(ctx context.Context, _ ParseStart) (context.Context, ParseSpan) {
	return ctx, noopSpan{}
}

func (noopInstrumenter) Shutdown(context.Context) error { return nil }

func (noopSpan) End(ParseOutcome) {}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("telemetry endpoint is required")
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	client := otlptracegrpc.NewClient(clientOpts...)
	return otlptrace.New(ctx, client)
}

func buildResourceAttributes(cfg Config) []attribute.KeyValue {
	name := cfg.ServiceName
	if strings.TrimSpace(name) == "" {
		name = defaultServiceName
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
	}
	if strings.TrimSpace(cfg.Version) != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}
	return attrs
}

// TracedParse runs p.Parse inside a parse span.
func TracedParse(
	ctx context.Context,
	inst Instrumenter,
	p *curl.Parser,
	command, source string,
) (*curl.Request, error) {
	if inst == nil {
		inst = Noop()
	}
	_, span := inst.Start(ctx, ParseStart{Command: command, Source: source})
	req, err := p.Parse(command)
	span.End(ParseOutcome{Request: req, Err: err})
	return req, err
}
