package xconf

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf 按扩展名判断配置格式（.yaml/.yml/.json）。
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

// layer 一层配置来源，后加载的覆盖先加载的。
type layer struct {
	provider koanf.Provider
	parser   koanf.Parser
	// fail 加载失败时包装的 sentinel
	fail error
}

func fileLayer(data []byte, format Format) (layer, error) {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return layer{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return layer{provider: rawbytes.Provider(data), parser: parser, fail: ErrParseFailed}, nil
}

func envLayers() []layer {
	return []layer{
		{provider: envProvider(legacyEnvKeys), fail: ErrLoadFailed},
		{provider: envProvider(envKeys), fail: ErrLoadFailed},
	}
}

// build 依次加载各层并覆盖到 Default() 上，返回前执行 Validate。
func build(layers []layer) (*Telemetry, error) {
	k := koanf.New(".")
	for _, l := range layers {
		if err := k.Load(l.provider, l.parser); err != nil {
			return nil, fmt.Errorf("%w: %w", l.fail, err)
		}
	}
	if err := millisDurations(k); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// millisDurations 把 durationKeys 中的纯数字值按毫秒改写为 time.Duration。
func millisDurations(k *koanf.Koanf) error {
	for key := range durationKeys {
		var ms float64
		switch v := k.Get(key).(type) {
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				continue
			}
			ms = float64(n)
		case int:
			ms = float64(v)
		case int64:
			ms = float64(v)
		case uint64:
			ms = float64(v)
		case float64:
			ms = v
		default:
			continue
		}
		if math.Abs(ms) > float64(math.MaxInt64/int64(time.Millisecond)) {
			return fmt.Errorf("%s: %v ms out of range", key, ms)
		}
		if err := k.Set(key, time.Duration(ms*float64(time.Millisecond))); err != nil {
			return err
		}
	}
	return nil
}
