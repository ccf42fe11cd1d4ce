package xmetrics

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Temporality 聚合时间性
type Temporality int

const (
	Cumulative Temporality = iota
	Delta
)

func (t Temporality) String() string {
	switch t {
	case Cumulative:
		return "cumulative"
	case Delta:
		return "delta"
	default:
		return fmt.Sprintf("Temporality(%d)", int(t))
	}
}

// ParseTemporality 解析 cumulative / delta（大小写不敏感），空值为 Cumulative。
func ParseTemporality(s string) (Temporality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cumulative":
		return Cumulative, nil
	case "delta":
		return Delta, nil
	default:
		return Cumulative, fmt.Errorf("%w: %q", ErrUnknownTemporality, s)
	}
}

func (t Temporality) metricdata() metricdata.Temporality {
	if t == Delta {
		return metricdata.DeltaTemporality
	}
	return metricdata.CumulativeTemporality
}
