package reconnect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyQuality(t *testing.T) {
	tests := []struct {
		name    string
		metrics QualityMetrics
		want    Quality
	}{
		{
			name:    "all metrics bad",
			metrics: QualityMetrics{LatencyMs: 400, PacketLossPercent: 8, JitterMs: 80},
			want:    QualityPoor,
		},
		{
			name:    "all metrics good",
			metrics: QualityMetrics{LatencyMs: 50, PacketLossPercent: 0.5, JitterMs: 10},
			want:    QualityGood,
		},
		{
			name:    "latency alone crosses poor bound",
			metrics: QualityMetrics{LatencyMs: 301, PacketLossPercent: 0, JitterMs: 0},
			want:    QualityPoor,
		},
		{
			name:    "packet loss alone crosses fair bound",
			metrics: QualityMetrics{LatencyMs: 20, PacketLossPercent: 3, JitterMs: 5},
			want:    QualityFair,
		},
		{
			name:    "jitter alone crosses fair bound",
			metrics: QualityMetrics{LatencyMs: 20, PacketLossPercent: 0, JitterMs: 31},
			want:    QualityFair,
		},
		{
			name:    "boundary values stay good",
			metrics: QualityMetrics{LatencyMs: 150, PacketLossPercent: 2, JitterMs: 30},
			want:    QualityGood,
		},
		{
			name:    "fair latency with poor jitter is poor",
			metrics: QualityMetrics{LatencyMs: 200, PacketLossPercent: 0, JitterMs: 60},
			want:    QualityPoor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyQuality(tt.metrics))
		})
	}
}
