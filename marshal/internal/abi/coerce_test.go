package abi

import (
	"math"
	"testing"
)

func TestFloatToInt64(t *testing.T) {
	tests := []struct {
		name   string
		in     float64
		want   int64
		wantOK bool
	}{
		{"whole", 12, 12, true},
		{"negative", -7, -7, true},
		{"fractional", 1.5, 0, false},
		{"too large", math.Pow(2, 63), 0, false},
		{"min", math.MinInt64, math.MinInt64, true},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FloatToInt64(tt.in)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("FloatToInt64(%v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFloatToUint64(t *testing.T) {
	tests := []struct {
		name   string
		in     float64
		want   uint64
		wantOK bool
	}{
		{"whole", 40, 40, true},
		{"negative", -1, 0, false},
		{"fractional", 0.25, 0, false},
		{"too large", math.Pow(2, 64), 0, false},
		{"large", math.Pow(2, 63), 1 << 63, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FloatToUint64(tt.in)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("FloatToUint64(%v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIntToUint64(t *testing.T) {
	if v, ok := IntToUint64(9); !ok || v != 9 {
		t.Errorf("IntToUint64(9) = %d, %v", v, ok)
	}
	if _, ok := IntToUint64(-1); ok {
		t.Error("IntToUint64(-1) should fail")
	}
}
