package price

import "testing"

func TestSizeUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Size
	}{
		{"whole", `"1200"`, 1_200_000_000},
		{"fractional", `"1200.5"`, 1_200_500_000},
		{"zero", `"0"`, 0},
		{"raw number", `75.25`, 75_250_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Size
			if err := got.UnmarshalJSON([]byte(tt.input)); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFloat64Conversions(t *testing.T) {
	if got := Price(500_000).Float64(); got != 0.5 {
		t.Errorf("Price.Float64() = %v, want 0.5", got)
	}
	if got := Size(1_200_500_000).Float64(); got != 1200.5 {
		t.Errorf("Size.Float64() = %v, want 1200.5", got)
	}
}
