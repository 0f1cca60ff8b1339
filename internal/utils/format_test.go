package utils

import "testing"

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0 Segundos"},
		{-5, "0 Segundos"},
		{1, "1 Segundo"},
		{59.9, "59 Segundos"},
		{60, "1 Minuto"},
		{3600, "1 Hora"},
		{3661, "1 Hora, 1 Minuto, 1 Segundo"},
		{7325, "2 Horas, 2 Minutos, 5 Segundos"},
		{7200 + 120, "2 Horas, 2 Minutos"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatHours(t *testing.T) {
	if got := FormatHours(2); got != "2.0" {
		t.Errorf("Expected 2.0, got %s", got)
	}
}
