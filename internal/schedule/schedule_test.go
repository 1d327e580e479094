package schedule

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		raw  string
		want Schedule
	}{
		{`{"kind":"cron","cron_expr":"0 9 * * *"}`, Schedule{Kind: "cron", CronExpr: "0 9 * * *"}},
		{`{"kind":"interval","interval_ms":60000}`, Schedule{Kind: "interval", IntervalMs: 60000}},
		{`{"kind":"once","at_ms":1700000000000}`, Schedule{Kind: "once", AtMs: 1700000000000}},
	}
	for _, tt := range tests {
		s, err := ParseSchedule(tt.raw)
		if err != nil {
			t.Fatalf("ParseSchedule(%s): %v", tt.raw, err)
		}
		if *s != tt.want {
			t.Errorf("ParseSchedule(%s) = %+v, want %+v", tt.raw, *s, tt.want)
		}
	}
}

func TestCalculateNextRunJSONForms(t *testing.T) {
	if next := CalculateNextRun(`{"kind":"cron","cron_expr":"* * * * *"}`); next == nil || next.Before(time.Now()) {
		t.Errorf("cron next = %v, want a future time", next)
	}

	next := CalculateNextRun(`{"kind":"interval","interval_ms":60000}`)
	if next == nil {
		t.Fatal("interval: expected next run time")
	}
	if diff := next.Sub(time.Now().Add(time.Minute)); diff > time.Second || diff < -time.Second {
		t.Errorf("interval next off by %v", diff)
	}

	future := time.Now().Add(time.Hour).UnixMilli()
	if next := CalculateNextRun(fmt.Sprintf(`{"kind":"once","at_ms":%d}`, future)); next == nil {
		t.Error("future once: expected next run time")
	}
	past := time.Now().Add(-time.Hour).UnixMilli()
	if next := CalculateNextRun(fmt.Sprintf(`{"kind":"once","at_ms":%d}`, past)); next != nil {
		t.Error("past once: expected nil")
	}
}

func TestCalculateNextRunBareCron(t *testing.T) {
	// Stored specs may predate JSON wrapping; bare expressions and the
	// gronx macros must still schedule.
	for _, expr := range []string{
		"*/5 * * * *",
		"0 9 * * 1-5",
		"@daily",
		"  * * * * *  ",
	} {
		next := CalculateNextRun(expr)
		if next == nil {
			t.Errorf("CalculateNextRun(%q) = nil, want a time", expr)
			continue
		}
		if next.Before(time.Now()) {
			t.Errorf("CalculateNextRun(%q) = %v, want a future time", expr, next)
		}
	}
}

func TestCalculateNextRunRejectsInvalid(t *testing.T) {
	for _, raw := range []string{
		"invalid json",
		"not a cron at all",
		`{"kind":"unknown"}`,
		"61 * * * *",
	} {
		if next := CalculateNextRun(raw); next != nil {
			t.Errorf("CalculateNextRun(%q) = %v, want nil", raw, next)
		}
	}
}

func TestNormalizeScheduleWrapsBareCron(t *testing.T) {
	for _, expr := range []string{"0 9 * * *", "* * * * *", "@hourly"} {
		result, err := NormalizeSchedule("  " + expr + "  ")
		if err != nil {
			t.Fatalf("NormalizeSchedule(%q): %v", expr, err)
		}
		s, err := ParseSchedule(result)
		if err != nil {
			t.Fatalf("result of %q not valid JSON: %v", expr, err)
		}
		if s.Kind != "cron" || s.CronExpr != expr {
			t.Errorf("NormalizeSchedule(%q) = %+v", expr, s)
		}
	}
}

func TestNormalizeSchedulePassesThroughJSON(t *testing.T) {
	for _, input := range []string{
		`{"kind":"cron","cron_expr":"0 9 * * *"}`,
		`{"kind":"interval","interval_ms":300000}`,
	} {
		result, err := NormalizeSchedule(input)
		if err != nil {
			t.Fatalf("NormalizeSchedule(%s): %v", input, err)
		}
		if result != input {
			t.Errorf("NormalizeSchedule(%s) = %s, want passthrough", input, result)
		}
	}
}

func TestNormalizeScheduleRejectsInvalid(t *testing.T) {
	for _, input := range []string{
		"not a cron",
		`{"kind":"cron","cron_expr":"bad"}`,
		`{"kind":"interval","interval_ms":0}`,
		`{"kind":"once","at_ms":-5}`,
		`{"kind":"bogus"}`,
	} {
		if _, err := NormalizeSchedule(input); err == nil {
			t.Errorf("NormalizeSchedule(%q) accepted invalid input", input)
		}
	}
}

func TestFormatSchedule(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"kind":"interval","interval_ms":3600000}`, "Every hour"},
		{`{"kind":"interval","interval_ms":7200000}`, "Every 2 hours"},
		{`{"kind":"interval","interval_ms":60000}`, "Every minute"},
		{`{"kind":"interval","interval_ms":300000}`, "Every 5 minutes"},
		{`{"kind":"cron","cron_expr":"0 9 * * *"}`, "0 9 * * *"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		if got := FormatSchedule(tt.raw); got != tt.want {
			t.Errorf("FormatSchedule(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}

	once := fmt.Sprintf(`{"kind":"once","at_ms":%d}`, time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local).UnixMilli())
	if got := FormatSchedule(once); !strings.HasPrefix(got, "Once at ") {
		t.Errorf("FormatSchedule(once) = %q", got)
	}
}
