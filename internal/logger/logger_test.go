package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GolovachevS/dailybot/internal/config"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"WARN":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"bogus": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	cfg := config.Config{AppEnv: "prod", Log: config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}}

	l := New(cfg)
	l.Debug().Msg("hidden")
	l.Info().Str("daily", "2024-05-01|core").Msg("summary posted")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"daily":"2024-05-01|core"`) {
		t.Fatalf("expected structured field in %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry should be filtered at info level")
	}
}
