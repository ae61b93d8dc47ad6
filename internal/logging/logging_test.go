package logging

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger(Config{Level: "debug", Format: "json"}, nil)
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("日志级别应为 debug, 实际 %s", logger.GetLevel())
	}

	logger = NewLogger(Config{Level: "bogus"}, nil)
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("非法级别应回退到 info, 实际 %s", logger.GetLevel())
	}
}

func TestLogWriterDefaultsToStderr(t *testing.T) {
	if w := logWriter(Config{Format: "json"}, nil); w != os.Stderr {
		t.Fatalf("默认输出应为 stderr")
	}
	if w := logWriter(Config{Format: "json", Output: "stdout"}, nil); w != os.Stdout {
		t.Fatalf("output=stdout 时应输出到 stdout")
	}
	if _, ok := logWriter(Config{Format: "console"}, nil).(zerolog.ConsoleWriter); !ok {
		t.Fatalf("console 格式应使用 ConsoleWriter")
	}
	if _, ok := logWriter(Config{Format: "json"}, NewRedactor()).(*redactingWriter); !ok {
		t.Fatalf("配置 redactor 时应包装输出")
	}
}

func TestRedactorMasksRegisteredSecrets(t *testing.T) {
	var buf bytes.Buffer
	r := NewRedactor("sk-live-abcdef")
	logger := zerolog.New(r.Wrap(&buf))

	r.Add("news-key-123456", "", "abc")
	logger.Error().
		Err(errors.New(`Get "https://newsapi.org/v2/top-headlines?apiKey=news-key-123456": timeout`)).
		Str("hint", "sk-live-abcdef").
		Msg("request failed")

	out := buf.String()
	if strings.Contains(out, "news-key-123456") || strings.Contains(out, "sk-live-abcdef") {
		t.Fatalf("日志中不应出现 key: %s", out)
	}
	if strings.Count(out, Mask) != 2 {
		t.Fatalf("两处 key 都应被替换: %s", out)
	}
	if r.Redact("abc") != "abc" {
		t.Fatal("过短的值不应被注册")
	}
}

func TestRedactorPrefersLongerSecret(t *testing.T) {
	r := NewRedactor("token1", "token1-extended")
	if got := r.Redact("x token1-extended y"); got != "x "+Mask+" y" {
		t.Fatalf("应整体替换较长的 key, 实际 %q", got)
	}
}

func TestRedactorConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	r := NewRedactor("console-secret")
	logger := zerolog.New(zerolog.ConsoleWriter{Out: r.Wrap(&buf), NoColor: true})
	logger.Info().Str("key", "console-secret").Msg("hello")

	if strings.Contains(buf.String(), "console-secret") || !strings.Contains(buf.String(), Mask) {
		t.Fatalf("console 输出也应脱敏: %s", buf.String())
	}
}

func TestNilRedactorIsNoop(t *testing.T) {
	var r *Redactor
	r.Add("anything-long")
	if r.Redact("anything-long") != "anything-long" {
		t.Fatal("nil redactor 不应修改内容")
	}
}

func TestRedactorConcurrentAdd(t *testing.T) {
	r := NewRedactor()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Add(strings.Repeat(string(rune('a'+i)), 8))
			_ = r.Redact("aaaaaaaa bbbbbbbb")
		}(i)
	}
	wg.Wait()
	if got := r.Redact("aaaaaaaa"); got != Mask {
		t.Fatalf("并发注册后应能脱敏, 实际 %q", got)
	}
}
