package logging

import (
	"io"
	"sort"
	"strings"
	"sync"
)

// Mask replaces every registered secret in log output.
const Mask = "[REDACTED]"

// Values shorter than this are too likely to collide with ordinary text.
const minSecretLen = 6

// Redactor keeps the set of credential values that must never reach a log
// sink. It is safe for concurrent use; the nil Redactor masks nothing.
type Redactor struct {
	mu       sync.RWMutex
	secrets  map[string]struct{}
	replacer *strings.Replacer
}

// NewRedactor returns a Redactor seeded with values.
func NewRedactor(values ...string) *Redactor {
	r := &Redactor{secrets: make(map[string]struct{})}
	r.Add(values...)
	return r
}

// Add registers more secret values. Blank and very short values are ignored.
func (r *Redactor) Add(values ...string) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if len(v) < minSecretLen {
			continue
		}
		if _, ok := r.secrets[v]; ok {
			continue
		}
		r.secrets[v] = struct{}{}
		changed = true
	}
	if changed {
		r.rebuild()
	}
}

// rebuild 按长度倒序生成 replacer, 避免短 key 先匹配到长 key 的前缀。
func (r *Redactor) rebuild() {
	keys := make([]string, 0, len(r.secrets))
	for k := range r.secrets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, Mask)
	}
	r.replacer = strings.NewReplacer(pairs...)
}

// Redact masks every registered secret in s.
func (r *Redactor) Redact(s string) string {
	if r == nil {
		return s
	}
	r.mu.RLock()
	replacer := r.replacer
	r.mu.RUnlock()
	if replacer == nil {
		return s
	}
	return replacer.Replace(s)
}

// Wrap returns a writer that redacts each write before forwarding it to out.
// zerolog emits one event per Write, so a secret never spans two calls.
func (r *Redactor) Wrap(out io.Writer) io.Writer {
	return &redactingWriter{redactor: r, out: out}
}

type redactingWriter struct {
	redactor *Redactor
	out      io.Writer
}

func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.out, w.redactor.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
