// Package credentials resolves the per-run LLM and news keys.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

const NewsKeyEnv = "NEWSAPI_KEY"

// Source records where a credential came from.
type Source string

const (
	SourceNone     Source = "none"
	SourceExplicit Source = "explicit"
	SourceSecrets  Source = "secrets"
	SourceEnv      Source = "env"
)

// Secrets is the stored secrets file, keyed by environment variable name.
type Secrets map[string]string

// LoadSecrets reads a flat TOML secrets file. A missing file yields empty
// secrets.
func LoadSecrets(path string) (Secrets, error) {
	if path == "" {
		return Secrets{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("read secrets %s: %w", path, err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse secrets %s: %w", path, err)
	}

	secrets := make(Secrets, len(doc))
	for k, v := range doc {
		if s, ok := v.(string); ok {
			secrets[k] = s
		}
	}
	return secrets, nil
}

// Input is the explicit per-run input; empty fields fall through.
type Input struct {
	LLMKey  string
	NewsKey string
}

// Credentials are the resolved keys. They are passed explicitly into each
// call and never stored globally.
type Credentials struct {
	LLMKey     string
	LLMSource  Source
	NewsKey    string
	NewsSource Source
}

// HasNewsKey reports whether headlines should be fetched.
func (c Credentials) HasNewsKey() bool {
	return c.NewsKey != ""
}

// MarshalZerologObject logs presence and origin only.
func (c Credentials) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("llm_key", c.LLMKey != "").
		Str("llm_source", string(c.LLMSource)).
		Bool("news_key", c.NewsKey != "").
		Str("news_source", string(c.NewsSource))
}

// Resolver applies explicit > secrets file > environment > empty.
type Resolver struct {
	Secrets   Secrets
	LookupEnv func(string) (string, bool)
	LLMEnv    string
	NewsEnv   string
}

// NewResolver builds a resolver over the process environment.
func NewResolver(secrets Secrets, llmEnv string) *Resolver {
	return &Resolver{
		Secrets:   secrets,
		LookupEnv: os.LookupEnv,
		LLMEnv:    llmEnv,
		NewsEnv:   NewsKeyEnv,
	}
}

// Resolve produces the credentials for one run.
func (r *Resolver) Resolve(in Input) Credentials {
	var c Credentials
	c.LLMKey, c.LLMSource = r.resolve(in.LLMKey, r.LLMEnv)
	c.NewsKey, c.NewsSource = r.resolve(in.NewsKey, r.NewsEnv)
	return c
}

func (r *Resolver) resolve(explicit, name string) (string, Source) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, SourceExplicit
	}
	if name == "" {
		return "", SourceNone
	}
	if v := strings.TrimSpace(r.Secrets[name]); v != "" {
		return v, SourceSecrets
	}
	if r.LookupEnv != nil {
		if v, ok := r.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), SourceEnv
		}
	}
	return "", SourceNone
}
