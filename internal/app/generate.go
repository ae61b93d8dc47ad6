package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"premarket-bias/internal/credentials"
	"premarket-bias/internal/service"
)

// Generate triggers one briefing run and renders it to stdout.
func (a *App) Generate(ctx context.Context, opts GenerateOptions) error {
	svc, closeSvc, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	res := svc.Generate(ctx, "cli", credentials.Input{LLMKey: opts.LLMKey, NewsKey: opts.NewsKey}, a.Config.ResolveModel(opts.Model))
	if opts.JSON {
		return writeResultJSON(a.out(), res)
	}
	return writeResult(a.out(), res, opts.ShowContext)
}

func writeResult(w io.Writer, res service.Result, showContext bool) error {
	title := "📈 Bias Summary"
	if res.Narrative.Failed() {
		title = "⚠️  Bias Summary unavailable"
	}
	if _, err := fmt.Fprintf(w, "%s\n\n%s\n", title, res.Narrative.Text); err != nil {
		return err
	}
	if !showContext {
		_, err := fmt.Fprintln(w, "\n(use --show-context to print the raw context sent to the model)")
		return err
	}
	_, err := fmt.Fprintf(w, "\n🔍 Raw context sent to the model\n%s\n", res.Context)
	return err
}

func writeResultJSON(w io.Writer, res service.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		service.Result
		Context string `json:"context"`
	}{Result: res, Context: res.Context.String()})
}
