package main

// Run the rewrite and metadata prompts against a live model:
//   go run ./cmd/prompttest -template letter.tex -jd job.txt

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"coverletter-backend/internal/llm"
	"coverletter-backend/internal/llm/gemini"
	"coverletter-backend/internal/llm/openai"
	"coverletter-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	templatePath := flag.String("template", "", "Path to the template letter (.tex)")
	jdPath := flag.String("jd", "", "Path to the job description file")
	outPath := flag.String("out", "", "Path to write the rewritten LaTeX (optional)")
	metadataOnly := flag.Bool("metadata-only", false, "Skip the rewrite and extract metadata from -template")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider (openai|gemini)")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	metadataModel := flag.String("metadata-model", cfg.LLMMetadataModel, "LLM model for metadata extraction")
	flag.Parse()

	if strings.TrimSpace(*templatePath) == "" {
		exitErr("template path is required")
	}
	templateBytes, err := os.ReadFile(*templatePath)
	if err != nil {
		exitErr(fmt.Sprintf("read template: %v", err))
	}

	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(*provider))
	cfg.LLMModel = *model
	cfg.LLMMetadataModel = *metadataModel
	client, err := buildClient(cfg)
	if err != nil {
		exitErr(err.Error())
	}

	ctx := context.Background()
	latex := string(templateBytes)
	if !*metadataOnly {
		if strings.TrimSpace(*jdPath) == "" {
			exitErr("job description path is required")
		}
		jdBytes, err := os.ReadFile(*jdPath)
		if err != nil {
			exitErr(fmt.Sprintf("read job description: %v", err))
		}
		start := time.Now()
		latex, err = client.Rewrite(ctx, llm.RewriteInput{
			JobDescription: string(jdBytes),
			TemplateLatex:  latex,
			AsOf:           time.Now(),
		})
		if err != nil {
			exitErr(fmt.Sprintf("llm rewrite: %v", err))
		}
		fmt.Fprintf(os.Stderr, "rewrite: %d bytes in %s\n", len(latex), time.Since(start).Round(time.Millisecond))
		if *outPath != "" {
			if err := os.WriteFile(*outPath, []byte(latex), 0o644); err != nil {
				exitErr(fmt.Sprintf("write output: %v", err))
			}
		} else {
			fmt.Println(latex)
		}
	}

	md, err := client.ExtractMetadata(ctx, latex)
	if err != nil {
		exitErr(fmt.Sprintf("llm metadata: %v", err))
	}
	raw, err := json.Marshal(md)
	if err != nil {
		exitErr(fmt.Sprintf("encode metadata: %v", err))
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	buf.WriteByte('\n')
	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func buildClient(cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "", "openai":
		return openai.NewClient(openai.Options{
			APIKey:        cfg.OpenAIAPIKey,
			Model:         cfg.LLMModel,
			MetadataModel: cfg.LLMMetadataModel,
			BaseURL:       cfg.OpenAIBaseURL,
			Timeout:       cfg.LLMTimeout,
		})
	case "gemini", "google":
		return gemini.NewClient(gemini.Options{
			APIKey:        cfg.GeminiAPIKey,
			Model:         cfg.LLMModel,
			MetadataModel: cfg.LLMMetadataModel,
			BaseURL:       cfg.GeminiBaseURL,
			Timeout:       cfg.LLMTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.LLMProvider)
	}
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
