// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2md/internal/container"
	"github.com/pdiddy/pdf2md/internal/convert"
	"github.com/pdiddy/pdf2md/internal/extract"
	"github.com/pdiddy/pdf2md/internal/journal"
	"github.com/pdiddy/pdf2md/internal/render"
	"github.com/pdiddy/pdf2md/internal/secrets"
	"github.com/pdiddy/pdf2md/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert a PDF (or a directory of PDFs) to Markdown",
	Long: `Convert renders every page of the input PDF, transcribes it with the
configured vision model and writes one Markdown file. Figures are cropped
into <output>_assets and per-page Markdown is kept in <output>_temp.

When input is a directory, every .pdf file in it is converted concurrently
into the output directory. Use --solve to write step-by-step solutions to
the problems on each page instead of a transcription, and --page to process
a single 1-based page of one file.

Pages that fail are replaced by an inline error note; the run still
succeeds. Only configuration and filesystem errors exit non-zero.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().Bool("solve", false, "solve the problems on each page instead of transcribing")
	convertCmd.Flags().Int("page", 0, "process only this 1-based page (single file only)")
	convertCmd.Flags().String("model", "", "model identifier (overrides config)")
	convertCmd.Flags().Int("batch-size", 0, "pages processed concurrently per group (overrides config)")
	convertCmd.Flags().String("render-backend", "", "where poppler runs: local or container (overrides config)")
	_ = viper.BindPFlag("model", convertCmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("batch_size", convertCmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("render.backend", convertCmd.Flags().Lookup("render-backend"))

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]
	solve, _ := cmd.Flags().GetBool("solve")
	page, _ := cmd.Flags().GetInt("page")

	cfg, err := conversionConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if err := resolveAPIKey(&cfg, secrets.DefaultDir, os.Stderr); err != nil {
		return err
	}

	info, err := os.Stat(in)
	if err != nil {
		return fmt.Errorf("input %s: %w", in, err)
	}
	if page < 0 {
		return fmt.Errorf("--page must be a positive page number, got %d", page)
	}
	if info.IsDir() && page != 0 {
		return fmt.Errorf("--page applies to a single file, but %s is a directory", in)
	}

	open, err := openFunc(cfg.Render)
	if err != nil {
		return err
	}
	backend := extract.NewGemini(cfg.AIConfig, &http.Client{}, logger)

	opts := []convert.Option{convert.WithOutput(os.Stdout)}
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, convert.WithRecorder(j))
	}
	p := convert.New(cfg, open, backend, nil, logger, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if info.IsDir() {
		_, err := p.ConvertDir(ctx, in, out, solve, os.Stdout)
		return err
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	var res convert.DocumentResult
	if solve {
		res, err = p.SolveDocument(ctx, in, out, page)
	} else {
		res, err = p.ConvertDocument(ctx, in, out, page)
	}
	if err != nil {
		return err
	}
	if n := res.Failed(); n > 0 {
		fmt.Fprintf(os.Stdout, "%d of %d page(s) failed; see the inline error notes.\n", n, len(res.Pages))
	}
	return nil
}

// openFunc returns the document opener for the configured render backend.
func openFunc(cfg types.RenderConfig) (convert.OpenFunc, error) {
	var r *render.Rasterizer
	switch cfg.Backend {
	case types.RenderContainer:
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, err
		}
		r, err = render.NewContainer(cfg, rt, logger)
		if err != nil {
			return nil, err
		}
	default:
		r = render.New(cfg, logger)
	}
	return func(ctx context.Context, path string) (convert.Document, error) {
		doc, err := r.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}, nil
}
