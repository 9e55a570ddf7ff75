package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/domain/run"
	"github.com/kailas-cloud/pagegen/internal/usecase/input"
	"github.com/kailas-cloud/pagegen/internal/usecase/pipeline"
	"github.com/kailas-cloud/pagegen/internal/usecase/retrieval"
)

var generateFlags struct {
	keywords  string
	pdfs      []string
	format    string
	language  string
	wordCount int
	out       string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the pipeline once and write the zip archive",
	Long: `Reads a keyword file (plain text, one keyword per line, or CSV with keyword and
search intent columns), optionally grounds articles in PDF documents, and writes
<slug>.html and <slug>.html.json for every keyword into a zip archive.

Failed keywords are reported on stderr; the exit status is non-zero only when
the whole run fails.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateFlags.keywords, "keywords", "k", "", "Keyword file (.txt or .csv)")
	f.StringSliceVar(&generateFlags.pdfs, "pdf", nil, "PDF document to ground articles in (repeatable)")
	f.StringVar(&generateFlags.format, "format", "auto", "Keyword file format: auto, text, csv")
	f.StringVarP(&generateFlags.language, "language", "l", "", "Article language (default from config)")
	f.IntVarP(&generateFlags.wordCount, "words", "w", 0, "Target word count (default from config)")
	f.StringVarP(&generateFlags.out, "out", "o", "", "Archive path (default from config)")
	_ = generateCmd.MarkFlagRequired("keywords")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := cliLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	req, err := generateRequest()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	stderr := cmd.ErrOrStderr()
	report, archive, err := a.pipeline.Run(ctx, req, func(p run.Progress) {
		switch {
		case p.Keyword != "" && p.Err != nil:
			fmt.Fprintf(stderr, "[%d/%d] %s: failed: %v\n", p.Completed, p.Total, p.Keyword, p.Err)
		case p.Keyword != "":
			fmt.Fprintf(stderr, "[%d/%d] %s\n", p.Completed, p.Total, p.Keyword)
		default:
			fmt.Fprintf(stderr, "%s\n", p.State)
		}
	})
	if err != nil {
		return fmt.Errorf("run %s: %w", report.RunID, err)
	}

	out := generateFlags.out
	if out == "" {
		out = cfg.Output.ArchiveName
	}
	if err := os.WriteFile(out, archive, 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "run %s: %d/%d succeeded, %d tokens, archive %s\n",
		report.RunID, len(report.Succeeded), report.Total, report.Usage.Total(), out)
	for _, r := range report.Failed {
		fmt.Fprintf(stdout, "  failed %q: %v\n", r.Keyword(), r.Err())
	}
	return nil
}

func generateRequest() (pipeline.Request, error) {
	var req pipeline.Request

	data, err := os.ReadFile(generateFlags.keywords)
	if err != nil {
		return req, fmt.Errorf("read keywords: %w", err)
	}
	req.Keywords = data

	format, err := input.ParseFormat(generateFlags.format)
	if err != nil {
		return req, err
	}
	if format == input.FormatAuto {
		format = input.DetectFormat(generateFlags.keywords)
	}
	req.Format = format

	sources, err := readSources(generateFlags.pdfs)
	if err != nil {
		return req, err
	}
	req.PDFs = sources

	if generateFlags.language != "" {
		lang, err := domain.ParseLanguage(generateFlags.language)
		if err != nil {
			return req, err
		}
		req.Language = lang
	}
	req.WordCount = generateFlags.wordCount
	return req, nil
}

func readSources(paths []string) ([]retrieval.Source, error) {
	sources := make([]retrieval.Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		sources = append(sources, retrieval.Source{Name: filepath.Base(p), Data: data})
	}
	return sources, nil
}
