package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/pagegen/internal/transport/pdfcpu"
	"github.com/kailas-cloud/pagegen/internal/usecase/retrieval"
)

var extractFlags struct {
	pdfs []string
	raw  bool
}

var extractCmd = &cobra.Command{
	Use:   "extract --pdf FILE [--pdf FILE...]",
	Short: "Print the text retrieval would index for the given PDFs",
	RunE:  runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.StringSliceVar(&extractFlags.pdfs, "pdf", nil, "PDF document (repeatable; positional arguments work too)")
	f.BoolVar(&extractFlags.raw, "raw", false, "Skip text cleaning")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := cliLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	paths := append(append([]string{}, extractFlags.pdfs...), args...)
	if len(paths) == 0 {
		return errors.New("no documents given")
	}
	sources, err := readSources(paths)
	if err != nil {
		return err
	}

	svc := retrieval.New(pdfcpu.NewReader(logger), nil, nil, logger)
	text, errs := svc.ExtractText(cmd.Context(), sources)
	skipped := retrieval.DocumentErrors(errs)
	for _, e := range skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", e.File, e.Cause)
	}
	if !extractFlags.raw {
		text = retrieval.Clean(text)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)

	if len(skipped) == len(sources) {
		return errors.New("no readable documents")
	}
	return nil
}
