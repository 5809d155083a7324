package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/atscore/internal/extractor"
)

func newExtractCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file.pdf|file.docx>",
		Short: "Print the plain text extracted from a resume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			ext, err := extractor.New(cfg.Upload.MaxBytes, logger).ExtractFile(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err //nolint:wrapcheck // carries the file name
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), ext.Text)
			return err //nolint:wrapcheck // terminal write
		},
	}
}
