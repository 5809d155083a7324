package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/atscore/internal/app"
	"github.com/kailas-cloud/atscore/internal/domain"
	"github.com/kailas-cloud/atscore/internal/domain/document"
	"github.com/kailas-cloud/atscore/internal/domain/feedback"
	"github.com/kailas-cloud/atscore/internal/extractor"
	scoringuc "github.com/kailas-cloud/atscore/internal/usecase/scoring"
)

type scoreOptions struct {
	resumeFile string
	resumeText string
	jobFile    string
	jobText    string
	asJSON     bool
}

type scoreOutput struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Tier     string  `json:"tier"`
	Message  string  `json:"message"`
	Note     string  `json:"note"`
	Degraded bool    `json:"degraded"`
	Error    string  `json:"error,omitempty"`
}

func newScoreCmd(root *rootOptions) *cobra.Command {
	opts := &scoreOptions{}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a resume against a job description",
		Example: `  atscheck score --resume cv.pdf --job-text "Senior Go engineer..."
  atscheck score --resume cv.docx --job jd.pdf --json
  cat cv.txt | atscheck score --resume - --job jd.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.resumeFile, "resume", "", "resume file (pdf, docx, plain text) or - for stdin")
	cmd.Flags().StringVar(&opts.resumeText, "resume-text", "", "resume as text")
	cmd.Flags().StringVar(&opts.jobFile, "job", "", "job description file (pdf, docx, plain text) or - for stdin")
	cmd.Flags().StringVar(&opts.jobText, "job-text", "", "job description as text")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")

	cmd.MarkFlagsMutuallyExclusive("resume", "resume-text")
	cmd.MarkFlagsMutuallyExclusive("job", "job-text")
	cmd.MarkFlagsOneRequired("resume", "resume-text")
	cmd.MarkFlagsOneRequired("job", "job-text")

	return cmd
}

func runScore(cmd *cobra.Command, root *rootOptions, opts *scoreOptions) error {
	if opts.resumeFile == "-" && opts.jobFile == "-" {
		return errors.New("only one of --resume and --job can read stdin")
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger, err := root.logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	pipeline, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build scoring pipeline: %w", err)
	}
	defer pipeline.Close()

	resume, err := readInput(ctx, cmd.InOrStdin(), pipeline.Extractor, opts.resumeFile, opts.resumeText)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	job, err := readInput(ctx, cmd.InOrStdin(), pipeline.Extractor, opts.jobFile, opts.jobText)
	if err != nil {
		return fmt.Errorf("job description: %w", err)
	}

	res, err := pipeline.Scoring.Score(ctx, resume, job)
	if err != nil && !errors.Is(err, domain.ErrScoring) {
		return err //nolint:wrapcheck // validation message is user-facing
	}

	out := toOutput(res, err)
	if opts.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out) //nolint:wrapcheck // terminal write
	}
	printResult(cmd.OutOrStdout(), out)
	if out.Error != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", out.Error)
	}
	return nil
}

// readInput returns text when no path is given, stdin for "-", the extracted text of a pdf/docx
// file, or the raw content of any other file.
func readInput(ctx context.Context, stdin io.Reader, ext *extractor.Extractor, path, text string) (string, error) {
	switch path {
	case "":
		return text, nil
	case "-":
		b, err := io.ReadAll(io.LimitReader(stdin, ext.MaxBytes()))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := document.FormatFromFilename(path); err != nil {
		b, err := io.ReadAll(io.LimitReader(f, ext.MaxBytes()))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(b), nil
	}

	res, err := ext.ExtractFile(ctx, filepath.Base(path), f)
	if err != nil {
		return "", err //nolint:wrapcheck // carries the file name
	}
	return res.Text, nil
}

func toOutput(res scoringuc.Result, scoreErr error) scoreOutput {
	out := scoreOutput{
		ID:       res.ID,
		Score:    res.Score,
		Tier:     string(res.Tier),
		Message:  res.Message(),
		Note:     feedback.Note,
		Degraded: res.Degraded,
	}
	if scoreErr != nil {
		out.Error = scoreErr.Error()
	}
	return out
}

func printResult(w io.Writer, out scoreOutput) {
	fmt.Fprintf(w, "Match score: %.2f%%\n", out.Score)
	fmt.Fprintf(w, "Tier:        %s\n", out.Tier)
	fmt.Fprintf(w, "%s\n", out.Message)
	fmt.Fprintf(w, "%s\n", out.Note)
}
