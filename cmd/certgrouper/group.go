package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"certgrouper/internal/model"
	"certgrouper/internal/service"
)

// groupReport is what `group` prints in json and yaml form.
type groupReport struct {
	Output  string        `json:"output,omitempty" yaml:"output,omitempty"`
	Bytes   int           `json:"bytes" yaml:"bytes"`
	DryRun  bool          `json:"dry_run" yaml:"dry_run"`
	Summary model.Summary `json:"summary" yaml:"summary"`
}

func newGroupCommand(ctx *cliContext) *cobra.Command {
	var (
		output      string
		format      string
		maxArchives int
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "group [flags] ZIP...",
		Short: "Group certificates from employee ZIP exports by course",
		Long: "Reads every PDF certificate from the given employee ZIP files and writes one\n" +
			"archive with a folder per course. A single unreadable ZIP aborts the whole run.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := resolveFormat(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			logger := ctx.logger(cmd)

			archives, err := loadArchives(args)
			if err != nil {
				return err
			}
			logger.Info("archives_loaded", slog.Int("count", len(archives)))

			svc := service.NewBatchService(nil, nil, service.Options{
				MaxArchives:    maxArchives,
				OutputFilename: filepath.Base(output),
				Logger:         logger,
			})

			report := groupReport{DryRun: dryRun}
			if dryRun {
				sum, err := svc.Preview(cmd.Context(), archives)
				if err != nil {
					return err
				}
				report.Summary = *sum
			} else {
				res, err := svc.Process(cmd.Context(), archives)
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, res.Archive, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				report.Output = output
				report.Bytes = len(res.Archive)
				report.Summary = res.Summary
			}

			return printGroupReport(cmd, outFormat, report)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", ctx.cfg.Grouper.OutputFilename, "Path of the grouped archive")
	cmd.Flags().StringVar(&format, "format", formatAuto, "Summary format: table, json or yaml (default table on a terminal, json otherwise)")
	cmd.Flags().IntVar(&maxArchives, "max-archives", ctx.cfg.Grouper.MaxArchives, "Maximum number of ZIP files per run")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the course folders without writing an archive")

	return cmd
}

// loadArchives reads each path fully into memory; the archive name is the file's base name.
func loadArchives(paths []string) ([]model.InputArchive, error) {
	archives := make([]model.InputArchive, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		archives = append(archives, model.InputArchive{Name: filepath.Base(p), Data: data})
	}
	return archives, nil
}

func printGroupReport(cmd *cobra.Command, format string, r groupReport) error {
	switch format {
	case formatJSON:
		return writeJSON(cmd, r)
	case formatYAML:
		return writeYAML(cmd, r)
	}

	rows := make([][]string, 0, len(r.Summary.Groups))
	for _, g := range r.Summary.Groups {
		rows = append(rows, []string{g.Course, g.Folder, strconv.Itoa(g.Documents)})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable([]string{"Course", "Folder", "Certificates"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))

	verb := "Grouped"
	if r.DryRun {
		verb = "Would group"
	}
	fmt.Fprintf(out, "%s %d certificates into %d course folders.\n", verb, r.Summary.TotalDocuments, r.Summary.GroupCount)
	if r.Summary.Overwritten > 0 {
		fmt.Fprintf(out, "%d certificates shared a file name with a later one and were replaced.\n", r.Summary.Overwritten)
	}
	if r.Output != "" {
		fmt.Fprintf(out, "Wrote %s (%s).\n", r.Output, humanize.Bytes(uint64(r.Bytes)))
	}
	return nil
}
