package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"certgrouper/internal/grouping"
)

type parsedName struct {
	Name   string `json:"name" yaml:"name"`
	Course string `json:"course" yaml:"course"`
	Folder string `json:"folder" yaml:"folder"`
}

func newParseCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "parse NAME...",
		Short: "Show the course folder each certificate file name maps to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := resolveFormat(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			parsed := make([]parsedName, 0, len(args))
			for _, name := range args {
				key := grouping.ParseGroupKey(name)
				parsed = append(parsed, parsedName{Name: name, Course: key, Folder: grouping.Sanitize(key)})
			}

			switch outFormat {
			case formatJSON:
				return writeJSON(cmd, parsed)
			case formatYAML:
				return writeYAML(cmd, parsed)
			}

			rows := make([][]string, 0, len(parsed))
			for _, p := range parsed {
				rows = append(rows, []string{p.Name, p.Course, p.Folder})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"File", "Course", "Folder"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatAuto, "Output format: table, json or yaml")
	return cmd
}
