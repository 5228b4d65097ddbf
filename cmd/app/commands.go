package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/starford/sowilo/internal"
	"github.com/starford/sowilo/internal/export"
	"github.com/starford/sowilo/internal/mcpserver"
)

// openStack loads the config and wires the inventory pipeline. Logs go to
// stderr so that stdout stays clean for command output and the MCP protocol.
func openStack(ctx context.Context, cmd *cli.Command) (*internal.Stack, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	slog.SetDefault(logger)
	return internal.Build(ctx, cfg, logger)
}

// fetchNow refreshes the inventory once and fails when no source is set.
func fetchNow(ctx context.Context, st *internal.Stack, force bool) error {
	if st.Service.Inventory().URL() == "" {
		return errors.New("no inventory source configured")
	}
	return st.Service.Refresh(ctx, force)
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch the inventory once and print a summary",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Bypass intermediate caches"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := openStack(ctx, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := fetchNow(ctx, st, cmd.Bool("force")); err != nil {
				return err
			}
			return printSummary(ctx, os.Stdout, st)
		},
	}
}

func printSummary(ctx context.Context, out io.Writer, st *internal.Stack) error {
	views, err := st.Service.Sheets(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHEET\tRECORDS\tSIZE\tMODIFIED")
	for _, v := range views {
		modified := "-"
		if v.LastModified != nil {
			modified = humanize.Time(*v.LastModified)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.DisplayName, humanize.Comma(int64(v.Records)), formatSize(v.Size, v.SizeUnit), modified)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	tot := st.Service.Totals()
	_, err = fmt.Fprintf(out, "\n%s records in %d sheets, %s\n", humanize.Comma(int64(tot.Records)), tot.Sheets, formatSize(tot.Size, tot.SizeUnit))
	return err
}

func formatSize(v float64, unit string) string {
	return humanize.FormatFloat("#,###.##", v) + " " + unit
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Fetch the inventory and print records matching every term",
		ArgsUsage: "<terms...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sort", Usage: "Sort field: name, location, created, size, description"},
			&cli.StringFlag{Name: "order", Value: "asc", Usage: "asc or desc"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return errors.New("search: at least one term is required")
			}
			st, err := openStack(ctx, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := fetchNow(ctx, st, false); err != nil {
				return err
			}
			results, err := st.Service.Filter(ctx, query, cmd.String("sort"), cmd.String("order"))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			total := 0
			for _, res := range results {
				fmt.Fprintf(tw, "# %s\n", res.DisplayName)
				for _, r := range res.Records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Location, r.CreatedLabel, r.SizeLabel)
				}
				total += len(res.Records)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%s matches\n", humanize.Comma(int64(total)))
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Fetch the inventory and write it as an XLSX workbook",
		ArgsUsage: "<file.xlsx>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("export: output file is required")
			}
			st, err := openStack(ctx, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := fetchNow(ctx, st, false); err != nil {
				return err
			}
			n, err := export.WriteFile(path, func(w io.Writer) error {
				return st.Service.ExportXLSX(ctx, w)
			})
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s (%s)\n", path, humanize.Bytes(uint64(n)))
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve inventory tools over MCP on stdin/stdout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := openStack(ctx, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() { _ = st.Scheduler.Run(ctx) }()
			go func() {
				if err := st.Service.RefreshAll(ctx); err != nil {
					slog.Warn("mcp: initial refresh failed", slog.String("error", err.Error()))
				}
			}()

			return mcpserver.New(st.Service).ServeStdio()
		},
	}
}
