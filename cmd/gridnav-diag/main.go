// Package main is a CLI for inspecting the error traces written by the follower.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/gridnav/diagnostics"
)

const flagOutputDir = "out"

type traceSummary struct {
	File string `json:"file"`
	diagnostics.Summary
}

func main() {
	app := &cli.App{
		Name:  "gridnav-diag",
		Usage: "inspect trajectory tracking error traces",
		Commands: []*cli.Command{
			{
				Name:      "summarize",
				Usage:     "print statistics for each trace, steadiest first",
				ArgsUsage: "<trace.txt> [trace.txt...]",
				Action:    summarizeAction,
			},
			{
				Name:      "plot",
				Usage:     "draw each trace to a png named after its gains",
				ArgsUsage: "<trace.txt> [trace.txt...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagOutputDir,
						Value: ".",
						Usage: "write plots to `DIR`",
					},
				},
				Action: plotAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func summarizeAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("expected at least one trace file")
	}
	summaries := make([]traceSummary, 0, c.NArg())
	for _, file := range c.Args().Slice() {
		errs, err := diagnostics.ReadErrors(file)
		if err != nil {
			return err
		}
		summary, err := diagnostics.Summarize(errs)
		if err != nil {
			return errors.Wrapf(err, "summarizing %q", file)
		}
		summaries = append(summaries, traceSummary{File: file, Summary: summary})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].StdDev < summaries[j].StdDev
	})

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}

func plotAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("expected at least one trace file")
	}
	for _, file := range c.Args().Slice() {
		gains, err := diagnostics.ParseGainsKey(file)
		if err != nil {
			return err
		}
		errs, err := diagnostics.ReadErrors(file)
		if err != nil {
			return err
		}
		path, err := diagnostics.PlotErrors(c.String(flagOutputDir), gains, errs)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s\n", path)
	}
	return nil
}
