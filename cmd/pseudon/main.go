package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"dicom-pseudon/internal/cli"
	"dicom-pseudon/internal/logging"
)

func main() {
	modalities := flag.String("modalities", "MR,CT", "Comma-separated list of allowed modalities")
	quarantine := flag.String("quarantine", "", "Quarantine directory (default {dest}/quarantine)")
	indexPath := flag.String("index", "", "Index database path (default {dest}/index.db)")
	workers := flag.Int("workers", 1, "Number of parallel workers")
	linksDelimiter := flag.String("links-delimiter", ",", "Delimiter for the links table")
	linksSkipHeader := flag.Bool("links-skip-header", false, "Skip the first row of the links table")
	allowSkipHeader := flag.Bool("allow-skip-header", false, "Skip the first row of the allow list")
	keepIndex := flag.Bool("keep-index", false, "Keep the index database after the run")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Usage = cli.PrintUsage
	flag.Parse()

	args := flag.Args()
	if len(args) != 4 {
		cli.PrintUsage()
		os.Exit(2)
	}

	log := logging.New(logging.Config{Level: *logLevel, Pretty: true})

	opts := cli.Options{
		SourceDir:       args[0],
		DestDir:         args[1],
		LinksPath:       args[2],
		AllowListPath:   args[3],
		QuarantineDir:   *quarantine,
		IndexPath:       *indexPath,
		Modalities:      splitCSV(*modalities),
		Workers:         *workers,
		LinksDelimiter:  *linksDelimiter,
		LinksSkipHeader: *linksSkipHeader,
		AllowSkipHeader: *allowSkipHeader,
		KeepIndex:       *keepIndex,
	}

	stats, err := cli.Run(context.Background(), opts, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cli.PrintSummary(opts, stats)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
