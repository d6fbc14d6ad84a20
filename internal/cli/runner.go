// Package cli wires configuration into a pseudonymization run.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"dicom-pseudon/internal/index"
	"dicom-pseudon/internal/policy"
	"dicom-pseudon/internal/pseudon"
)

// Options holds the full CLI configuration. Built once in main, passed by
// reference; no ambient state.
type Options struct {
	SourceDir     string
	DestDir       string
	LinksPath     string
	AllowListPath string

	QuarantineDir   string // default: <dest>/quarantine
	ManifestPath    string // default: <quarantine>/manifest.json
	IndexPath       string // default: <dest>/index.db
	Modalities      []string
	Workers         int
	LinksDelimiter  string
	LinksSkipHeader bool
	AllowSkipHeader bool
	KeepIndex       bool
}

func (o *Options) applyDefaults() {
	if o.QuarantineDir == "" {
		o.QuarantineDir = filepath.Join(o.DestDir, "quarantine")
	}
	if o.ManifestPath == "" {
		o.ManifestPath = filepath.Join(o.QuarantineDir, "manifest.json")
	}
	if o.IndexPath == "" {
		o.IndexPath = filepath.Join(o.DestDir, "index.db")
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
}

// Run executes one pseudonymization run. Configuration problems return an
// error before any file is touched; per-file conditions are handled inside
// the pipeline and reflected in the returned stats.
func Run(ctx context.Context, opts Options, log zerolog.Logger) (*pseudon.Stats, error) {
	opts.applyDefaults()

	info, err := os.Stat(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("source directory does not exist: %s", opts.SourceDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", opts.SourceDir)
	}

	destAbs, err := filepath.Abs(opts.DestDir)
	if err == nil {
		srcAbs, aerr := filepath.Abs(opts.SourceDir)
		if aerr == nil && strings.HasPrefix(destAbs+string(filepath.Separator), srcAbs+string(filepath.Separator)) {
			return nil, fmt.Errorf("destination directory cannot be inside or equal to source directory")
		}
	}

	if err := os.MkdirAll(opts.DestDir, 0755); err != nil {
		return nil, fmt.Errorf("destination is not writable: %w", err)
	}

	allow, err := policy.LoadAllowList(opts.AllowListPath, opts.AllowSkipHeader)
	if err != nil {
		return nil, err
	}
	table := policy.NewTable(allow)

	delimiter := ','
	if opts.LinksDelimiter != "" {
		delimiter = rune(opts.LinksDelimiter[0])
	}
	idx, err := index.Build(opts.IndexPath, opts.LinksPath, delimiter, opts.LinksSkipHeader)
	if err != nil {
		return nil, err
	}
	defer func() {
		// The index is a disposable cache, not a record of truth.
		if opts.KeepIndex {
			idx.Close()
			return
		}
		if err := idx.Discard(); err != nil {
			log.Warn().Err(err).Msg("could not discard index database")
		}
	}()

	if n, err := idx.Count(); err == nil {
		log.Info().Int64("links", n).Str("index", opts.IndexPath).Msg("identity index built")
	}

	pipeline := pseudon.NewPipeline(pseudon.Config{
		SourceDir:     opts.SourceDir,
		DestDir:       opts.DestDir,
		QuarantineDir: opts.QuarantineDir,
		ManifestPath:  opts.ManifestPath,
		Modalities:    opts.Modalities,
		Workers:       opts.Workers,
	}, table, idx, log)

	return pipeline.Run(ctx)
}

// PrintSummary writes the run report to stdout.
func PrintSummary(opts Options, stats *pseudon.Stats) {
	opts.applyDefaults()

	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Total files:    %d\n", stats.Total)
	fmt.Printf("Pseudonymized:  %d\n", stats.Pseudonymized)
	fmt.Printf("Quarantined:    %d\n", stats.QuarantinedTotal())

	reasons := make([]string, 0, len(stats.Quarantined))
	for r := range stats.Quarantined {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("  %-22s %d\n", r+":", stats.Quarantined[pseudon.Reason(r)])
	}

	if stats.WriteErrors > 0 {
		fmt.Printf("Write errors:   %d\n", stats.WriteErrors)
	}
	fmt.Printf("Output:     %s\n", opts.DestDir)
	fmt.Printf("Quarantine: %s\n", opts.QuarantineDir)
	fmt.Printf("Manifest:   %s\n", opts.ManifestPath)
}

// PrintUsage prints CLI usage information.
func PrintUsage() {
	fmt.Println(`dicom-pseudon - DICOM bulk pseudonymizer

USAGE:
  pseudon [flags] <source_dir> <dest_dir> <links_table> <allow_list>

ARGUMENTS:
  source_dir   Directory scanned recursively for DICOM files
  dest_dir     Directory receiving pseudonymized output
  links_table  CSV: invitation number, serial number (one pair per row)
  allow_list   File listing tags to preserve, one group,element pair per row

FLAGS:
  --modalities <csv>       Allowed modalities (default "MR,CT")
  --quarantine <path>      Quarantine directory (default {dest}/quarantine)
  --index <path>           Index database path (default {dest}/index.db)
  --workers <n>            Parallel workers (default 1)
  --links-delimiter <c>    Links table delimiter (default ",")
  --links-skip-header      Skip the first links table row
  --allow-skip-header      Skip the first allow-list row
  --keep-index             Keep the index database after the run
  --log-level <level>      debug, info, warn, error (default info)

Files that cannot be safely pseudonymized are copied unmodified into the
quarantine directory, organized by reason; quarantine/manifest.json maps
each file to its reason. The run exits 0 even when files were quarantined;
a non-zero exit means a configuration error stopped the run before any
file was processed.`)
}
