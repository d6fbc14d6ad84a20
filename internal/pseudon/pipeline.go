package pseudon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	dcm "dicom-pseudon/internal/dicom"
	"dicom-pseudon/internal/index"
	"dicom-pseudon/internal/policy"
)

// Stats holds the counters reported at the end of a run.
type Stats struct {
	Total         int
	Pseudonymized int
	Quarantined   map[Reason]int
	WriteErrors   int
}

// QuarantinedTotal sums the per-reason quarantine counts.
func (s *Stats) QuarantinedTotal() int {
	total := 0
	for _, n := range s.Quarantined {
		total += n
	}
	return total
}

// Config holds the per-run pipeline settings.
type Config struct {
	SourceDir     string
	DestDir       string
	QuarantineDir string
	ManifestPath  string
	Modalities    []string
	Workers       int
}

// Pipeline sequences the per-file steps: read, classify, transform, name,
// write. Exactly one disposition per file: pseudonymize xor quarantine.
type Pipeline struct {
	cfg         Config
	idx         *index.Index
	namer       *Namer
	transformer *Transformer
	manifest    *Manifest
	modalities  map[string]bool
	log         zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewPipeline wires a pipeline from its shared, read-only collaborators.
func NewPipeline(cfg Config, pol *policy.Table, idx *index.Index, log zerolog.Logger) *Pipeline {
	modalities := cfg.Modalities
	if len(modalities) == 0 {
		modalities = DefaultModalities
	}
	return &Pipeline{
		cfg:         cfg,
		idx:         idx,
		namer:       NewNamer(cfg.DestDir, cfg.QuarantineDir),
		transformer: NewTransformer(pol),
		manifest:    NewManifest(cfg.ManifestPath),
		modalities:  ModalitySet(modalities),
		log:         log,
	}
}

// Run processes every DICOM container file under the source directory.
// Per-file problems quarantine the file and never abort the run; only
// output-path collisions are fatal mid-run.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	files, err := dcm.FindFiles(p.cfg.SourceDir, p.cfg.DestDir, p.cfg.QuarantineDir)
	if err != nil {
		return nil, fmt.Errorf("could not scan source directory: %w", err)
	}

	p.mu.Lock()
	p.stats = Stats{Total: len(files), Quarantined: map[Reason]int{}}
	p.mu.Unlock()

	p.log.Info().Int("files", len(files)).Str("source", p.cfg.SourceDir).Msg("pseudonymizing DICOM files")

	if p.cfg.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Workers)
		for _, path := range files {
			path := path
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return p.processFile(path)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := p.processFile(path); err != nil {
				return nil, err
			}
		}
	}

	stats := p.snapshot()
	p.log.Info().
		Int("total", stats.Total).
		Int("pseudonymized", stats.Pseudonymized).
		Int("quarantined", stats.QuarantinedTotal()).
		Msg("run complete")
	return stats, nil
}

func (p *Pipeline) processFile(path string) error {
	relPath, err := filepath.Rel(p.cfg.SourceDir, path)
	if err != nil {
		relPath = filepath.Base(path)
	}

	ds, err := dcm.ReadFile(path)
	if err != nil {
		return p.quarantineFile(path, relPath, ReasonUnreadable, []Reason{ReasonUnreadable}, err.Error())
	}

	accession := strings.TrimSpace(ds.AccessionNumber())
	serial := ""
	linkFound := false
	if accession != "" {
		invitation, invErr := ParseInvitation(accession)
		if invErr == nil {
			var lookupErr error
			serial, linkFound, lookupErr = p.idx.Lookup(invitation)
			if lookupErr != nil {
				return p.quarantineFile(path, relPath, ReasonMalformed, []Reason{ReasonMalformed}, lookupErr.Error())
			}
		}
	}

	reason, fired := Classify(ds, Context{
		AccessionPresent: accession != "",
		LinkFound:        linkFound,
		Modalities:       p.modalities,
	})
	if len(fired) > 1 {
		p.log.Debug().Str("file", path).Interface("reasons", fired).Msg("multiple quarantine predicates fired")
	}
	if reason != "" {
		return p.quarantineFile(path, relPath, reason, fired, "")
	}

	if err := p.transformer.Apply(ds, serial); err != nil {
		return p.quarantineFile(path, relPath, ReasonMalformed, []Reason{ReasonMalformed}, err.Error())
	}

	outPath, err := p.namer.PseudonymizedPath(serial)
	if err != nil {
		// Collisions indicate duplicate serial mappings or index
		// corruption; the run must stop.
		return err
	}

	if err := ds.Save(outPath); err != nil {
		p.log.Error().Str("file", path).Err(err).Msg("could not write output file")
		p.mu.Lock()
		p.stats.WriteErrors++
		p.mu.Unlock()
		return nil
	}

	p.mu.Lock()
	p.stats.Pseudonymized++
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) quarantineFile(path, relPath string, reason Reason, fired []Reason, detail string) error {
	event := p.log.Info().Str("file", path).Str("reason", string(reason))
	if detail != "" {
		event = event.Str("detail", detail)
	}
	event.Msg("file moved to quarantine")

	qpath := p.namer.QuarantinePath(reason, relPath)
	if err := dcm.CopyFile(path, qpath); err != nil {
		p.log.Error().Str("file", path).Err(err).Msg("could not copy file to quarantine")
		p.mu.Lock()
		p.stats.WriteErrors++
		p.mu.Unlock()
	}

	if err := p.manifest.Record(relPath, reason, fired, detail); err != nil {
		p.log.Error().Err(err).Msg("could not update quarantine manifest")
	}

	p.mu.Lock()
	p.stats.Quarantined[reason]++
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) snapshot() *Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := Stats{
		Total:         p.stats.Total,
		Pseudonymized: p.stats.Pseudonymized,
		Quarantined:   map[Reason]int{},
		WriteErrors:   p.stats.WriteErrors,
	}
	for r, n := range p.stats.Quarantined {
		out.Quarantined[r] = n
	}
	return &out
}

var digitRun = regexp.MustCompile(`[0-9]+`)

// ParseInvitation derives the invitation number from an Accession Number:
// the whole value when numeric, otherwise its longest digit run. Values
// without digits carry no linkable identity. Always decimal, so zero-padded
// numbers keep their value.
func ParseInvitation(accession string) (int64, error) {
	accession = strings.TrimSpace(accession)
	if accession == "" {
		return 0, errors.New("empty accession number")
	}

	if v, err := strconv.ParseInt(accession, 10, 64); err == nil {
		return v, nil
	}

	longest := ""
	for _, run := range digitRun.FindAllString(accession, -1) {
		if len(run) > len(longest) {
			longest = run
		}
	}
	if longest == "" {
		return 0, fmt.Errorf("accession number %q contains no invitation number", accession)
	}

	v, err := strconv.ParseInt(longest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("accession number %q: %w", accession, err)
	}
	return v, nil
}
