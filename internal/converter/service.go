package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/git2pdf/internal/config"
	"github.com/fyrsmithlabs/git2pdf/internal/document"
	"github.com/fyrsmithlabs/git2pdf/internal/fetch"
	"github.com/fyrsmithlabs/git2pdf/internal/gate"
	"github.com/fyrsmithlabs/git2pdf/internal/lockfile"
	"github.com/fyrsmithlabs/git2pdf/internal/logging"
	"github.com/fyrsmithlabs/git2pdf/internal/pathguard"
	"github.com/fyrsmithlabs/git2pdf/internal/sweep"
	"github.com/fyrsmithlabs/git2pdf/internal/walker"
	"github.com/fyrsmithlabs/git2pdf/internal/workspace"
)

const instrumentationName = "github.com/fyrsmithlabs/git2pdf/internal/converter"

// Workspace subdirectories.
const (
	OperationsDir = "operations"
	ArtifactsDir  = "pdfs"
)

const scratchPerm = 0o700

// Fetcher clones a validated repository into dest.
type Fetcher interface {
	Fetch(ctx context.Context, repo fetch.Repository, dest string, timeout time.Duration) error
}

// FetcherFactory builds the Fetcher for one conversion's config snapshot.
type FetcherFactory func(cfg *config.Config, logger *zap.Logger) Fetcher

// Result describes a published artifact.
type Result struct {
	ID            string
	Repository    string
	Artifact      string
	Path          string
	SizeBytes     int64
	Pages         int
	FilesIncluded int
	SkippedBySize []string
	SkippedByType []string
	Duration      time.Duration
}

// Service runs conversions.
type Service struct {
	store      *config.Store
	gate       *gate.Gate
	history    *History
	locker     lockfile.Locker
	newFetcher FetcherFactory
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	published []string // artifact directories written by this Service, newest first
}

// Option configures a Service.
type Option func(*Service)

// WithFetcherFactory replaces the git subprocess fetcher.
func WithFetcherFactory(f FetcherFactory) Option {
	return func(s *Service) { s.newFetcher = f }
}

// WithTracer sets the tracer used for conversion spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithLocker sets the lock implementation used by the sweepers.
func WithLocker(l lockfile.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithHistory sets the history the Service records into.
func WithHistory(h *History) Option {
	return func(s *Service) { s.history = h }
}

// NewService creates a Service. The admission gate capacity is taken from
// the store's current config and stays fixed for the Service's lifetime.
func NewService(store *config.Store, logger *zap.Logger, opts ...Option) (*Service, error) {
	if store == nil || store.Current() == nil {
		return nil, errors.New("config store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:      store,
		gate:       gate.New(store.Current().Limits.MaxConcurrent),
		history:    NewHistory(DefaultHistorySize),
		locker:     lockfile.NewFileLocker(),
		newFetcher: defaultFetcher,
		tracer:     otel.Tracer(instrumentationName),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func defaultFetcher(cfg *config.Config, logger *zap.Logger) Fetcher {
	return fetch.NewFetcher(cfg.Fetch.GitPath, cfg.Fetch.Depth, cfg.Fetch.AllowedHosts, logger)
}

// Gate returns the admission gate.
func (s *Service) Gate() *gate.Gate { return s.gate }

// History returns the record of finished conversions.
func (s *Service) History() *History { return s.history }

// Convert clones rawURL and publishes it as a PDF artifact.
//
// The URL is validated and admission is decided before any file system or
// network work. On failure the scratch directory and any partial artifact
// are removed and the error wraps one of the package-level sentinels
// understood by Kind.
func (s *Service) Convert(ctx context.Context, rawURL string) (res *Result, err error) {
	start := s.now()
	cfg := s.store.Current()
	id := newOperationID(start)

	ctx = logging.WithOperationID(ctx, id)
	ctx, span := s.tracer.Start(ctx, "convert", trace.WithAttributes(
		attribute.String("operation.id", id),
	))
	defer span.End()
	log := s.logger.With(logging.ContextFields(ctx)...)

	defer func() {
		s.finish(span, log, id, rawURL, start, res, err)
	}()

	repo, err := fetch.ParseRepository(rawURL, cfg.Fetch.AllowedHosts)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("repository", repo.String()))

	ticket, err := s.gate.Admit()
	if err != nil {
		return nil, err
	}
	defer ticket.Release()
	ConversionsActive.Inc()
	defer ConversionsActive.Dec()

	defer func() {
		if r := recover(); r != nil {
			log.Error("conversion panicked", zap.Any("panic", r), zap.Stack("stack"))
			res, err = nil, fmt.Errorf("%w: panic: %v", ErrInternal, r)
		}
	}()

	log.Info("conversion started", zap.String("repository", repo.String()))
	return s.run(ctx, cfg, id, repo, log)
}

func (s *Service) run(ctx context.Context, cfg *config.Config, id string, repo fetch.Repository, log *zap.Logger) (res *Result, err error) {
	resolver := newResolver(cfg, log)
	root, err := resolver.Resolve()
	if err != nil {
		return nil, err
	}
	opsDir, artifactsDir, err := ensureLayout(root)
	if err != nil {
		return nil, err
	}
	s.rememberArtifactDir(artifactsDir)

	s.sweep(ctx, cfg, opsDir, artifactsDir, log)

	if err := resolver.CheckFreeSpace(root); err != nil {
		return nil, err
	}

	scratch, err := pathguard.Join(opsDir, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	defer func() {
		if rerr := os.RemoveAll(scratch); rerr != nil {
			log.Warn("failed to remove scratch directory", zap.String("dir", scratch), zap.Error(rerr))
		}
	}()
	repoDir := filepath.Join(scratch, "repo")
	outDir := filepath.Join(scratch, "output")
	if err := os.MkdirAll(outDir, scratchPerm); err != nil {
		return nil, fmt.Errorf("%w: creating scratch directory: %v", ErrInternal, err)
	}

	final, err := pathguard.Join(artifactsDir, artifactName(repo, id))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(final + ".tmp")
			_ = os.Remove(final)
		}
	}()

	if err := s.fetch(ctx, cfg, repo, repoDir, log); err != nil {
		return nil, err
	}

	staging := filepath.Join(outDir, "document.pdf")
	out, counters, err := s.render(ctx, cfg, repo, repoDir, staging, log)
	if err != nil {
		return nil, err
	}

	size, err := s.commit(ctx, cfg, staging, final)
	if err != nil {
		return nil, err
	}

	return &Result{
		ID:            id,
		Repository:    repo.String(),
		Artifact:      filepath.Base(final),
		Path:          final,
		SizeBytes:     size,
		Pages:         out.Pages,
		FilesIncluded: counters.Included,
		SkippedBySize: out.Skipped.BySize,
		SkippedByType: out.Skipped.ByType,
	}, nil
}

func (s *Service) fetch(ctx context.Context, cfg *config.Config, repo fetch.Repository, dest string, log *zap.Logger) error {
	ctx, span := s.tracer.Start(ctx, "convert.fetch", trace.WithAttributes(
		attribute.String("clone.url", repo.CloneURL),
	))
	defer span.End()

	f := s.newFetcher(cfg, log)
	if err := f.Fetch(ctx, repo, dest, cfg.Fetch.Timeout.Duration()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return err
	}
	return nil
}

func (s *Service) render(ctx context.Context, cfg *config.Config, repo fetch.Repository, repoDir, staging string, log *zap.Logger) (*document.Output, walker.Counters, error) {
	ctx, span := s.tracer.Start(ctx, "convert.walk")
	defer span.End()

	writer := document.NewPDFWriter(cfg.Document.FontSize, repo.String())
	asm := document.NewAssembler(writer, document.Options{
		LineNumbers: cfg.Document.LineNumbers,
		MaxFileSize: cfg.Limits.MaxFileSize.Bytes(),
	})

	var describer walker.CommitDescriber
	if cfg.Document.IncludeCommitInfo {
		d, err := fetch.OpenCommitDescriber(repoDir)
		if err != nil {
			log.Debug("commit info unavailable", zap.Error(err))
		} else {
			describer = d
		}
	}

	w := walker.New(walker.Budget{
		MaxFiles:           cfg.Limits.MaxFiles,
		MaxFileSize:        cfg.Limits.MaxFileSize.Bytes(),
		MaxOutputBytes:     cfg.Limits.MaxArtifactSize.Bytes(),
		ExcludedExtensions: cfg.Limits.ExcludedExtensions,
	}, asm, describer, log)

	out, err := asm.Assemble(ctx, w, repoDir, staging)
	counters := w.Counters()
	span.SetAttributes(
		attribute.Int("files.visited", counters.FilesVisited),
		attribute.Int("files.included", counters.Included),
		attribute.Int64("output.bytes", counters.OutputBytes),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return nil, counters, err
	}

	SkippedFilesTotal.WithLabelValues("size").Add(float64(len(out.Skipped.BySize)))
	SkippedFilesTotal.WithLabelValues("type").Add(float64(len(out.Skipped.ByType)))
	SkippedFilesTotal.WithLabelValues("unreadable").Add(float64(counters.Unreadable))
	return out, counters, nil
}

func (s *Service) commit(ctx context.Context, cfg *config.Config, staging, final string) (int64, error) {
	_, span := s.tracer.Start(ctx, "convert.commit", trace.WithAttributes(
		attribute.String("artifact", filepath.Base(final)),
	))
	defer span.End()

	size, err := document.CheckSize(staging, cfg.Limits.MaxArtifactSize.Bytes())
	if err == nil {
		err = document.Commit(staging, final)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("artifact.size", size))
	return size, nil
}

// sweep runs the operations sweep and then the artifacts sweep. Failures are
// logged and never fail the conversion.
func (s *Service) sweep(ctx context.Context, cfg *config.Config, opsDir, artifactsDir string, log *zap.Logger) {
	maxAge := cfg.Workspace.Retention.Duration()
	runs := []struct {
		sweeper *sweep.Sweeper
		dir     string
	}{
		{sweep.NewOperationSweeper(s.locker, log), opsDir},
		{sweep.NewArtifactSweeper(s.locker, log), artifactsDir},
	}
	for _, r := range runs {
		if _, err := r.sweeper.Sweep(ctx, r.dir, maxAge); err != nil {
			log.Warn("retention sweep failed", zap.String("kind", r.sweeper.Kind()), zap.Error(err))
		}
	}
}

// Sweep resolves the workspace and runs both retention sweeps once.
func (s *Service) Sweep(ctx context.Context) (map[string]sweep.Result, error) {
	cfg := s.store.Current()
	root, err := newResolver(cfg, s.logger).Resolve()
	if err != nil {
		return nil, err
	}
	opsDir, artifactsDir, err := ensureLayout(root)
	if err != nil {
		return nil, err
	}

	maxAge := cfg.Workspace.Retention.Duration()
	results := make(map[string]sweep.Result, 2)
	var errs []error
	for _, r := range []struct {
		sweeper *sweep.Sweeper
		dir     string
	}{
		{sweep.NewOperationSweeper(s.locker, s.logger), opsDir},
		{sweep.NewArtifactSweeper(s.locker, s.logger), artifactsDir},
	} {
		res, err := r.sweeper.Sweep(ctx, r.dir, maxAge)
		results[r.sweeper.Kind()] = res
		if err != nil {
			errs = append(errs, fmt.Errorf("%s sweep: %w", r.sweeper.Kind(), err))
		}
	}
	return results, errors.Join(errs...)
}

// ArtifactPath returns the path of the published artifact called name. It
// looks in the artifact directories this Service has published to, then under
// each workspace candidate, without probing writes or free space. Names that
// resolve outside an artifacts directory are reported as not found.
func (s *Service) ArtifactPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", fmt.Errorf("%w: %q", ErrArtifactNotFound, name)
	}

	for _, dir := range s.artifactDirs() {
		path, err := pathguard.Join(dir, name)
		if err != nil {
			continue
		}
		if info, err := os.Lstat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrArtifactNotFound, name)
}

func (s *Service) rememberArtifactDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.published) > 0 && s.published[0] == dir {
		return
	}
	dirs := []string{dir}
	for _, d := range s.published {
		if d != dir {
			dirs = append(dirs, d)
		}
	}
	s.published = dirs
}

// artifactDirs lists published directories followed by the candidate roots'
// artifact directories, without duplicates.
func (s *Service) artifactDirs() []string {
	s.mu.Lock()
	dirs := append([]string(nil), s.published...)
	s.mu.Unlock()

	seen := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		seen[d] = true
	}
	for _, root := range workspace.Dirs(workspace.DefaultCandidates(s.store.Current().Workspace.Dir)) {
		d := filepath.Join(root, ArtifactsDir)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// finish records the outcome of a conversion in the span, metrics, log and
// history.
func (s *Service) finish(span trace.Span, log *zap.Logger, id, rawURL string, start time.Time, res *Result, err error) {
	elapsed := s.now().Sub(start)
	rec := Record{
		ID:         id,
		Repository: rawURL,
		DurationMS: elapsed.Milliseconds(),
		FinishedAt: s.now(),
	}
	ConversionDuration.Observe(elapsed.Seconds())

	if err != nil {
		kind := Kind(err)
		rec.Status, rec.Kind, rec.Error = StatusFailed, kind, err.Error()
		ConversionsTotal.WithLabelValues(kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		span.SetAttributes(attribute.String("error.kind", kind))
		log.Warn("conversion failed", zap.String("kind", kind), zap.Duration("duration", elapsed), zap.Error(err))
		s.history.Add(rec)
		return
	}

	res.Duration = elapsed
	rec.Status = StatusSucceeded
	rec.Repository = res.Repository
	rec.Artifact = res.Artifact
	rec.SizeBytes = res.SizeBytes
	ConversionsTotal.WithLabelValues("success").Inc()
	ArtifactSizeBytes.Observe(float64(res.SizeBytes))
	span.SetStatus(codes.Ok, "")
	log.Info("conversion finished",
		zap.String("artifact", res.Artifact),
		zap.Int64("size_bytes", res.SizeBytes),
		zap.Int("pages", res.Pages),
		zap.Int("files_included", res.FilesIncluded),
		zap.Int("skipped_by_size", len(res.SkippedBySize)),
		zap.Int("skipped_by_type", len(res.SkippedByType)),
		zap.Duration("duration", elapsed))
	s.history.Add(rec)
}

func newResolver(cfg *config.Config, log *zap.Logger) *workspace.Resolver {
	return workspace.NewResolver(
		workspace.DefaultCandidates(cfg.Workspace.Dir),
		uint64(cfg.Workspace.MinFreeSpace),
		log,
	)
}

func ensureLayout(root string) (opsDir, artifactsDir string, err error) {
	opsDir = filepath.Join(root, OperationsDir)
	artifactsDir = filepath.Join(root, ArtifactsDir)
	for _, dir := range []string{opsDir, artifactsDir} {
		if err := workspace.EnsureDir(dir); err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInternal, err)
		}
	}
	return opsDir, artifactsDir, nil
}

func newOperationID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

func artifactName(repo fetch.Repository, id string) string {
	return fmt.Sprintf("%s-%s.pdf", repo.Name, id)
}
