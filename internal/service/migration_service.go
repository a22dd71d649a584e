package service

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GSI-HPC/lfs-utils/internal/client"
	lfserrors "github.com/GSI-HPC/lfs-utils/internal/errors"
	"github.com/GSI-HPC/lfs-utils/internal/metrics"
	"github.com/GSI-HPC/lfs-utils/internal/model"
	"github.com/GSI-HPC/lfs-utils/internal/parser"
)

// MigrationClient is the subset of the tool client the migration
// service needs.
type MigrationClient interface {
	GetStripe(ctx context.Context, path string) (string, error)
	SetStripe(ctx context.Context, path string, idx int) error
	Migrate(ctx context.Context, path string, opts client.MigrateOptions) error
}

// MigrateRequest describes one migration attempt.
type MigrateRequest struct {
	// Path of the file to migrate
	Path string
	// SourceIndex constrains the attempt to files currently on that
	// OST; model.IndexUnset disables the constraint
	SourceIndex int
	// TargetIndex is the requested destination OST; model.IndexUnset
	// lets the filesystem choose
	TargetIndex int
	// SkipMultiStriped leaves files spanning multiple OSTs untouched
	SkipMultiStriped bool
	// Block switches the migration to blocking mode
	Block bool
	// DirectIO enables direct I/O for the data copy
	DirectIO bool
}

// NewMigrateRequest creates a migration request for the given file with
// the default options: no index constraints, multi-striped files
// skipped, non-blocking, buffered I/O.
func NewMigrateRequest(path string) MigrateRequest {
	return MigrateRequest{
		Path:             path,
		SourceIndex:      model.IndexUnset,
		TargetIndex:      model.IndexUnset,
		SkipMultiStriped: true,
	}
}

// MigrationService drives the per-file migration workflow
type MigrationService struct {
	client  MigrationClient
	parser  *parser.Parser
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewMigrationService creates a new migration service. The metrics
// argument may be nil to disable instrumentation.
func NewMigrationService(c MigrationClient, p *parser.Parser, logger *zap.Logger, m *metrics.Metrics) *MigrationService {
	return &MigrationService{
		client:  c,
		parser:  p,
		logger:  logger,
		metrics: m,
	}
}

// MigrateFile executes one migration attempt and classifies its
// outcome. The returned error is non-nil only for invalid arguments;
// every operational failure past the argument check is folded into a
// FAILED result.
func (s *MigrationService) MigrateFile(ctx context.Context, req MigrateRequest) (*model.MigrateResult, error) {
	if err := validateMigrateRequest(req); err != nil {
		return nil, err
	}

	attemptID := uuid.New().String()

	s.logger.Debug("Starting migration attempt",
		zap.String("attempt_id", attemptID),
		zap.String("file", req.Path),
		zap.Int("source_index", req.SourceIndex),
		zap.Int("target_index", req.TargetIndex))

	start := time.Now()

	pre, err := s.stripeInfo(ctx, req.Path)
	if err != nil {
		return s.finish(attemptID, failedResult(req.Path, time.Since(start), model.IndexUnset, model.IndexUnset, err))
	}

	switch {
	case req.SkipMultiStriped && pre.Count > 1:
		result, err := model.NewSkippedResult(req.Path)
		if err != nil {
			return nil, err
		}
		return s.finish(attemptID, result)

	case req.SourceIndex != model.IndexUnset && pre.Index != req.SourceIndex:
		result, err := model.NewIgnoredResult(req.Path)
		if err != nil {
			return nil, err
		}
		return s.finish(attemptID, result)

	case req.TargetIndex != model.IndexUnset && pre.Index == req.TargetIndex:
		result, err := model.NewIgnoredResult(req.Path)
		if err != nil {
			return nil, err
		}
		return s.finish(attemptID, result)
	}

	opts := client.MigrateOptions{
		TargetIndex: req.TargetIndex,
		StripeCount: pre.Count,
		Block:       req.Block,
		DirectIO:    req.DirectIO,
	}

	// Retain the requested target as last known value in case the
	// post-migration stripe query fails
	postIdx := req.TargetIndex

	if err := s.client.Migrate(ctx, req.Path, opts); err != nil {
		return s.finish(attemptID, failedResult(req.Path, time.Since(start), pre.Index, postIdx, err))
	}

	post, err := s.stripeInfo(ctx, req.Path)
	if err != nil {
		return s.finish(attemptID, failedResult(req.Path, time.Since(start), pre.Index, postIdx, err))
	}

	elapsed := time.Since(start)

	if req.TargetIndex != model.IndexUnset && post.Index != req.TargetIndex {
		result, err := model.NewDisplacedResult(req.Path, elapsed, pre.Index, post.Index)
		if err != nil {
			return nil, err
		}
		return s.finish(attemptID, result)
	}

	result, err := model.NewSuccessResult(req.Path, elapsed, pre.Index, post.Index)
	if err != nil {
		return nil, err
	}
	return s.finish(attemptID, result)
}

// IsOSTWritable probes whether the given OST accepts new files by
// placing an empty probe file on it and verifying the resulting stripe
// placement. The probe file is removed afterwards. Operational failures
// are logged and reported as not writable.
func (s *MigrationService) IsOSTWritable(ctx context.Context, idx int, probePath string) (bool, error) {
	if probePath == "" {
		return false, lfserrors.Validation("probe file path is not set")
	}

	if !model.ValidIndex(idx) {
		return false, lfserrors.Validation(
			"OST index %d invalid, must be in range between %d and %d",
			idx, model.MinOSTIndex, model.MaxOSTIndex)
	}

	if _, err := os.Stat(probePath); err == nil {
		return false, lfserrors.Validation("probe file already exists: %s", probePath)
	}

	defer func() {
		if err := os.Remove(probePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove probe file", zap.String("file", probePath), zap.Error(err))
		}
	}()

	if err := s.client.SetStripe(ctx, probePath, idx); err != nil {
		s.logger.Warn("OST writable probe failed on setstripe", zap.Int("index", idx), zap.Error(err))
		return false, nil
	}

	info, err := s.stripeInfo(ctx, probePath)
	if err != nil {
		s.logger.Warn("OST writable probe failed on stripe query", zap.Int("index", idx), zap.Error(err))
		return false, nil
	}

	return info.Index == idx, nil
}

// StripeInfo queries the current stripe placement of a file.
func (s *MigrationService) StripeInfo(ctx context.Context, path string) (*model.StripeInfo, error) {
	if path == "" {
		return nil, lfserrors.Validation("filename is not set")
	}
	return s.stripeInfo(ctx, path)
}

func (s *MigrationService) stripeInfo(ctx context.Context, path string) (*model.StripeInfo, error) {
	output, err := s.client.GetStripe(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.parser.StripeInfo(path, output)
}

func (s *MigrationService) finish(attemptID string, result *model.MigrateResult) (*model.MigrateResult, error) {
	s.logger.Info("Migration attempt finished",
		zap.String("attempt_id", attemptID),
		zap.String("result", result.String()))

	if s.metrics != nil {
		s.metrics.MigrationsTotal.WithLabelValues(string(result.State())).Inc()
		s.metrics.MigrationDuration.Observe(result.Elapsed().Seconds())
	}

	return result, nil
}

func failedResult(path string, elapsed time.Duration, sourceIdx, targetIdx int, cause error) *model.MigrateResult {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	result, err := model.NewFailedResult(path, elapsed, sourceIdx, targetIdx, msg)
	if err != nil {
		// Unreachable: path and message are guaranteed non-empty here
		panic(err)
	}

	return result
}

func validateMigrateRequest(req MigrateRequest) error {
	if req.Path == "" {
		return lfserrors.Validation("filename is not set")
	}

	if req.SourceIndex != model.IndexUnset && !model.ValidIndex(req.SourceIndex) {
		return lfserrors.Validation(
			"source OST index %d invalid, must be in range between %d and %d",
			req.SourceIndex, model.MinOSTIndex, model.MaxOSTIndex)
	}

	if req.TargetIndex != model.IndexUnset && !model.ValidIndex(req.TargetIndex) {
		return lfserrors.Validation(
			"target OST index %d invalid, must be in range between %d and %d",
			req.TargetIndex, model.MinOSTIndex, model.MaxOSTIndex)
	}

	return nil
}
