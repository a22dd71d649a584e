package model

import (
	"fmt"
	"strconv"
	"time"

	lfserrors "github.com/GSI-HPC/lfs-utils/internal/errors"
)

// MigrateState represents the terminal outcome of one migration attempt
type MigrateState string

const (
	// MigrateStateIgnored indicates the file was not on the expected
	// source index or already on the target index
	MigrateStateIgnored MigrateState = "IGNORED"
	// MigrateStateSkipped indicates a multi-striped file was not touched
	MigrateStateSkipped MigrateState = "SKIPPED"
	// MigrateStateSuccess indicates the migration completed as requested
	MigrateStateSuccess MigrateState = "SUCCESS"
	// MigrateStateFailed indicates the migration attempt failed
	MigrateStateFailed MigrateState = "FAILED"
	// MigrateStateDisplaced indicates the file landed on a different
	// target than requested
	MigrateStateDisplaced MigrateState = "DISPLACED"
)

// MigrateResult is the immutable outcome record of one migration attempt.
// It is only constructed through the per-state constructors, which reject
// field combinations that are invalid for the state.
type MigrateResult struct {
	state     MigrateState
	filename  string
	elapsed   time.Duration
	sourceIdx int
	targetIdx int
	errMsg    string
}

// State returns the outcome state.
func (r *MigrateResult) State() MigrateState { return r.state }

// Filename returns the file the attempt was made for.
func (r *MigrateResult) Filename() string { return r.filename }

// Elapsed returns the time the attempt took. It is zero for the
// IGNORED and SKIPPED short-circuit outcomes.
func (r *MigrateResult) Elapsed() time.Duration { return r.elapsed }

// SourceIndex returns the pre-migration OST index, or IndexUnset.
func (r *MigrateResult) SourceIndex() int { return r.sourceIdx }

// TargetIndex returns the post-migration OST index, or IndexUnset.
func (r *MigrateResult) TargetIndex() int { return r.targetIdx }

// ErrorMessage returns the captured error text for FAILED results
// and an empty string otherwise.
func (r *MigrateResult) ErrorMessage() string { return r.errMsg }

// String renders the pipe-separated result record:
//   - IGNORED|filename and SKIPPED|filename
//   - SUCCESS|filename|elapsed|source|target
//   - DISPLACED|filename|elapsed|source|target
//   - FAILED|filename|elapsed|source|target|errmsg
func (r *MigrateResult) String() string {
	switch r.state {
	case MigrateStateIgnored, MigrateStateSkipped:
		return fmt.Sprintf("%s|%s", r.state, r.filename)
	case MigrateStateFailed:
		return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
			r.state, r.filename, r.elapsed, formatIndex(r.sourceIdx), formatIndex(r.targetIdx), r.errMsg)
	default:
		return fmt.Sprintf("%s|%s|%s|%s|%s",
			r.state, r.filename, r.elapsed, formatIndex(r.sourceIdx), formatIndex(r.targetIdx))
	}
}

func formatIndex(idx int) string {
	if idx == IndexUnset {
		return ""
	}
	return strconv.Itoa(idx)
}

func checkResultCommon(filename string, elapsed time.Duration) error {
	if filename == "" {
		return lfserrors.Validation("migrate result requires a filename")
	}
	if elapsed < 0 {
		return lfserrors.Validation("migrate result requires a non-negative elapsed duration")
	}
	return nil
}

// NewIgnoredResult creates an IGNORED result carrying only the filename.
func NewIgnoredResult(filename string) (*MigrateResult, error) {
	if filename == "" {
		return nil, lfserrors.Validation("migrate result requires a filename")
	}
	return &MigrateResult{
		state:     MigrateStateIgnored,
		filename:  filename,
		sourceIdx: IndexUnset,
		targetIdx: IndexUnset,
	}, nil
}

// NewSkippedResult creates a SKIPPED result carrying only the filename.
func NewSkippedResult(filename string) (*MigrateResult, error) {
	if filename == "" {
		return nil, lfserrors.Validation("migrate result requires a filename")
	}
	return &MigrateResult{
		state:     MigrateStateSkipped,
		filename:  filename,
		sourceIdx: IndexUnset,
		targetIdx: IndexUnset,
	}, nil
}

// NewSuccessResult creates a SUCCESS result.
func NewSuccessResult(filename string, elapsed time.Duration, sourceIdx, targetIdx int) (*MigrateResult, error) {
	if err := checkResultCommon(filename, elapsed); err != nil {
		return nil, err
	}
	return &MigrateResult{
		state:     MigrateStateSuccess,
		filename:  filename,
		elapsed:   elapsed,
		sourceIdx: sourceIdx,
		targetIdx: targetIdx,
	}, nil
}

// NewDisplacedResult creates a DISPLACED result reporting that the file
// landed on a different target than requested.
func NewDisplacedResult(filename string, elapsed time.Duration, sourceIdx, targetIdx int) (*MigrateResult, error) {
	if err := checkResultCommon(filename, elapsed); err != nil {
		return nil, err
	}
	return &MigrateResult{
		state:     MigrateStateDisplaced,
		filename:  filename,
		elapsed:   elapsed,
		sourceIdx: sourceIdx,
		targetIdx: targetIdx,
	}, nil
}

// NewFailedResult creates a FAILED result. The error message must be
// non-empty.
func NewFailedResult(filename string, elapsed time.Duration, sourceIdx, targetIdx int, errMsg string) (*MigrateResult, error) {
	if err := checkResultCommon(filename, elapsed); err != nil {
		return nil, err
	}
	if errMsg == "" {
		return nil, lfserrors.Validation("state %s requires an error message", MigrateStateFailed)
	}
	return &MigrateResult{
		state:     MigrateStateFailed,
		filename:  filename,
		elapsed:   elapsed,
		sourceIdx: sourceIdx,
		targetIdx: targetIdx,
		errMsg:    errMsg,
	}, nil
}
