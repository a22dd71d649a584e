package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GSI-HPC/lfs-utils/internal/client"
	lfserrors "github.com/GSI-HPC/lfs-utils/internal/errors"
	"github.com/GSI-HPC/lfs-utils/internal/model"
	"github.com/GSI-HPC/lfs-utils/internal/parser"
)

// MockMigrationClient is a mock implementation of MigrationClient
type MockMigrationClient struct {
	mock.Mock
}

func (m *MockMigrationClient) GetStripe(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

func (m *MockMigrationClient) SetStripe(ctx context.Context, path string, idx int) error {
	args := m.Called(ctx, path, idx)
	return args.Error(0)
}

func (m *MockMigrationClient) Migrate(ctx context.Context, path string, opts client.MigrateOptions) error {
	args := m.Called(ctx, path, opts)
	return args.Error(0)
}

func stripeOutput(count, idx int) string {
	return fmt.Sprintf("lmm_stripe_count:  %d\nlmm_stripe_offset: %d\n", count, idx)
}

func newMigrationService(c MigrationClient) *MigrationService {
	logger := zap.NewNop()
	return NewMigrationService(c, parser.NewParser(logger), logger, nil)
}

func TestMigrateFileSkipsMultiStriped(t *testing.T) {
	mockClient := new(MockMigrationClient)
	mockClient.On("GetStripe", mock.Anything, "test.tmp").Return(stripeOutput(2, 7), nil)

	s := newMigrationService(mockClient)

	result, err := s.MigrateFile(context.Background(), NewMigrateRequest("test.tmp"))
	require.NoError(t, err)

	assert.Equal(t, model.MigrateStateSkipped, result.State())
	mockClient.AssertNotCalled(t, "Migrate", mock.Anything, mock.Anything, mock.Anything)
}

func TestMigrateFileIgnoresSourceMismatch(t *testing.T) {
	mockClient := new(MockMigrationClient)
	mockClient.On("GetStripe", mock.Anything, "test.tmp").Return(stripeOutput(1, 7), nil)

	s := newMigrationService(mockClient)

	req := NewMigrateRequest("test.tmp")
	req.SourceIndex = 5

	result, err := s.MigrateFile(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.MigrateStateIgnored, result.State())
	mockClient.AssertNotCalled(t, "Migrate", mock.Anything, mock.Anything, mock.Anything)
}

func TestMigrateFileIgnoresReachedTarget(t *testing.T) {
	mockClient := new(MockMigrationClient)
	mockClient.On("GetStripe", mock.Anything, "test.tmp").Return(stripeOutput(1, 3), nil)

	s := newMigrationService(mockClient)

	req := NewMigrateRequest("test.tmp")
	req.TargetIndex = 3

	result, err := s.MigrateFile(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.MigrateStateIgnored, result.State())
	mockClient.AssertNotCalled(t, "Migrate", mock.Anything, mock.Anything, mock.Anything)
}

func TestMigrateFileSuccess(t *testing.T) {
	mockClient := new(MockMigrationClient)
	mockClient.On("GetStripe", mock.Anything, "test.tmp").Return(stripeOutput(1, 7), nil).Once()
	mockClient.On("Migrate", mock.Anything, "test.tmp", client.MigrateOptions{
		TargetIndex: 3,
		StripeCount: 1,
	}).Return(nil).Once()
	mockClient.On("GetStripe", mock.Anything, "test.tmp").Return(stripeOutput(1, 3), nil).Once()

	s := newMigrationService(mockClient)

	req := NewMigrateRequest("test.tmp")
	req.TargetIndex = 3

	result, err := s.MigrateFile(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.MigrateStateSuccess, result.State())
	assert.Equal(t, 7, result.SourceIndex())
	assert.Equal(t, 3, result.TargetIndex())
	mockClient.AssertExpectations(t)
}

func TestMigrateFileDisplaced(t *testing.T) {
	mockClient := new(MockMigrationClient)
	mockClient.On("GetStripe", mock.Anything, "test.tmp").Return(stripeOutput(1, 7), nil).Once()
	mockClient.On("Migrate", mock.Anything, "test.tmp", mock.Anything).Return(nil).Once()
	mockClient.On("GetStripe", mock.Anything, "test.tmp").Return(stripeOutput(1, 4), nil).Once()

	s := newMigrationService(mockClient)

	req := NewMigrateRequest("test.tmp")
	req.TargetIndex = 3

	result, err := s.MigrateFile(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.MigrateStateDisplaced, result.State())
	assert.Equal(t, 7, result.SourceIndex())
	assert.Equal(t, 4, result.TargetIndex())
}

func TestMigrateFileFailedInvocation(t *testing.T) {
	mockClient := new(MockMigrationClient)
	mockClient.On("GetStripe", mock.Anything, "test.tmp").Return(stripeOutput(1, 7), nil).Once()
	mockClient.On("Migrate", mock.Anything, "test.tmp", mock.Anything).
		Return(lfserrors.ExternalTool(errors.New("exit status 1"), "no space left on target")).Once()

	s := newMigrationService(mockClient)

	req := NewMigrateRequest("test.tmp")
	req.TargetIndex = 3

	result, err := s.MigrateFile(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.MigrateStateFailed, result.State())
	assert.Equal(t, 7, result.SourceIndex())
	assert.Equal(t, 3, result.TargetIndex())
	assert.Contains(t, result.ErrorMessage(), "no space left on target")
}

func TestMigrateFileFailedStripeQuery(t *testing.T) {
	mockClient := new(MockMigrationClient)
	mockClient.On("GetStripe", mock.Anything, "test.tmp").
		Return("", lfserrors.ExternalTool(errors.New("exit status 2"), "no such file"))

	s := newMigrationService(mockClient)

	result, err := s.MigrateFile(context.Background(), NewMigrateRequest("test.tmp"))
	require.NoError(t, err)

	assert.Equal(t, model.MigrateStateFailed, result.State())
	assert.Equal(t, model.IndexUnset, result.SourceIndex())
	assert.Contains(t, result.ErrorMessage(), "no such file")
}

func TestMigrateFileValidation(t *testing.T) {
	s := newMigrationService(new(MockMigrationClient))

	_, err := s.MigrateFile(context.Background(), NewMigrateRequest(""))
	require.Error(t, err)
	assert.True(t, lfserrors.IsValidation(err))

	req := NewMigrateRequest("test.tmp")
	req.TargetIndex = model.MaxOSTIndex + 1

	_, err = s.MigrateFile(context.Background(), req)
	require.Error(t, err)
	assert.True(t, lfserrors.IsValidation(err))

	req = NewMigrateRequest("test.tmp")
	req.SourceIndex = -5

	_, err = s.MigrateFile(context.Background(), req)
	require.Error(t, err)
	assert.True(t, lfserrors.IsValidation(err))
}

func TestIsOSTWritable(t *testing.T) {
	probePath := func(t *testing.T) string {
		return filepath.Join(t.TempDir(), "ost_writable_probe.tmp")
	}

	createProbe := func(path string) func(mock.Arguments) {
		return func(mock.Arguments) {
			require.NoError(t, os.WriteFile(path, nil, 0o644))
		}
	}

	t.Run("matching index reports writable and removes probe", func(t *testing.T) {
		path := probePath(t)

		mockClient := new(MockMigrationClient)
		mockClient.On("SetStripe", mock.Anything, path, 7).Return(nil).Run(createProbe(path)).Once()
		mockClient.On("GetStripe", mock.Anything, path).Return(stripeOutput(1, 7), nil).Once()

		s := newMigrationService(mockClient)

		writable, err := s.IsOSTWritable(context.Background(), 7, path)
		require.NoError(t, err)
		assert.True(t, writable)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
		mockClient.AssertExpectations(t)
	})

	t.Run("mismatching index reports not writable", func(t *testing.T) {
		path := probePath(t)

		mockClient := new(MockMigrationClient)
		mockClient.On("SetStripe", mock.Anything, path, 7).Return(nil).Run(createProbe(path)).Once()
		mockClient.On("GetStripe", mock.Anything, path).Return(stripeOutput(1, 9), nil).Once()

		s := newMigrationService(mockClient)

		writable, err := s.IsOSTWritable(context.Background(), 7, path)
		require.NoError(t, err)
		assert.False(t, writable)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("setstripe failure reports not writable without error", func(t *testing.T) {
		path := probePath(t)

		mockClient := new(MockMigrationClient)
		mockClient.On("SetStripe", mock.Anything, path, 7).
			Return(lfserrors.ExternalTool(errors.New("exit status 1"), "setstripe failed")).Once()

		s := newMigrationService(mockClient)

		writable, err := s.IsOSTWritable(context.Background(), 7, path)
		require.NoError(t, err)
		assert.False(t, writable)
		mockClient.AssertNotCalled(t, "GetStripe", mock.Anything, mock.Anything)
	})

	t.Run("stripe query failure reports not writable without error", func(t *testing.T) {
		path := probePath(t)

		mockClient := new(MockMigrationClient)
		mockClient.On("SetStripe", mock.Anything, path, 7).Return(nil).Run(createProbe(path)).Once()
		mockClient.On("GetStripe", mock.Anything, path).
			Return("", lfserrors.ExternalTool(errors.New("exit status 2"), "getstripe failed")).Once()

		s := newMigrationService(mockClient)

		writable, err := s.IsOSTWritable(context.Background(), 7, path)
		require.NoError(t, err)
		assert.False(t, writable)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("pre-existing probe file is rejected", func(t *testing.T) {
		path := probePath(t)
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		mockClient := new(MockMigrationClient)

		s := newMigrationService(mockClient)

		_, err := s.IsOSTWritable(context.Background(), 7, path)
		require.Error(t, err)
		assert.True(t, lfserrors.IsValidation(err))
		mockClient.AssertNotCalled(t, "SetStripe", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid arguments are rejected", func(t *testing.T) {
		s := newMigrationService(new(MockMigrationClient))

		_, err := s.IsOSTWritable(context.Background(), 7, "")
		require.Error(t, err)
		assert.True(t, lfserrors.IsValidation(err))

		_, err = s.IsOSTWritable(context.Background(), model.MaxOSTIndex+1, probePath(t))
		require.Error(t, err)
		assert.True(t, lfserrors.IsValidation(err))
	})
}

func TestMigrateFileInheritsStripeCount(t *testing.T) {
	mockClient := new(MockMigrationClient)
	mockClient.On("GetStripe", mock.Anything, "test.tmp").Return(stripeOutput(3, 7), nil).Once()
	mockClient.On("Migrate", mock.Anything, "test.tmp", client.MigrateOptions{
		TargetIndex: model.IndexUnset,
		StripeCount: 3,
		Block:       true,
		DirectIO:    true,
	}).Return(nil).Once()
	mockClient.On("GetStripe", mock.Anything, "test.tmp").Return(stripeOutput(3, 9), nil).Once()

	s := newMigrationService(mockClient)

	req := NewMigrateRequest("test.tmp")
	req.SkipMultiStriped = false
	req.Block = true
	req.DirectIO = true

	result, err := s.MigrateFile(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.MigrateStateSuccess, result.State())
	mockClient.AssertExpectations(t)
}
