// Package client wraps the invocation of the Lustre administration
// binaries lfs and lctl.
package client

import (
	"context"
	"strconv"
	"strings"

	lfserrors "github.com/GSI-HPC/lfs-utils/internal/errors"
	"github.com/GSI-HPC/lfs-utils/internal/index"
)

// MigrateOptions control one `lfs migrate` invocation.
type MigrateOptions struct {
	// TargetIndex is the requested OST index, or model.IndexUnset
	TargetIndex int
	// StripeCount is passed through when greater than zero
	StripeCount int
	// Block switches from --non-block to --block mode
	Block bool
	// DirectIO disables the default --non-direct I/O mode
	DirectIO bool
}

// LustreClient invokes the lfs and lctl binaries through a command
// runner and returns their raw output.
type LustreClient struct {
	lfsBin  string
	lctlBin string
	runner  CommandRunner
}

// NewLustreClient creates a client for the given binary paths.
func NewLustreClient(lfsBin, lctlBin string, runner CommandRunner) *LustreClient {
	return &LustreClient{
		lfsBin:  lfsBin,
		lctlBin: lctlBin,
		runner:  runner,
	}
}

// CheckComponents runs `lfs check osts` and returns the raw output.
func (c *LustreClient) CheckComponents(ctx context.Context) (string, error) {
	return c.runner.Run(ctx, c.lfsBin, "check", "osts")
}

// GetStripe runs `lfs getstripe -c -i -y` for the given file and
// returns the raw YAML document.
func (c *LustreClient) GetStripe(ctx context.Context, path string) (string, error) {
	return c.runner.Run(ctx, c.lfsBin, "getstripe", "-c", "-i", "-y", path)
}

// SetStripe runs `lfs setstripe -i` placing the file on the given OST.
func (c *LustreClient) SetStripe(ctx context.Context, path string, idx int) error {
	_, err := c.runner.Run(ctx, c.lfsBin, "setstripe", "-i", strconv.Itoa(idx), path)
	return err
}

// Migrate runs `lfs migrate` for the given file.
func (c *LustreClient) Migrate(ctx context.Context, path string, opts MigrateOptions) error {
	args := []string{"migrate"}

	if !opts.DirectIO {
		args = append(args, "--non-direct")
	}

	if opts.Block {
		args = append(args, "--block")
	} else {
		args = append(args, "--non-block")
	}

	if opts.TargetIndex >= 0 {
		args = append(args, "-i", strconv.Itoa(opts.TargetIndex))
	}

	if opts.StripeCount > 0 {
		args = append(args, "-c", strconv.Itoa(opts.StripeCount))
	}

	args = append(args, path)

	_, err := c.runner.Run(ctx, c.lfsBin, args...)
	return err
}

// DiskFree runs `lfs df` for the given filesystem path and returns the
// raw output.
func (c *LustreClient) DiskFree(ctx context.Context, fsPath string) (string, error) {
	return c.runner.Run(ctx, c.lfsBin, "df", fsPath)
}

// GetConnUUID runs `lctl get_param` for the connection identifier of a
// single OST of the filesystem.
func (c *LustreClient) GetConnUUID(ctx context.Context, fsName string, idx int) (string, error) {
	hexIdx, err := index.ToHex(idx)
	if err != nil {
		return "", err
	}

	param := "osc." + fsName + "-OST" + hexIdx + "-osc-*.ost_conn_uuid"

	return c.runner.Run(ctx, c.lctlBin, "get_param", param)
}

// GetConnUUIDMap runs `lctl get_param` for the connection identifiers
// of all OSTs of the filesystem.
func (c *LustreClient) GetConnUUIDMap(ctx context.Context, fsName string) (string, error) {
	param := "osc." + fsName + "-OST*-osc-*.ost_conn_uuid"

	return c.runner.Run(ctx, c.lctlBin, "get_param", param)
}

// GetDirStripeIndex runs `lfs getdirstripe -i` and returns the MDT
// index of the given directory, or model.IndexUnset for empty output.
func (c *LustreClient) GetDirStripeIndex(ctx context.Context, path string) (int, error) {
	output, err := c.runner.Run(ctx, c.lfsBin, "getdirstripe", "-i", path)
	if err != nil {
		return -1, err
	}

	output = strings.TrimSpace(output)
	if output == "" {
		return -1, nil
	}

	idx, err := strconv.Atoi(output)
	if err != nil {
		return -1, lfserrors.Parse("invalid MDT index %q for path %s", output, path)
	}

	return idx, nil
}
