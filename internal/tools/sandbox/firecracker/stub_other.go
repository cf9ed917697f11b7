//go:build !linux

// Package firecracker provides a Firecracker microVM-based sandbox.Runner.
// This stub file is used on non-Linux platforms, where Firecracker is not
// supported (it requires KVM).
package firecracker

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/researchagent/internal/tools/sandbox"
)

// ErrNotSupported is returned when firecracker operations are attempted on
// non-Linux platforms.
var ErrNotSupported = errors.New("firecracker is only supported on Linux")

// Config mirrors the Linux build's Config so callers can construct it
// unconditionally; New always fails here.
type Config struct {
	KernelImagePath string
	RootFSPath      string
	VCPUs           int64
	MemSizeMB       int64
	WorkDir         string
	BootTimeout     time.Duration
}

// DefaultConfig mirrors the Linux build's defaults.
func DefaultConfig() Config {
	return Config{VCPUs: 1, MemSizeMB: 512, BootTimeout: 15 * time.Second}
}

// Runner is an unusable stand-in on non-Linux platforms.
type Runner struct{}

// New always returns ErrNotSupported outside Linux.
func New(ctx context.Context, cfg Config) (*Runner, error) {
	return nil, ErrNotSupported
}

func (r *Runner) RunCode(ctx context.Context, code string) (*sandbox.RunResult, error) {
	return nil, ErrNotSupported
}

func (r *Runner) Close(ctx context.Context) error { return nil }

var _ sandbox.Runner = (*Runner)(nil)
