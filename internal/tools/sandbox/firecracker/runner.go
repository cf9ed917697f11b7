//go:build linux

// Package firecracker implements sandbox.Runner atop a single-use
// Firecracker microVM per session, grounded on the teacher's
// internal/tools/sandbox/firecracker/vm.go VM lifecycle (boot config,
// vsock guest-agent transport) but trimmed to the one capability
// execute_python needs: run one Python source blob and collect stdout plus
// any files the guest agent reports as written under its output directory.
// The snapshot/pool machinery the teacher builds for warm-start latency is
// out of scope here — SPEC_FULL treats the sandbox vendor as an external
// collaborator (spec §1) and this package is the seam where a concrete
// backend is wired in, not a general-purpose VM orchestrator.
package firecracker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	fc "github.com/firecracker-microvm/firecracker-go-sdk"
	fcmodels "github.com/firecracker-microvm/firecracker-go-sdk/client/models"
	"github.com/google/uuid"

	"github.com/haasonsaas/researchagent/internal/tools/sandbox"
)

// Config describes the kernel/rootfs images and resource shape for one
// session's microVM, grounded on the teacher's BackendConfig/VMConfig.
type Config struct {
	KernelImagePath string
	RootFSPath      string
	VCPUs           int64
	MemSizeMB       int64
	WorkDir         string // scratch directory for sockets, logs, overlay
	BootTimeout     time.Duration
}

// DefaultConfig mirrors the teacher's DefaultVMConfig defaults scaled down
// to a single-purpose Python execution VM.
func DefaultConfig() Config {
	return Config{
		VCPUs:       1,
		MemSizeMB:   512,
		WorkDir:     os.TempDir(),
		BootTimeout: 15 * time.Second,
	}
}

// Runner is one microVM session, created lazily by the sandbox package's
// RunnerFactory and torn down at end of turn.
type Runner struct {
	cfg     Config
	vmID    string
	machine *fc.Machine
	cmd     *exec.Cmd
	vsock   *vsockClient
	workDir string
}

// New boots a fresh microVM per Config and returns a Runner bound to it.
func New(ctx context.Context, cfg Config) (*Runner, error) {
	if cfg.KernelImagePath == "" || cfg.RootFSPath == "" {
		return nil, fmt.Errorf("firecracker: kernel and rootfs images are required")
	}
	vmID := uuid.NewString()
	workDir := filepath.Join(cfg.WorkDir, "fc-"+vmID)
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return nil, fmt.Errorf("firecracker: create work dir: %w", err)
	}

	socketPath := filepath.Join(workDir, "api.sock")
	vsockPath := filepath.Join(workDir, "vsock.sock")

	bin, err := exec.LookPath("firecracker")
	if err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("firecracker: binary not found: %w", err)
	}

	fcConfig := fc.Config{
		SocketPath:      socketPath,
		LogPath:         filepath.Join(workDir, "fc.log"),
		KernelImagePath: cfg.KernelImagePath,
		KernelArgs:      "console=ttyS0 reboot=k panic=1 pci=off",
		Drives: []fcmodels.Drive{{
			DriveID:      fc.String("rootfs"),
			PathOnHost:   fc.String(cfg.RootFSPath),
			IsRootDevice: fc.Bool(true),
			IsReadOnly:   fc.Bool(false),
		}},
		MachineCfg: fcmodels.MachineConfiguration{
			VcpuCount:  fc.Int64(cfg.VCPUs),
			MemSizeMib: fc.Int64(cfg.MemSizeMB),
			Smt:        fc.Bool(false),
		},
		VsockDevices: []fc.VsockDevice{{Path: vsockPath, CID: 3}},
	}

	cmd := fc.VMCommandBuilder{}.WithBin(bin).WithSocketPath(socketPath).Build(ctx)
	machine, err := fc.NewMachine(ctx, fcConfig, fc.WithProcessRunner(cmd))
	if err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("firecracker: create machine: %w", err)
	}

	bootCtx, cancel := context.WithTimeout(ctx, cfg.BootTimeout)
	defer cancel()
	if err := machine.Start(bootCtx); err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("firecracker: start machine: %w", err)
	}

	vc, err := newVsockClient(vsockPath)
	if err != nil {
		machine.StopVMM()
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("firecracker: vsock dial: %w", err)
	}

	return &Runner{cfg: cfg, vmID: vmID, machine: machine, cmd: cmd, vsock: vc, workDir: workDir}, nil
}

// RunCode implements sandbox.Runner by shipping code to the guest agent
// over vsock and collecting its stdout/artifact manifest.
func (r *Runner) RunCode(ctx context.Context, code string) (*sandbox.RunResult, error) {
	resp, err := r.vsock.execute(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("firecracker: guest execute: %w", err)
	}
	result := &sandbox.RunResult{Success: resp.ExitCode == 0, Output: resp.Stdout}
	if resp.ExitCode != 0 {
		result.Error = resp.Stderr
	}
	for _, f := range resp.Files {
		result.Artifacts = append(result.Artifacts, sandbox.RawArtifact{
			Kind: classify(f.Name),
			Ext:  extOf(f.Name),
			Data: f.Data,
		})
	}
	return result, nil
}

// Close stops the microVM and removes its scratch directory.
func (r *Runner) Close(ctx context.Context) error {
	if r.vsock != nil {
		r.vsock.close()
	}
	if r.machine != nil {
		_ = r.machine.StopVMM()
	}
	return os.RemoveAll(r.workDir)
}

func classify(name string) sandbox.ArtifactKind {
	switch extOf(name) {
	case "png", "jpeg", "jpg", "svg":
		return sandbox.KindImage
	case "html", "md", "pdf":
		return sandbox.KindReport
	default:
		return sandbox.KindData
	}
}

func extOf(name string) string {
	ext := filepath.Ext(name)
	if len(ext) > 1 {
		return ext[1:]
	}
	return "bin"
}

var _ sandbox.Runner = (*Runner)(nil)
