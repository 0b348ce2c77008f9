package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"office2pdf/internal/process"
	u "office2pdf/internal/utils"
)

// Direct runs soffice itself with explicit input and output directories.
type Direct struct {
	binary  string
	dir     string
	tempDir string
	runner  process.Runner
}

// NewDirect builds the direct-invocation strategy. Without an explicit
// SofficePath the binary is resolved through PATH at run time.
func NewDirect(opts Options) *Direct {
	binary := opts.SofficePath
	if binary == "" {
		binary = "soffice"
	}
	runner := opts.Runner
	if runner == nil {
		runner = &process.ExecRunner{}
	}
	return &Direct{
		binary:  binary,
		dir:     execDir(opts.SofficePath),
		tempDir: opts.TempDir,
		runner:  runner,
	}
}

func (d *Direct) Name() string { return StrategyDirect }

func (d *Direct) Available() bool {
	if strings.ContainsAny(d.binary, `/\`) {
		st, err := os.Stat(d.binary)
		return err == nil && !st.IsDir()
	}
	_, err := exec.LookPath(d.binary)
	return err == nil
}

// Convert writes document into the in/ half of a fresh lo-out-* directory
// under fileName and returns <base>.<format> from its out/ half, so an
// unconverted .pdf upload is never read back as the result.
func (d *Direct) Convert(ctx context.Context, document []byte, format, fileName string) ([]byte, error) {
	scratch, err := os.MkdirTemp(d.tempDir, "lo-out-")
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			u.Warn("Failed to remove converter output dir", "dir", scratch, "error", err)
		}
	}()

	inDir, outDir := filepath.Join(scratch, "in"), filepath.Join(scratch, "out")
	for _, dir := range []string{inDir, outDir} {
		if err := os.Mkdir(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	inPath := filepath.Join(inDir, fileName)
	if err := os.WriteFile(inPath, document, 0o600); err != nil {
		return nil, fmt.Errorf("write input file: %w", err)
	}

	res, err := d.runner.Run(ctx, process.Command{
		Name: d.binary,
		Args: []string{"--headless", "--convert-to", format, "--outdir", outDir, inPath},
		Dir:  d.dir,
	})
	if res.Stdout != "" {
		u.Debug("soffice stdout", "output", strings.TrimSpace(res.Stdout))
	}
	if res.Stderr != "" {
		u.Debug("soffice stderr", "output", strings.TrimSpace(res.Stderr))
	}
	if err != nil {
		return nil, fmt.Errorf("%w\n%s\n%s", err, strings.TrimSpace(res.Stderr), strings.TrimSpace(res.Stdout))
	}

	files := listDir(outDir)
	u.Debug("Converter output dir", "dir", outDir, "files", files)

	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	outPath := filepath.Join(outDir, base+"."+format)
	data, err := os.ReadFile(outPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("converted file not found; outdir files: %s", strings.Join(files, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("read converted file: %w", err)
	}
	if err := os.Remove(outPath); err != nil {
		u.Warn("Failed to remove converted file", "path", outPath, "error", err)
	}
	return data, nil
}

func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
