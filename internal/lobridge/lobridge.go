// Package lobridge converts documents in memory by driving a private
// LibreOffice instance: the caller hands over bytes and gets bytes back,
// the package owns the scratch directory, the user profile and the binary
// lookup.
package lobridge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"office2pdf/internal/process"
)

// ErrBinaryNotFound is returned when no soffice executable can be located.
var ErrBinaryNotFound = errors.New("could not find soffice binary")

const defaultFileName = "source"

// Options tune a conversion. The zero value is usable.
type Options struct {
	// BinaryPaths are tried before the well-known install locations.
	BinaryPaths []string
	// ExecDir is the working directory of the soffice process.
	ExecDir string
	// TempDir is the parent of the scratch and profile directories.
	TempDir string
	// Filter is appended to the target format as "pdf:<filter>".
	Filter string
	// ReadRetries is how many extra attempts are made to read the result.
	ReadRetries  int
	ReadInterval time.Duration
	Runner       process.Runner
}

func (o Options) withDefaults() Options {
	if o.Runner == nil {
		o.Runner = &process.ExecRunner{}
	}
	if o.ReadRetries <= 0 {
		o.ReadRetries = 3
	}
	if o.ReadInterval <= 0 {
		o.ReadInterval = 200 * time.Millisecond
	}
	return o
}

// Convert renders document into format. fileName is only a hint: its
// extension lets soffice pick the right import filter.
func Convert(ctx context.Context, document []byte, format, fileName string, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	binary, err := FindBinary(opts.BinaryPaths)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp(opts.TempDir, "libreofficeConvert_")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	profileDir, err := os.MkdirTemp(opts.TempDir, "soffice-profile-")
	if err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	defer os.RemoveAll(profileDir)

	if fileName == "" {
		fileName = defaultFileName
	}
	srcDir, outDir := filepath.Join(workDir, "src"), filepath.Join(workDir, "out")
	for _, dir := range []string{srcDir, outDir} {
		if err := os.Mkdir(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create work dir: %w", err)
		}
	}
	source := filepath.Join(srcDir, fileName)
	if err := os.WriteFile(source, document, 0o600); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}

	convertTo := format
	if opts.Filter != "" {
		convertTo += ":" + opts.Filter
	}

	cmd := process.Command{
		Name: binary,
		Args: []string{
			"-env:UserInstallation=" + fileURL(profileDir),
			"--headless",
			"--convert-to", convertTo,
			"--outdir", outDir,
			source,
		},
		Dir: opts.ExecDir,
	}
	res, err := opts.Runner.Run(ctx, cmd)
	if err != nil {
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(binary), err, stderr)
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(binary), err)
	}

	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return readResult(ctx, filepath.Join(outDir, base+"."+format), opts.ReadRetries, opts.ReadInterval)
}

// readResult reads path, retrying while it does not exist yet: soffice can
// exit before the output is visible on some filesystems.
func readResult(ctx context.Context, path string, retries int, interval time.Duration) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !errors.Is(err, os.ErrNotExist) {
			break
		}
	}
	return nil, fmt.Errorf("read converted file: %w", lastErr)
}

// FindBinary returns the first existing soffice executable among extra, the
// platform's well-known install locations and PATH.
func FindBinary(extra []string) (string, error) {
	for _, p := range append(append([]string{}, extra...), installPaths(runtime.GOOS)...) {
		if p == "" {
			continue
		}
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	for _, name := range []string{"soffice", "libreoffice"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrBinaryNotFound
}

func installPaths(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"/Applications/LibreOffice.app/Contents/MacOS/soffice"}
	case "windows":
		var paths []string
		for _, env := range []string{"PROGRAMFILES", "PROGRAMFILES(X86)"} {
			if dir := os.Getenv(env); dir != "" {
				paths = append(paths, filepath.Join(dir, "LibreOffice", "program", "soffice.exe"))
			}
		}
		return paths
	default:
		paths := []string{
			"/usr/bin/libreoffice",
			"/usr/bin/soffice",
			"/usr/local/bin/soffice",
			"/snap/bin/libreoffice",
			"/opt/libreoffice/program/soffice",
		}
		if matches, _ := filepath.Glob("/opt/libreoffice*/program/soffice"); len(matches) > 0 {
			paths = append(paths, matches...)
		}
		return paths
	}
}

// fileURL turns a directory into the file:// URL soffice expects for
// -env:UserInstallation.
func fileURL(dir string) string {
	p := filepath.ToSlash(dir)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
