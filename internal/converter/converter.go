// Package converter turns office documents into PDF by delegating to a
// headless LibreOffice, choosing once at construction how to talk to it.
package converter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"office2pdf/internal/process"
	u "office2pdf/internal/utils"
)

// ErrConversionFailed is the single error kind reported for any conversion
// failure. The wrapped message explains what went wrong.
var ErrConversionFailed = errors.New("conversion failed")

// Strategy names.
const (
	StrategyAuto   = "auto"
	StrategyDirect = "direct"
	StrategyBridge = "bridge"
)

// Strategy is one way of driving the external converter.
type Strategy interface {
	Name() string
	Convert(ctx context.Context, document []byte, format, fileName string) ([]byte, error)
	// Available reports whether the converter binary can be located.
	Available() bool
}

// Options configure a Converter. The executable path is passed in rather
// than read from the environment.
type Options struct {
	Strategy     string
	SofficePath  string
	Format       string
	Timeout      time.Duration
	TempDir      string
	SearchPaths  []string
	ReadRetries  int
	ReadInterval time.Duration

	// Runner overrides process execution; nil uses os/exec.
	Runner process.Runner
}

// OptionsFromConfig maps the converter section of the service config.
func OptionsFromConfig(cfg u.ConverterConfig) Options {
	return Options{
		Strategy:     cfg.Strategy,
		SofficePath:  cfg.SofficePath,
		Format:       cfg.Format,
		Timeout:      cfg.Timeout,
		TempDir:      cfg.TempDir,
		SearchPaths:  cfg.SearchPaths,
		ReadRetries:  cfg.ReadRetries,
		ReadInterval: cfg.ReadInterval,
	}
}

// Converter is the conversion orchestrator.
type Converter struct {
	strategy Strategy
	format   string
	timeout  time.Duration
}

// New selects the strategy for the host platform (or the one forced by
// opts.Strategy) and returns a ready Converter.
func New(opts Options) (*Converter, error) {
	if opts.Runner == nil {
		opts.Runner = &process.ExecRunner{}
	}
	if opts.Format == "" {
		opts.Format = "pdf"
	}
	s, err := selectStrategy(runtime.GOOS, opts)
	if err != nil {
		return nil, err
	}
	return NewWithStrategy(s, opts.Format, opts.Timeout), nil
}

// NewWithStrategy wraps an explicit strategy. A zero timeout means the
// converter may run indefinitely.
func NewWithStrategy(s Strategy, format string, timeout time.Duration) *Converter {
	if format == "" {
		format = "pdf"
	}
	return &Converter{strategy: s, format: format, timeout: timeout}
}

// selectStrategy prefers direct invocation on Windows, where the bridge's
// private profile directories are unreliable, and the bridge elsewhere.
func selectStrategy(goos string, opts Options) (Strategy, error) {
	name := opts.Strategy
	if name == "" || name == StrategyAuto {
		name = StrategyBridge
		if goos == "windows" {
			name = StrategyDirect
		}
	}
	switch name {
	case StrategyDirect:
		return NewDirect(opts), nil
	case StrategyBridge:
		return NewBridge(opts), nil
	default:
		return nil, fmt.Errorf("unknown converter strategy %q", opts.Strategy)
	}
}

// StrategyName reports which strategy was selected.
func (c *Converter) StrategyName() string { return c.strategy.Name() }

// Available reports whether the converter binary can be located.
func (c *Converter) Available() bool { return c.strategy.Available() }

// Convert renders document as PDF. fileName is the uploaded name; its
// extension tells the converter which import filter to use.
func (c *Converter) Convert(ctx context.Context, document []byte, fileName string) ([]byte, error) {
	if len(document) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrConversionFailed)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	name := SourceFileName(fileName, document)
	start := time.Now()
	out, err := c.strategy.Convert(ctx, document, c.format, name)
	if err != nil {
		if c.timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: converter did not finish within %s: %w", ErrConversionFailed, c.timeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: converter produced an empty file", ErrConversionFailed)
	}

	u.Debug("Document converted",
		"strategy", c.strategy.Name(),
		"file", name,
		"in_bytes", len(document),
		"out_bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// execDir is the working directory for soffice: the directory of an
// explicitly configured executable, so it finds the libraries next to it.
func execDir(sofficePath string) string {
	if sofficePath == "" {
		return ""
	}
	return filepath.Dir(sofficePath)
}
