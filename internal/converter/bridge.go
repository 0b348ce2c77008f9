package converter

import (
	"context"

	"office2pdf/internal/lobridge"
)

// Bridge hands the document to the lobridge library, which manages its own
// soffice invocation, scratch space and user profile.
type Bridge struct {
	opts lobridge.Options
}

// NewBridge builds the library-bridge strategy. An explicit SofficePath is
// tried first and also becomes the process working directory.
func NewBridge(opts Options) *Bridge {
	var paths []string
	if opts.SofficePath != "" {
		paths = append(paths, opts.SofficePath)
	}
	paths = append(paths, opts.SearchPaths...)
	return &Bridge{opts: lobridge.Options{
		BinaryPaths:  paths,
		ExecDir:      execDir(opts.SofficePath),
		TempDir:      opts.TempDir,
		ReadRetries:  opts.ReadRetries,
		ReadInterval: opts.ReadInterval,
		Runner:       opts.Runner,
	}}
}

func (b *Bridge) Name() string { return StrategyBridge }

func (b *Bridge) Available() bool {
	_, err := lobridge.FindBinary(b.opts.BinaryPaths)
	return err == nil
}

// Convert returns whatever the bridge reports, error included, unchanged.
func (b *Bridge) Convert(ctx context.Context, document []byte, format, fileName string) ([]byte, error) {
	return lobridge.Convert(ctx, document, format, fileName, b.opts)
}
