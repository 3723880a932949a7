// Package beagle is the core of the Beagle compiler: it takes the AST the
// front end produced and runs symbol analysis, the optimization passes and
// CFG construction, then links the emitted instruction stream and loads it
// in-process or writes it out as assembly text.
//
// The pipeline is strictly sequential; every pass finishes before the next
// begins, and passes always run to completion so one build surfaces every
// finding. The register allocator and the code-emission walk are the
// caller's: the compiler hands over per-function CFGs and metrics, and
// takes back an instruction stream for linking.
package beagle

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/beagle-lang/beagle/internal/analysis"
	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/cfg"
	"github.com/beagle-lang/beagle/internal/jit"
	"github.com/beagle-lang/beagle/internal/linker"
	"github.com/beagle-lang/beagle/internal/opt"
	"github.com/beagle-lang/beagle/internal/rt"
	"github.com/beagle-lang/beagle/internal/symtab"
	"github.com/beagle-lang/beagle/internal/veneer"
)

// Config selects which optimization passes run.
type Config struct {
	EnableCSE           bool `yaml:"enable_cse"`
	EnableLocalCSE      bool `yaml:"enable_local_cse"`
	EnableBoundsChecks  bool `yaml:"enable_bounds_checks"`
	EnableStringLifting bool `yaml:"enable_string_lifting"`
}

// DefaultConfig enables every pass.
func DefaultConfig() Config {
	return Config{
		EnableCSE:           true,
		EnableLocalCSE:      true,
		EnableBoundsChecks:  true,
		EnableStringLifting: true,
	}
}

// Result is everything the back-end walk needs from the front half of the
// pipeline.
type Result struct {
	Table         *symtab.Table
	Metrics       map[string]*symtab.FunctionMetrics
	Graphs        map[string]*cfg.Graph
	Strings       *opt.StringTable
	ExternalCalls map[string]struct{}
	// Warnings are non-fatal findings (memory-leak warnings).
	Warnings []error
}

// Compiler runs the core pipeline.
type Compiler struct {
	cfg     Config
	runtime *rt.Registry
	logger  *zap.Logger
}

// NewCompiler returns a compiler over the host runtime registry. A nil
// logger disables tracing.
func NewCompiler(config Config, runtime *rt.Registry, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{cfg: config, runtime: runtime, logger: logger}
}

// Compile runs analysis, the enabled optimization passes, and CFG
// construction. The returned error aggregates every fatal finding across
// all passes; the Result is populated either way so the driver can decide
// whether to proceed.
func (c *Compiler) Compile(prog *ast.Program) (*Result, error) {
	var errs []error

	table := symtab.NewTable(c.logger)
	analyzer := analysis.NewAnalyzer(table, c.runtime, c.logger)
	if err := analyzer.Analyze(prog); err != nil {
		errs = append(errs, err)
	}

	factory := &analysis.TempFactory{}
	if c.cfg.EnableCSE {
		opt.NewCSEPass(table, analyzer, factory, c.logger).Run(prog)
	}
	if c.cfg.EnableLocalCSE {
		opt.NewLocalCSEPass(table, analyzer, factory, c.logger).Run(prog)
	}
	if c.cfg.EnableBoundsChecks {
		if err := opt.NewBoundsPass(table, true, c.logger).Run(prog); err != nil {
			errs = append(errs, err)
		}
	}
	strTable := opt.NewStringTable()
	if c.cfg.EnableStringLifting {
		opt.NewStringLiftPass(table, strTable, analyzer, factory, c.logger).Run(prog)
	}

	builder := cfg.NewBuilder(table, c.logger)
	if err := builder.Build(prog); err != nil {
		errs = append(errs, err)
	}

	return &Result{
		Table:         table,
		Metrics:       analyzer.AllMetrics(),
		Graphs:        builder.Graphs(),
		Strings:       strTable,
		ExternalCalls: analyzer.ExternalCalls(),
		Warnings:      analyzer.Warnings(),
	}, multierr.Combine(errs...)
}

// NewStream returns an instruction stream whose head holds the veneers for
// the given external calls. The returned manager's label map must be passed
// to Link so runtime calls route through the veneers.
func (c *Compiler) NewStream(externalCalls map[string]struct{}, codeBufferBase uint64) (*linker.Stream, *veneer.Manager, error) {
	stream := linker.NewStream()
	mgr := veneer.NewManager(c.runtime, c.logger)
	mgr.Initialize(codeBufferBase)
	if err := mgr.GenerateVeneers(externalCalls, stream); err != nil {
		return nil, nil, err
	}
	return stream, mgr, nil
}

// Link resolves labels and patches relocations in place.
func (c *Compiler) Link(stream *linker.Stream, veneers *veneer.Manager, codeBase uint64) (*linker.Linker, error) {
	var labels map[string]string
	if veneers != nil {
		labels = veneers.VeneerLabels()
	}
	l := linker.NewLinker(labels, c.logger)
	if err := l.Link(stream, codeBase); err != nil {
		return nil, err
	}
	return l, nil
}

// WriteAssembly renders the linked stream as static assembly text.
func (c *Compiler) WriteAssembly(stream *linker.Stream) string {
	return linker.NewWriter(c.runtime).Write(stream)
}

// JITLoad links the stream against a freshly mapped executable region,
// copies the image in, and flips the region executable. The stream is first
// linked at a probe base to size the image, then re-linked at the region's
// real base; re-linking is idempotent because every relocation patch fully
// overwrites its field.
func (c *Compiler) JITLoad(stream *linker.Stream, veneers *veneer.Manager) (*jit.Executable, *linker.Linker, error) {
	probe, err := c.Link(stream, veneers, 0)
	if err != nil {
		return nil, nil, err
	}

	region, err := jit.Allocate(int(probe.Layout().TotalSize))
	if err != nil {
		return nil, nil, err
	}

	final, err := c.Link(stream, veneers, region.Base())
	if err != nil {
		region.Close()
		return nil, nil, err
	}
	if err := region.Copy(linker.BuildImage(stream, final.Layout())); err != nil {
		region.Close()
		return nil, nil, err
	}
	if err := region.Finalize(); err != nil {
		region.Close()
		return nil, nil, err
	}
	return region, final, nil
}
