// Command beaglec is the thin driver around the compiler core. The lexer
// and parser are external collaborators; this binary wires configuration,
// logging and the host-runtime registry into the pipeline and exposes a
// demo path that exercises it end to end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	beagle "github.com/beagle-lang/beagle"
	"github.com/beagle-lang/beagle/internal/asm/arm64"
	"github.com/beagle-lang/beagle/internal/ast"
	"github.com/beagle-lang/beagle/internal/rt"
)

type driverConfig struct {
	Passes beagle.Config `yaml:"passes"`
	Trace  bool          `yaml:"trace"`
}

func loadConfig(path string) (driverConfig, error) {
	cfg := driverConfig{Passes: beagle.DefaultConfig()}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(trace bool) (*zap.Logger, error) {
	if !trace {
		return zap.NewNop(), nil
	}
	c := zap.NewDevelopmentConfig()
	return c.Build()
}

// hostRegistry mirrors the names the host runtime registers before the
// compiler starts. The demo uses placeholder addresses; the real JIT path
// receives them from the loaded runtime.
func hostRegistry(tracing bool) *rt.Registry {
	fns := []rt.Function{
		{Name: "WRITEF", Address: 0x7100_0000_0000, Arity: 1, Kind: rt.KindRoutine},
		{Name: "HeapManager_enter_scope", Address: 0x7100_0000_0100, Kind: rt.KindRoutine},
		{Name: "HeapManager_exit_scope", Address: 0x7100_0000_0200, Kind: rt.KindRoutine},
	}
	for i := 1; i <= 7; i++ {
		fns = append(fns, rt.Function{
			Name:    fmt.Sprintf("WRITEF%d", i),
			Address: 0x7100_0000_1000 + uint64(i)*0x10,
			Arity:   uint32(i + 1),
			Kind:    rt.KindRoutine,
		})
	}
	return rt.NewRegistry(fns, tracing)
}

func main() {
	var configPath string
	var trace bool

	root := &cobra.Command{
		Use:           "beaglec",
		Short:         "Beagle compiler core driver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	root.PersistentFlags().BoolVar(&trace, "trace", false, "enable pass tracing")

	root.AddCommand(&cobra.Command{
		Use:   "stages",
		Short: "Show the configured pipeline stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("analysis:        always\n")
			fmt.Printf("cse (global):    %v\n", cfg.Passes.EnableCSE)
			fmt.Printf("cse (local):     %v\n", cfg.Passes.EnableLocalCSE)
			fmt.Printf("bounds checks:   %v\n", cfg.Passes.EnableBoundsChecks)
			fmt.Printf("string lifting:  %v\n", cfg.Passes.EnableStringLifting)
			fmt.Printf("cfg build:       always\n")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "demo [output.s]",
		Short: "Run a built-in program through the pipeline and write its assembly",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(trace || cfg.Trace)
			if err != nil {
				return err
			}
			defer logger.Sync()

			c := beagle.NewCompiler(cfg.Passes, hostRegistry(trace), logger)
			res, err := c.Compile(demoProgram())
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %v\n", w)
			}

			stream, veneers, err := c.NewStream(res.ExternalCalls, 0x10000)
			if err != nil {
				return err
			}
			stream.DefineLabel("_start")
			ret, err := demoEpilogue()
			if err != nil {
				return err
			}
			stream.AddAll(ret)

			if _, err := c.Link(stream, veneers, 0x10000); err != nil {
				return err
			}

			out := c.WriteAssembly(stream)
			if len(args) == 1 {
				return os.WriteFile(args[0], []byte(out), 0o644)
			}
			fmt.Print(out)
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "beaglec: %v\n", err)
		os.Exit(1)
	}
}

// demoProgram is a small routine exercising allocation, CSE, bounds checks
// and string lifting.
func demoProgram() *ast.Program {
	sum := func() ast.Expr {
		return &ast.BinaryOp{Op: ast.OpAdd,
			Left:  &ast.VariableAccess{Name: "a"},
			Right: &ast.VariableAccess{Name: "b"}}
	}
	body := &ast.CompoundStatement{Statements: []ast.Stmt{
		&ast.LetStatement{Names: []string{"v"},
			Initializers: []ast.Expr{&ast.VecAllocation{Size: ast.IntLiteral(8)}}},
		&ast.AssignmentStatement{
			LHS: []ast.Expr{&ast.VariableAccess{Name: "x"}},
			RHS: []ast.Expr{&ast.BinaryOp{Op: ast.OpMul, Left: sum(), Right: sum()}}},
		&ast.RoutineCallStatement{Call: &ast.FunctionCall{
			Callee: &ast.VariableAccess{Name: "WRITEF"},
			Args:   []ast.Expr{&ast.StringLiteral{Value: "result: %d\n"}, &ast.VariableAccess{Name: "x"}}}},
	}}
	return &ast.Program{Declarations: []ast.Decl{
		&ast.RoutineDecl{Name: "START", Body: body},
	}}
}

// demoEpilogue emits the minimal entry stub so the demo stream links.
func demoEpilogue() ([]arm64.Instruction, error) {
	nop, err := arm64.Nop()
	if err != nil {
		return nil, err
	}
	ret, err := arm64.Return()
	if err != nil {
		return nil, err
	}
	return []arm64.Instruction{nop, ret}, nil
}
