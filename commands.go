package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime/debug"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mlwelles/heapsizegen/config"
	"github.com/mlwelles/heapsizegen/diag"
	"github.com/mlwelles/heapsizegen/generator"
	"github.com/mlwelles/heapsizegen/internal/logging"
	"github.com/mlwelles/heapsizegen/model"
	"github.com/mlwelles/heapsizegen/parser"
	"github.com/mlwelles/heapsizegen/resolver"
)

var (
	// Set via ldflags at build time
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// errReported is returned once diagnostics have been printed.
var errReported = errors.New("diagnostics reported")

type cli struct {
	stdout io.Writer
	stderr io.Writer

	// flags
	cfgFile  string
	pkgDir   string
	outDir   string
	types    string
	tag      string
	output   string
	logLevel string

	cfg    *config.Config
	log    *zap.Logger
	dir    string
	report *reporter
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "heapsizegen",
		Short: "Generate HeapSize methods for annotated Go types",
		Long: `heapsizegen writes a HeapSize method for every annotated struct and
sealed interface of a package. The methods report the bytes a value owns on
the heap; the heapsize runtime package measures each counted field.

Annotations:
  //heapsize:all            on a type or variant: every field counts
  //heapsize:skip           on a variant: the variant owns nothing
  heapsize:""               on a field: the field counts
  heapsize:"skip"           on a field: the field does not count
  heapsize:"with=pkg.Func"  on a field: Func(&x.Field) measures it`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.generate()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.cfgFile, "config", "c", "", "config file path (default "+config.DefaultFile+" if present)")
	flags.StringVar(&c.pkgDir, "pkg", ".", "path to the target Go package directory")
	flags.StringVar(&c.types, "type", "", "comma-separated type names (default: every annotated type)")
	flags.StringVar(&c.tag, "tag", "", "annotation namespace (default "+parser.DefaultTag+")")
	flags.StringVar(&c.output, "output", "", "generated file name (default "+generator.DefaultOutput+")")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.Flags().StringVar(&c.outDir, "out-dir", "", "output directory (default: same as --pkg)")

	root.AddCommand(c.checkCmd(), c.describeCmd(), c.watchCmd(), versionCmd())
	return root
}

// setup loads configuration, applies flag overrides and wires logging.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("type") {
		cfg.Types = config.SplitList(c.types)
	}
	if c.tag != "" {
		cfg.Tag = c.tag
	}
	if c.output != "" {
		cfg.Output = c.output
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate flags: %w", err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	parser.SetLogger(log.Named("parser"))
	generator.SetLogger(log.Named("generator"))

	dir, err := filepath.Abs(c.pkgDir)
	if err != nil {
		return fmt.Errorf("resolving package directory: %w", err)
	}

	c.cfg = cfg
	c.log = log
	c.dir = dir
	c.report = newReporter(c.stderr)
	return nil
}

func (c *cli) outputDir() string {
	if c.outDir == "" {
		return c.dir
	}
	return c.outDir
}

// resolve parses the target package and resolves its plans. Diagnostics are
// printed and reported as errReported.
func (c *cli) resolve() (*model.Package, []*model.TypePlan, error) {
	pkg, err := parser.ParseWithOptions(c.dir, c.cfg.ParserOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("parse error: %w", err)
	}

	plans, err := resolver.ResolvePackage(pkg)
	if err != nil {
		var list diag.List
		if errors.As(err, &list) {
			c.report.diagnostics(list)
			return nil, nil, errReported
		}
		return nil, nil, err
	}
	return pkg, plans, nil
}

func (c *cli) generate() error {
	pkg, plans, err := c.resolve()
	if err != nil {
		return err
	}
	if err := generator.GenerateWithOptions(pkg, plans, c.outputDir(), c.cfg.GeneratorOptions()); err != nil {
		return fmt.Errorf("generation error: %w", err)
	}
	return nil
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate annotations without writing code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, plans, err := c.resolve()
			if err != nil {
				return err
			}
			c.report.ok(c.stdout, pkg, plans)
			return nil
		},
	}
}

func (c *cli) describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print how every field of every selected type is counted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, plans, err := c.resolve()
			if err != nil {
				return err
			}
			return describe(c.stdout, pkg, plans, c.cfg)
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate whenever a source file of the package changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.watch(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&c.outDir, "out-dir", "", "output directory (default: same as --pkg)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			v := version
			if info, ok := debug.ReadBuildInfo(); ok && v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
				v = info.Main.Version
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "heapsizegen %s\n", v)
			fmt.Fprintf(out, "  commit:  %s\n", commit)
			fmt.Fprintf(out, "  built:   %s\n", buildDate)
		},
	}
}
