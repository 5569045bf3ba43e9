package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pivoten/caat/internal/app"
	"github.com/pivoten/caat/internal/config"
	"github.com/pivoten/caat/internal/ingest"
	"github.com/pivoten/caat/internal/logger"
	"github.com/pivoten/caat/internal/table"
)

// cli carries the state shared by every subcommand of one invocation
type cli struct {
	v          *viper.Viper
	configPath string
	jsonOut    bool
	report     bool
	verbose    bool

	out    io.Writer
	errOut io.Writer

	services *app.Services
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out, errOut: errOut}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "caat",
		Short: "Computer-assisted audit tests over tabular files",
		Long: `caat loads csv, Excel (.xlsx/.xls) and dBase (.dbf) files and runs audit tests:
duplicate detection, unusual amounts, two-table reconciliation and Benford's law.
Results are printed as a summary (or JSON) and can be exported as xlsx, csv and pdf.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) { logger.Close() },
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default <user config dir>/CAAT/config.yaml)")
	flags.BoolVar(&c.jsonOut, "json", false, "print the result as JSON")
	flags.BoolVar(&c.report, "report", false, "write xlsx, csv and pdf artifacts to the output directory")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "also log to stderr")
	flags.String("out", defaults.Settings.OutputDir, "output directory for artifacts (implies --report)")
	flags.String("locale", defaults.Settings.Locale, "narrative language (en|es)")
	flags.String("log-level", defaults.Settings.LogLevel, "log level (debug|info|warn|error)")
	c.bind(flags, "settings.output_dir", "out")
	c.bind(flags, "settings.locale", "locale")
	c.bind(flags, "settings.log_level", "log-level")

	cmd.AddCommand(
		c.newSheetsCmd(),
		c.newInspectCmd(),
		c.newDuplicatesCmd(),
		c.newUnusualCmd(),
		c.newReconcileCmd(),
		c.newBenfordCmd(),
		c.newConfigCmd(),
	)
	return cmd
}

// bind ties a flag to a config key so that an explicit flag wins over the
// config file and the environment
func (c *cli) bind(flags *pflag.FlagSet, key, name string) {
	if err := c.v.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.v, c.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("out") {
		c.report = true
	}

	logDir := cfg.Settings.LogDir
	if logDir == "" {
		if dir, err := config.DefaultLogDir(); err == nil {
			logDir = dir
		}
	}
	if err := logger.Initialize(logger.Options{
		Dir:      logDir,
		Level:    cfg.Settings.LogLevel,
		Console:  c.verbose,
		KeepDays: cfg.Settings.KeepLogDays,
	}); err != nil {
		return err
	}

	c.services, err = app.NewServices(cfg)
	if err != nil {
		return err
	}
	logger.WriteDebug("Main", "command started",
		zap.String("command", cmd.CommandPath()),
		zap.String("locale", cfg.Settings.Locale),
	)
	return nil
}

// loadTable reads one input file. Workbooks with several sheets need an
// explicit sheet so the wrong one is never analysed silently.
func (c *cli) loadTable(path, sheet string) (*table.Table, error) {
	if sheet == "" {
		format, err := ingest.DetectFormat(path)
		if err != nil {
			return nil, err
		}
		if format == ingest.FormatXLSX || format == ingest.FormatXLS {
			names, err := c.services.Ingest.SheetNamesFile(path)
			if err != nil {
				return nil, err
			}
			if len(names) > 1 {
				return nil, fmt.Errorf("%s has %d sheets, choose one with --sheet: %s",
					filepath.Base(path), len(names), strings.Join(names, ", "))
			}
		}
	}
	return c.services.Ingest.LoadFile(path, ingest.Options{Sheet: sheet})
}
