package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"clamservices/internal/bootstrap"
	"clamservices/internal/config"
	"clamservices/internal/diagnostics"
	"clamservices/internal/domain"
	"clamservices/internal/history"
	"clamservices/internal/pipeline"
)

// Exit codes reported to the mediator.
const (
	exitOK       = 0
	exitUsage    = 1
	exitPipeline = 2
)

var errUsage = errors.New("usage error")

var stdout io.Writer = os.Stdout

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	var pErr *pipeline.PipelineError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &pErr):
		return exitPipeline
	case errors.Is(err, errUsage),
		errors.Is(err, flag.ErrHelp),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, bootstrap.ErrInvalidJob),
		diagnostics.IsConfigurationError(err):
		return exitUsage
	default:
		return exitPipeline
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("CLAMSERVICES_CONFIG"); p != "" {
		return p
	}
	return "/etc/clamservices/clamservices.yml"
}

func rootCmd() *commander.Command {
	return &commander.Command{
		UsageLine: "clamservices <command> [options] [arguments]",
		Short:     "NLP service wrappers for the CLAM mediator",
		Subcommands: []*commander.Command{
			serviceCmd(domain.ServiceAlpino, "parse Dutch text with Alpino and convert the treebank to FoLiA"),
			serviceCmd(domain.ServiceUcto, "tokenise text with ucto"),
			serviceCmd(domain.ServiceSpacy, "annotate text and FoLiA documents with spaCy"),
			checkCmd(),
			modelsCmd(),
			runsCmd(),
			configCmd(),
		},
		Flag: *flag.NewFlagSet("clamservices", flag.ContinueOnError),
	}
}

func serviceCmd(service domain.Service, short string) *commander.Command {
	name := string(service)
	cmd := &commander.Command{
		UsageLine: name + " [options] DATAFILE STATUSFILE OUTPUTDIR",
		Short:     short,
		Long: fmt.Sprintf(`
%s

	$ clamservices %s -config clamservices.yml $DATAFILE $STATUSFILE $OUTPUTDIRECTORY

Exit status is 0 on success, 2 when a tool fails and 1 for usage or
configuration problems.
`, short, name),
		Flag: *flag.NewFlagSet(name, flag.ContinueOnError),
	}
	configPath := cmd.Flag.String("config", defaultConfigPath(), "configuration file")
	cmd.Run = func(cmd *commander.Command, args []string) error {
		if len(args) != 3 {
			cmd.Usage()
			return fmt.Errorf("%w: %s needs DATAFILE STATUSFILE OUTPUTDIR, got %d arguments", errUsage, name, len(args))
		}
		return runService(service, *configPath, args[0], args[1], args[2])
	}
	return cmd
}

func runService(service domain.Service, configPath, dataFile, statusFile, outputDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, bootstrap.Options{ConfigPath: configPath, StatusFile: statusFile})
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.RunService(ctx, service, dataFile, outputDir)
	printUnitProblems(os.Stderr, result)
	return err
}

// printUnitProblems lists skipped and missing units per input.
func printUnitProblems(w io.Writer, result pipeline.Result) {
	for _, in := range result.Inputs {
		name := filepath.Base(in.Input)
		for _, seq := range in.Missing {
			fmt.Fprintf(w, "%s: missing unit %d\n", name, seq)
		}
		for _, f := range in.Failed {
			fmt.Fprintf(w, "%s: skipped unit %d: %v\n", name, f.Seq, f.Err)
		}
	}
}

func checkCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "check [options] [OUTPUTDIR]",
		Short:     "check that the tools a service needs are installed",
		Flag:      *flag.NewFlagSet("check", flag.ContinueOnError),
	}
	configPath := cmd.Flag.String("config", defaultConfigPath(), "configuration file")
	only := cmd.Flag.String("service", "", "check a single service (alpino, ucto or spacy)")
	cmd.Run = func(cmd *commander.Command, args []string) error {
		outputDir := ""
		if len(args) > 0 {
			outputDir = args[0]
		}
		cfg, err := config.NewYAMLStore(*configPath).Load()
		if err != nil {
			return err
		}
		services := domain.Services()
		if *only != "" {
			services = []domain.Service{domain.Service(*only)}
		}

		checker := diagnostics.NewChecker()
		var failed error
		for _, service := range services {
			report := checker.Run(service, cfg, outputDir)
			printReport(stdout, report)
			if err := diagnostics.Verify(report); err != nil && failed == nil {
				failed = err
			}
		}
		return failed
	}
	return cmd
}

func printReport(w io.Writer, report domain.DiagnosticReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "[%s]\n", report.Service)
	for _, item := range report.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", item.Status, item.ID, item.Message)
		if item.Hint != "" && item.Status == domain.DiagnosticStatusFail {
			fmt.Fprintf(tw, "\t\t%s\n", item.Hint)
		}
	}
	tw.Flush()
}

func modelsCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "models [options]",
		Short:     "list the spaCy models the spacy service can resolve",
		Flag:      *flag.NewFlagSet("models", flag.ContinueOnError),
	}
	configPath := cmd.Flag.String("config", defaultConfigPath(), "configuration file")
	cmd.Run = func(cmd *commander.Command, args []string) error {
		cfg, err := config.NewYAMLStore(*configPath).Load()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LANGUAGE\tMODEL\tINSTALLED")
		for _, m := range bootstrap.SpacyModels(cfg.SpacyModelsDir) {
			fmt.Fprintf(tw, "%s\t%s\t%v\n", m.Language, m.Name, m.Installed)
		}
		return tw.Flush()
	}
	return cmd
}

func runsCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "runs [options] [RUNID]",
		Short:     "show recorded service runs",
		Flag:      *flag.NewFlagSet("runs", flag.ContinueOnError),
	}
	configPath := cmd.Flag.String("config", defaultConfigPath(), "configuration file")
	limit := cmd.Flag.Int("n", 20, "number of runs to list")
	cmd.Run = func(cmd *commander.Command, args []string) error {
		cfg, err := config.NewYAMLStore(*configPath).Load()
		if err != nil {
			return err
		}
		if cfg.HistoryDB == "" {
			return fmt.Errorf("%w: history_db is not configured", errUsage)
		}
		ctx := context.Background()
		db, err := history.Open(ctx, cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer db.Close()

		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		defer tw.Flush()
		if len(args) > 0 {
			run, err := db.Get(ctx, args[0])
			if err != nil {
				return err
			}
			printRun(tw, run)
			for _, f := range run.Failures {
				fmt.Fprintf(tw, "\t%s\t%d\t%s\n", f.Input, f.Seq, f.Error)
			}
			return nil
		}
		runs, err := db.Recent(ctx, *limit)
		if err != nil {
			return err
		}
		for _, run := range runs {
			printRun(tw, run)
		}
		return nil
	}
	return cmd
}

func printRun(w io.Writer, run history.Run) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", run.ID, run.Service, run.StartedAt.Format("2006-01-02 15:04:05"), run.Status, run.Message)
}

func configCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "config [options] OUTFILE",
		Short:     "write the effective configuration as YAML",
		Flag:      *flag.NewFlagSet("config", flag.ContinueOnError),
	}
	configPath := cmd.Flag.String("config", defaultConfigPath(), "configuration file")
	cmd.Run = func(cmd *commander.Command, args []string) error {
		if len(args) != 1 {
			cmd.Usage()
			return fmt.Errorf("%w: config needs OUTFILE", errUsage)
		}
		cfg, err := config.NewYAMLStore(*configPath).Load()
		if err != nil {
			return err
		}
		return config.NewYAMLStore(args[0]).Save(cfg)
	}
	return cmd
}
