package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/asghar07/genass/internal/batch"
	"github.com/asghar07/genass/internal/cost"
	"github.com/asghar07/genass/internal/display"
	"github.com/asghar07/genass/internal/generate"
	"github.com/asghar07/genass/internal/keys"
	"github.com/asghar07/genass/internal/ledger"
	"github.com/asghar07/genass/internal/manifest"
	"github.com/asghar07/genass/internal/postprocess"
	"github.com/asghar07/genass/internal/provider"
	"github.com/asghar07/genass/internal/provider/gemini"
	"github.com/asghar07/genass/internal/quality"
	"github.com/asghar07/genass/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

type generateFlags struct {
	output           string
	format           string
	quality          int
	model            string
	concurrency      int
	maxRetries       int
	qualityThreshold float64
	maxRegenerations int
	apiKey           string
	project          string
	blend            []string
	rpm              int
	preview          bool
	noLedger         bool
	verbose          bool
}

// App carries the injectable edges of the CLI so tests can run commands
// against fakes without touching the network or the real ledger.
type App struct {
	Out         io.Writer
	Err         io.Writer
	GetEnv      func(string) string
	NewProvider func(ctx context.Context, cfg *provider.Config) (provider.Provider, error)
	OpenLedger  func() (*ledger.Store, error)
}

func DefaultApp() *App {
	return &App{
		Out:    os.Stdout,
		Err:    os.Stderr,
		GetEnv: os.Getenv,
		NewProvider: func(ctx context.Context, cfg *provider.Config) (provider.Provider, error) {
			return gemini.New(ctx, cfg)
		},
		OpenLedger: ledger.NewStore,
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genass",
		Short: "Generate project image assets from a manifest using the Gemini API",
		Long: `genass reads a JSON manifest of asset needs (icons, logos, banners...)
and generates each one through the Gemini image API, post-processes it to the
requested dimensions and format, and gates it through a quality check with
bounded regeneration.

Examples:
  genass generate assets.json -o ./assets
  genass generate assets.json -o ./assets -f webp -c 5 --preview
  genass estimate assets.json
  genass costs --days 30
  genass keys set`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newGenerateCmd(app))
	cmd.AddCommand(newEstimateCmd(app))
	cmd.AddCommand(newKeysCmd(app))
	cmd.AddCommand(newRunsCmd(app))
	cmd.AddCommand(newCostsCmd(app))

	return cmd
}

func newGenerateCmd(app *App) *cobra.Command {
	flags := &generateFlags{}

	cmd := &cobra.Command{
		Use:   "generate <manifest.json>",
		Short: "Generate every asset in a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), args[0], flags, app)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "generated-assets", "output directory")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "png", "output format (png, jpg, webp)")
	cmd.Flags().IntVarP(&flags.quality, "quality", "q", 0, "encode quality 1-100 (0 = per-format default)")
	cmd.Flags().StringVarP(&flags.model, "model", "m", models.DefaultModel, "image model")
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "c", models.DefaultConcurrency, "assets generated in parallel per group")
	cmd.Flags().IntVar(&flags.maxRetries, "max-retries", models.DefaultMaxRetries, "generation attempts per image request")
	cmd.Flags().Float64Var(&flags.qualityThreshold, "quality-threshold", models.DefaultQualityThreshold, "minimum acceptable quality score (0-1)")
	cmd.Flags().IntVar(&flags.maxRegenerations, "max-regenerations", models.DefaultMaxRegenerationAttempts, "full-pipeline regenerations on quality failure")
	cmd.Flags().StringVar(&flags.apiKey, "api-key", "", "API key (defaults to stored key, then GEMINI_API_KEY)")
	cmd.Flags().StringVar(&flags.project, "project", "", "project name recorded with the run")
	cmd.Flags().StringSliceVar(&flags.blend, "blend", nil, "reference images for character consistency")
	cmd.Flags().IntVar(&flags.rpm, "rpm", 0, "client-side requests-per-minute cap (0 = uncapped)")
	cmd.Flags().BoolVar(&flags.preview, "preview", false, "display generated assets inline (kitty protocol)")
	cmd.Flags().BoolVar(&flags.noLedger, "no-ledger", false, "skip recording the run in the local ledger")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func runGenerate(parent context.Context, manifestPath string, flags *generateFlags, app *App) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log := newLogger(app.Err, flags.verbose)

	needs, err := manifest.LoadFile(manifestPath)
	if err != nil {
		return err
	}

	apiKey, source, err := resolveAPIKey(flags.apiKey, app)
	if err != nil {
		return err
	}
	log.Debug().Str("source", source).Msg("resolved API key")

	opts := models.NewOptions(flags.output)
	opts.Format = models.OutputFormat(flags.format)
	opts.Quality = flags.quality
	opts.Model = flags.model
	opts.MaxRetries = flags.maxRetries
	opts.Concurrency = flags.concurrency
	opts.QualityThreshold = flags.qualityThreshold
	opts.MaxRegenerationAttempts = flags.maxRegenerations
	opts.BlendImages = flags.blend
	opts.EnableCharacterConsistency = len(flags.blend) > 0
	opts.CostPerGeneration = cost.NewCalculator().PerGeneration(flags.model)
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return err
	}

	prov, err := app.NewProvider(ctx, &provider.Config{
		APIKey:            apiKey,
		Model:             opts.Model,
		RequestsPerMinute: flags.rpm,
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	client := provider.NewClient(prov, provider.DefaultRetryConfig(), log)
	processor := postprocess.NewProcessor(log)
	validator := quality.NewValidator(quality.DefaultPolicy(), opts.QualityThreshold, log)
	orchestrator := generate.NewOrchestrator(client, processor, validator, log)
	scheduler := batch.NewScheduler(orchestrator, log)

	fmt.Fprintf(app.Out, "Generating %d asset(s) with %s into %s...\n", len(needs), opts.Model, opts.OutputDir)

	results, err := scheduler.GenerateMany(ctx, needs, opts)
	if err != nil {
		return err
	}

	batch.PrintSummary(app.Out, results)

	if !flags.noLedger {
		if err := recordRun(ctx, app, flags.project, opts.Model, results); err != nil {
			log.Warn().Err(err).Msg("failed to record run in ledger")
		}
	}

	if flags.preview && display.IsTerminalSupported() {
		if err := display.New(app.Out).PreviewAll(results); err != nil {
			log.Warn().Err(err).Msg("inline preview failed")
		}
	}

	if failed := batch.Summarize(results).Failed; failed > 0 {
		return fmt.Errorf("%d of %d assets failed", failed, len(results))
	}
	return nil
}

func recordRun(ctx context.Context, app *App, project, model string, results []models.GeneratedAsset) error {
	store, err := app.OpenLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := ledger.NewRecorder(store)
	if _, err := recorder.StartRun(ctx, project, model, len(results)); err != nil {
		return err
	}
	return recorder.RecordBatch(ctx, results)
}

func newEstimateCmd(app *App) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "estimate <manifest.json>",
		Short: "Estimate the cost of generating a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			needs, err := manifest.LoadFile(args[0])
			if err != nil {
				return err
			}

			calc := cost.NewCalculator()
			best := calc.EstimateBatch(model, len(needs))
			worst := calc.EstimateWorstCase(model, len(needs), models.DefaultMaxRegenerationAttempts)

			fmt.Fprintf(app.Out, "Assets: %d\n", len(needs))
			fmt.Fprintf(app.Out, "Model: %s ($%.3f per image)\n", model, best.PerImage)
			fmt.Fprintf(app.Out, "Estimated cost: $%.4f\n", best.Total)
			fmt.Fprintf(app.Out, "Worst case (all regenerations used): $%.4f\n", worst.Total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", models.DefaultModel, "image model")
	return cmd
}

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the stored Gemini API key",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key (reads it from the argument or GENASS_KEY_VALUE)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := app.GetEnv("GENASS_KEY_VALUE")
			if len(args) > 0 {
				value = args[0]
			}
			if value == "" {
				return fmt.Errorf("no key given: pass it as an argument or set GENASS_KEY_VALUE")
			}

			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.Set(value); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Stored key (%s)\n", keys.MaskKey(value))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored key, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			key, err := store.Get()
			if err != nil {
				return err
			}
			if key == "" {
				fmt.Fprintln(app.Out, "No stored key")
				return nil
			}
			fmt.Fprintln(app.Out, keys.MaskKey(key))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete the stored key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.Delete(); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Deleted stored key")
			return nil
		},
	})

	return cmd
}

func newRunsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect past generation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := ledger.NewRecorder(store).History(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(app.Out, "No recorded runs")
				return nil
			}
			for _, r := range runs {
				name := r.Project
				if name == "" {
					name = "(unnamed)"
				}
				fmt.Fprintf(app.Out, "%s  %s  %s  %d/%d ok  $%.4f\n",
					r.ID, ledger.FormatTimestamp(r.StartedAt), name, r.Successful, r.Total, r.TotalCost)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the assets of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			assets, err := ledger.NewRecorder(store).RunAssets(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, a := range assets {
				status := "ok"
				if !a.Success {
					status = "failed: " + a.Error
				} else if a.Warning != "" {
					status = "warning: " + a.Warning
				}
				fmt.Fprintf(app.Out, "[%s] %s  score=%s  $%.4f  %s\n",
					a.AssetType, a.Description, strconv.FormatFloat(a.QualityScore, 'f', 2, 64), a.Cost, status)
			}
			return nil
		},
	})

	return cmd
}

func newCostsCmd(app *App) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Show API spend recorded in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenLedger()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			var summary *ledger.CostSummary
			if days > 0 {
				now := time.Now()
				summary, err = store.GetCostByDateRange(ctx, now.AddDate(0, 0, -days), now)
			} else {
				summary, err = store.GetTotalCost(ctx)
			}
			if err != nil {
				return err
			}
			if summary.EntryCount == 0 {
				fmt.Fprintln(app.Out, "No recorded spend")
				return nil
			}

			if days > 0 {
				fmt.Fprintf(app.Out, "Spend over the last %d day(s): $%.4f (%d images across %d assets)\n",
					days, summary.TotalCost, summary.ImageCount, summary.EntryCount)
				return nil
			}

			fmt.Fprintf(app.Out, "Total spend: $%.4f (%d images across %d assets)\n",
				summary.TotalCost, summary.ImageCount, summary.EntryCount)

			byModel, err := store.GetCostByModel(ctx)
			if err != nil {
				return err
			}
			for _, ms := range byModel {
				fmt.Fprintf(app.Out, "  %s: $%.4f (%d images)\n", ms.Model, ms.TotalCost, ms.ImageCount)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "limit the summary to the last N days (0 = all time)")
	return cmd
}

func resolveAPIKey(explicit string, app *App) (string, string, error) {
	// The injectable GetEnv keeps tests hermetic.
	return keys.Resolve(explicit, app.GetEnv)
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(level).With().Timestamp().Logger()
}
