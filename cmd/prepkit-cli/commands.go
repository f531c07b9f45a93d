package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/joho/godotenv"
	"github.com/paveg/prepkit/internal/config"
	"github.com/paveg/prepkit/internal/dataframe"
	prepio "github.com/paveg/prepkit/internal/io"
	"github.com/paveg/prepkit/internal/logging"
	"github.com/paveg/prepkit/internal/preprocess"
	"github.com/paveg/prepkit/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	envFile    string
	configPath string
	logLevel   string
	logFormat  string
}

// datasetOptions name the paired input files.
type datasetOptions struct {
	train string
	test  string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "prepkit-cli",
		Short:         "Prepare train and test datasets for model training",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(opts.envFile)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading PREPKIT_* variables")
	flags.StringVar(&opts.configPath, "config", "", "JSON or YAML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level, overrides the configuration")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (text or json), overrides the configuration")

	root.AddCommand(
		newPrepareCmd(opts),
		newExploreCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadEnvFile loads path into the environment; a missing file is fine.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// resolve builds the effective configuration and logger: file, then
// environment, then flags.
func (o *globalOptions) resolve(stderr io.Writer) (config.Config, *logrus.Logger, error) {
	cfg := config.NewConfig()
	if o.configPath != "" {
		loaded, err := config.LoadFromFile(o.configPath)
		if err != nil {
			return config.Config{}, nil, err
		}
		cfg = loaded
	}
	cfg = config.ApplyEnv(cfg)
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func (d *datasetOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.train, "train", "", "train dataset (.csv or .parquet)")
	cmd.Flags().StringVar(&d.test, "test", "", "test dataset (.csv or .parquet)")
	_ = cmd.MarkFlagRequired("train")
	_ = cmd.MarkFlagRequired("test")
}

// open reads both datasets and builds a preprocessor over them.
func (d *datasetOptions) open(cmd *cobra.Command, opts *globalOptions) (*preprocess.Preprocessor, error) {
	cfg, logger, err := opts.resolve(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	mem := memory.NewGoAllocator()
	train, err := prepio.ReadFile(ctx, d.train, mem)
	if err != nil {
		return nil, err
	}
	defer train.Release()
	test, err := prepio.ReadFile(ctx, d.test, mem)
	if err != nil {
		return nil, err
	}
	defer test.Release()

	logger.WithFields(logrus.Fields{
		"train":      d.train,
		"test":       d.test,
		"train_rows": train.Len(),
		"test_rows":  test.Len(),
	}).Debug("datasets loaded")

	return preprocess.New(train, test,
		preprocess.WithConfig(cfg),
		preprocess.WithLogger(logger),
		preprocess.WithAllocator(mem),
	)
}

func newPrepareCmd(opts *globalOptions) *cobra.Command {
	var (
		data    datasetOptions
		target  string
		outDir  string
		format  string
		toStrip string
	)
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Encode both datasets into label and features columns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := outputFormat(format, data.train)
			if err != nil {
				return err
			}
			p, err := data.open(cmd, opts)
			if err != nil {
				return err
			}
			defer p.Release()

			report, err := p.PrepareToModel(cmd.Context(), target, toStrip)
			if err != nil {
				return err
			}
			if err := writeEncoded(cmd, p, outDir, outFormat); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	data.register(cmd)
	cmd.Flags().StringVar(&target, "target", "", "target column")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for the encoded datasets")
	cmd.Flags().StringVar(&format, "format", "", "output format (csv or parquet), defaults to the train file's")
	cmd.Flags().StringVar(&toStrip, "strip", "", "characters trimmed from factor values in addition to spaces")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func outputFormat(name, trainPath string) (prepio.Format, error) {
	if name != "" {
		return prepio.ParseFormat(name)
	}
	return prepio.FormatOf(trainPath)
}

func writeEncoded(cmd *cobra.Command, p *preprocess.Preprocessor, outDir string, format prepio.Format) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", outDir, err)
	}

	outputs := []struct {
		name string
		get  func() (*dataframe.DataFrame, error)
	}{
		{"train_encoded", p.TrainEncoded},
		{"test_encoded", p.TestEncoded},
	}
	for _, out := range outputs {
		df, err := out.get()
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, out.name+"."+string(format))
		err = prepio.WriteFile(cmd.Context(), path, format, df)
		df.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

func newExploreCmd(opts *globalOptions) *cobra.Command {
	var (
		data   datasetOptions
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Compare factor values and numeric statistics of both datasets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := data.open(cmd, opts)
			if err != nil {
				return err
			}
			defer p.Release()

			factors, err := p.ExploreFactors(cmd.Context())
			if err != nil {
				return err
			}
			numeric, err := p.ExploreNumericColumns(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if err := p.PrintExploration(w, factors); err != nil {
				return err
			}
			if err := p.PrintExploration(w, numeric); err != nil {
				return err
			}

			if outDir == "" {
				return nil
			}
			if err := factors.WriteCSV(filepath.Join(outDir, "factors")); err != nil {
				return err
			}
			return numeric.WriteCSV(filepath.Join(outDir, "numeric"))
		},
	}
	data.register(cmd)
	cmd.Flags().StringVar(&outDir, "out-dir", "", "also write every table as CSV under this directory")
	return cmd
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Info()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), info.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
