// Package main provides the CLI entry point for Carve.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/five82/carve"
	"github.com/five82/carve/internal/chunk"
	"github.com/five82/carve/internal/config"
	"github.com/five82/carve/internal/discovery"
	"github.com/five82/carve/internal/logging"
	"github.com/five82/carve/internal/processing"
	"github.com/five82/carve/internal/reporter"
	"github.com/five82/carve/internal/tq"
	"github.com/five82/carve/internal/util"
)

const (
	appName    = "carve"
	appVersion = "0.2.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     appName,
		Short:   "Carve - Video encoding tool",
		Version: appVersion,
	}
	root.SetVersionTemplate(fmt.Sprintf("%s version {{.Version}}\n", appName))
	root.AddCommand(newEncodeCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, appVersion)
		},
	})
	return root
}

// encodeArgs holds the parsed arguments for the encode command.
type encodeArgs struct {
	inputPath       string
	outputDir       string
	logDir          string
	verbose         bool
	crf             string
	preset          uint
	carvePreset     string
	disableAutocrop bool
	responsive      bool
	noLog           bool
	singlePass      bool
	resume          bool

	// Target Quality search
	targetQuality string
	qpRange       string
	metricMode    string
	metricWorkers uint
}

func newEncodeCmd() *cobra.Command {
	var ea encodeArgs
	tqDefaults := tq.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode video files to AV1 format",
		Long: fmt.Sprintf(`Encode video files to AV1 format.

Quality settings default to CRF %d,%d,%d (SD,HD,UHD) at SVT-AV1 preset %d.
Target Quality probing defaults to QP range %.0f-%.0f, metric mode %s,
and %d metric workers.`,
			config.DefaultCRFSD, config.DefaultCRFHD, config.DefaultCRFUHD, config.DefaultSVTAV1Preset,
			tqDefaults.QPMin, tqDefaults.QPMax, tqDefaults.MetricMode,
			config.DefaultMetricWorkers),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ea.inputPath == "" {
				return fmt.Errorf("input path is required (-i/--input)")
			}
			if ea.resume {
				if err := applyResumeSnapshot(cmd, &ea); err != nil {
					return err
				}
			}
			if ea.outputDir == "" {
				return fmt.Errorf("output directory is required (-o/--output)")
			}
			return executeEncode(ea)
		},
	}

	flags := cmd.Flags()

	// Required arguments
	flags.StringVarP(&ea.inputPath, "input", "i", "", "Input video file or directory")
	flags.StringVarP(&ea.outputDir, "output", "o", "", "Output directory (or filename if input is a single file)")

	// Optional arguments
	flags.StringVarP(&ea.logDir, "log-dir", "l", "", "Log directory (defaults to ~/.local/state/carve/logs)")
	flags.BoolVarP(&ea.verbose, "verbose", "v", false, "Enable verbose output for troubleshooting")

	// Quality settings
	flags.StringVar(&ea.crf, "crf", "", "CRF quality (0-63). Single value or SD,HD,UHD triple")
	flags.UintVar(&ea.preset, "preset", 0, "SVT-AV1 encoder preset (0-13). Lower=slower/better")
	flags.StringVar(&ea.carvePreset, "carve-preset", "", "Apply grouped Carve defaults (grain, clean, quick)")

	// Processing options
	flags.BoolVar(&ea.disableAutocrop, "disable-autocrop", false, "Disable automatic black bar crop detection")
	flags.BoolVar(&ea.responsive, "responsive", false, "Reserve CPU threads for improved system responsiveness")
	flags.BoolVar(&ea.singlePass, "single-pass", false, "Encode whole files through ffmpeg instead of the chunked pipeline")
	flags.BoolVar(&ea.resume, "resume", false, "Resume a prior interrupted run, skipping already-completed chunks")

	// Target Quality settings
	flags.StringVar(&ea.targetQuality, "target-quality", "", `Enable Target Quality search over the given range (e.g. "70-75") instead of fixed-CRF chunk encoding`)
	flags.StringVar(&ea.qpRange, "qp-range", "", `CRF search bounds for TQ probing (e.g. "8-48")`)
	flags.StringVar(&ea.metricMode, "metric-mode", "", "Frame-score aggregation for TQ probes (mean or pN)")
	flags.UintVar(&ea.metricWorkers, "metric-workers", 0, "Parallel TQ metric-scoring workers")

	// Output options
	flags.BoolVar(&ea.noLog, "no-log", false, "Disable Carve log file creation")

	return cmd
}

// applyResumeSnapshot reconstructs the argument vector a prior run left in
// its work directory's cmd.txt, re-parses it into a fresh flag set, and
// copies each restored value back onto cmd for every flag the user did NOT
// explicitly set on this invocation. New flags therefore override snapshot
// values (so --resume --verbose enables verbose logging on a resumed run),
// while everything else comes back exactly as the original run had it.
func applyResumeSnapshot(cmd *cobra.Command, ea *encodeArgs) error {
	inputPath, err := filepath.Abs(ea.inputPath)
	if err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}
	workDir := chunk.GetWorkDirPath(inputPath, "")

	snapshot, err := chunk.ReadCmdSnapshot(workDir)
	if err != nil {
		return fmt.Errorf("cannot resume: no argument snapshot in %s: %w", workDir, err)
	}

	tokens := snapshot
	if len(tokens) > 0 && tokens[0] == "encode" {
		tokens = tokens[1:]
	}
	filtered := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "--resume" {
			filtered = append(filtered, t)
		}
	}

	prior := newEncodeCmd()
	if err := prior.Flags().Parse(filtered); err != nil {
		return fmt.Errorf("cannot resume: malformed argument snapshot: %w", err)
	}

	set := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { set[f.Name] = true })

	var restoreErr error
	prior.Flags().Visit(func(f *pflag.Flag) {
		if set[f.Name] {
			return
		}
		if err := cmd.Flags().Set(f.Name, f.Value.String()); err != nil && restoreErr == nil {
			restoreErr = err
		}
	})
	if restoreErr != nil {
		return fmt.Errorf("cannot resume: %w", restoreErr)
	}

	ea.resume = true
	return nil
}

func executeEncode(ea encodeArgs) error {
	// Resolve input path
	inputPath, err := filepath.Abs(ea.inputPath)
	if err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}

	// Check if input exists
	inputInfo, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("input path does not exist: %s", inputPath)
	}

	// Resolve output path
	outputDir, targetFilename, err := resolveOutputPath(inputPath, ea.outputDir, inputInfo.IsDir())
	if err != nil {
		return err
	}

	// Ensure output directory exists
	if err := util.EnsureDirectory(outputDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	util.CheckDiskSpace(outputDir, func(format string, args ...any) {
		fmt.Printf("Warning: "+format+"\n", args...)
	})

	// Resolve log directory
	logDir := ea.logDir
	if logDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		logDir = filepath.Join(homeDir, ".local", "state", "carve", "logs")
	}

	// Setup file logging
	logger, err := logging.Setup(logDir, ea.verbose, ea.noLog)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
	}

	// Discover files to process
	var filesToProcess []string
	if inputInfo.IsDir() {
		filesToProcess, err = discovery.FindVideoFiles(inputPath)
		if err != nil {
			return fmt.Errorf("failed to discover video files: %w", err)
		}
		if len(filesToProcess) == 0 {
			return fmt.Errorf("no video files found in %s", inputPath)
		}
		if logger != nil {
			logger.Info("Discovered %d video files in %s", len(filesToProcess), inputPath)
			for i, f := range filesToProcess {
				logger.Debug("  %d. %s", i+1, f)
			}
		}
	} else {
		filesToProcess = []string{inputPath}
		if logger != nil {
			logger.Info("Processing single file: %s", inputPath)
		}
	}

	// Build configuration
	cfg := config.NewConfig(inputPath, outputDir, logDir)

	// Apply carve preset first (if specified)
	if ea.carvePreset != "" {
		preset, err := config.ParsePreset(ea.carvePreset)
		if err != nil {
			return err
		}
		cfg.ApplyPreset(preset)
	}

	// Override with explicit CLI arguments
	if ea.crf != "" {
		sd, hd, uhd, err := carve.ParseCRF(ea.crf)
		if err != nil {
			return fmt.Errorf("invalid --crf value: %w", err)
		}
		cfg.CRFSD = sd
		cfg.CRFHD = hd
		cfg.CRFUHD = uhd
	}
	if ea.preset != 0 {
		cfg.SVTAV1Preset = uint8(ea.preset)
	}
	if ea.disableAutocrop {
		cfg.CropMode = "none"
	}
	cfg.ResponsiveEncoding = ea.responsive
	cfg.Verbose = ea.verbose
	cfg.SinglePass = ea.singlePass
	cfg.Resume = ea.resume
	cfg.CmdLine = os.Args[1:]

	if ea.targetQuality != "" {
		cfg.TargetQuality = ea.targetQuality
	}
	if ea.qpRange != "" {
		cfg.QPRange = ea.qpRange
	}
	if ea.metricMode != "" {
		cfg.MetricMode = ea.metricMode
	}
	if ea.metricWorkers != 0 {
		cfg.MetricWorkers = int(ea.metricWorkers)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.ChunkedMode() {
		if err := processing.CheckChunkedDependencies(); err != nil {
			return err
		}
	}

	// Log configuration
	if logger != nil {
		logger.Info("Output directory: %s", outputDir)
		logger.Info("CRF settings: SD=%d, HD=%d, UHD=%d", cfg.CRFSD, cfg.CRFHD, cfg.CRFUHD)
		logger.Info("SVT-AV1 preset: %d", cfg.SVTAV1Preset)
		logger.Info("Crop mode: %s", cfg.CropMode)
		logger.Info("Responsive encoding: %v", cfg.ResponsiveEncoding)
		if cfg.CarvePreset != nil {
			logger.Info("Carve preset: %s", *cfg.CarvePreset)
		}
	}

	// Create reporter
	rep := reporter.NewTerminalReporter()

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Run encoding
	_, err = processing.ProcessVideos(ctx, cfg, filesToProcess, targetFilename, rep)
	return err
}

// resolveOutputPath determines the output directory and optional target filename.
// If input is a file and output has a video extension, treat output as target filename.
func resolveOutputPath(_, outputPath string, isInputDir bool) (outputDir, targetFilename string, err error) {
	outputPath, err = filepath.Abs(outputPath)
	if err != nil {
		return "", "", fmt.Errorf("invalid output path: %w", err)
	}

	// If input is a directory, output must be a directory
	if isInputDir {
		return outputPath, "", nil
	}

	// Check if output path looks like a file (has video extension)
	ext := filepath.Ext(outputPath)
	videoExtensions := map[string]bool{
		".mkv": true, ".mp4": true, ".webm": true,
		".avi": true, ".mov": true, ".m4v": true,
	}

	if videoExtensions[ext] {
		// Output is a target filename
		return filepath.Dir(outputPath), filepath.Base(outputPath), nil
	}

	// Output is a directory
	return outputPath, "", nil
}
