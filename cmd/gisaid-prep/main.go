// Package main provides the batch entry point for the GISAID submission
// preparation pipeline. It reads Genome Detective processed sample folders,
// evaluates quality thresholds and writes submission-ready FASTA files plus
// summary reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/gisaid-prep-pipeline/internal/config"
	"github.com/gisaid-prep-pipeline/internal/domain"
	"github.com/gisaid-prep-pipeline/internal/intake"
	"github.com/gisaid-prep-pipeline/internal/service"
	"github.com/gisaid-prep-pipeline/internal/store"
)

func main() {
	var (
		virusID     = flag.String("virus", "", "virus profile to evaluate (influenza-a, influenza-b, hiv, rsv)")
		minDepth    = flag.Float64("min-depth", 0, "minimum depth of coverage (overrides config)")
		minCoverage = flag.Float64("min-cov", 0, "minimum coverage percentage (overrides config)")
		outputDir   = flag.String("output", "", "output directory (overrides config)")
		workers     = flag.Int("workers", 0, "concurrent sample workers (overrides config)")
		lab         = flag.String("lab", "", "default submitting lab name (overrides config)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <gd_processed folder>\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	inputDir := flag.Arg(0)

	manager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := manager.GetConfig()

	// Flags override file/env configuration.
	if *minDepth > 0 {
		cfg.Thresholds.MinDepth = *minDepth
	}
	if *minCoverage > 0 {
		cfg.Thresholds.MinCoverage = *minCoverage
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *lab != "" {
		cfg.Lab.Default = *lab
	}

	if err := manager.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)

	registry := domain.DefaultRegistry()
	if *virusID == "" {
		log.Fatalf("The -virus flag is required; registered viruses: %s", strings.Join(registry.IDs(), ", "))
	}
	profile, err := registry.ProfileFor(*virusID)
	if err != nil {
		log.Fatalf("Failed to resolve virus profile: %v", err)
	}
	profile = profile.WithThresholds(cfg.Thresholds.MinDepth, cfg.Thresholds.MinCoverage)
	if tpl, ok := manager.HeaderOverride(profile.ID); ok {
		profile = profile.WithHeaderTemplate(tpl)
	}

	labs, err := manager.LabDirectory()
	if err != nil {
		log.Fatalf("Invalid lab assignments: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("Shutdown signal received, cancelling run")
		cancel()
	}()

	if err := run(ctx, logger, cfg, profile, labs, inputDir); err != nil {
		logger.WithError(err).Fatal("Pipeline failed")
	}
	logger.Info("Pipeline completed successfully")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func run(ctx context.Context, logger *logrus.Logger, cfg *config.Config, profile *domain.VirusProfile, labs *domain.LabDirectory, inputDir string) error {
	logger.WithFields(logrus.Fields{
		"virus":        profile.ID,
		"min_depth":    cfg.Thresholds.MinDepth,
		"min_coverage": cfg.Thresholds.MinCoverage,
		"input":        inputDir,
	}).Info("Starting analysis")

	folders, err := intake.DiscoverSamples(inputDir, logger)
	if err != nil {
		return err
	}
	if len(folders) == 0 {
		return fmt.Errorf("no assignment files found under %s", inputDir)
	}
	samples := intake.LoadSamples(folders, cfg.Pipeline.CacheSize, logger)

	pipeline := service.NewPipeline(
		logger,
		service.NewAssignmentParser(logger),
		service.NewQualityEvaluator(logger),
		service.NewGenomeAssembler(logger, labs),
		cfg.Pipeline.Workers,
	)

	result, err := pipeline.Run(ctx, profile, samples)
	if err != nil {
		return err
	}
	if !virusDetected(result.Report) {
		return fmt.Errorf("virus %s was not detected in any samples", profile.ID)
	}

	writer := intake.NewOutputWriter(cfg.Output.Dir, logger)
	if err := writer.WriteSegments(profile.ID, result.Segments); err != nil {
		return err
	}
	if err := writer.WriteGenomes(result.Genomes); err != nil {
		return err
	}
	if cfg.Output.Combined {
		if _, err := writer.WriteCombined(result.Genomes); err != nil {
			return err
		}
	}
	if err := writer.WriteReports(result.Report); err != nil {
		return err
	}

	if cfg.Archive.Enabled {
		if err := archiveRun(ctx, cfg, result); err != nil {
			// Archive failures never fail the run.
			logger.WithError(err).Error("Failed to archive run")
		}
	}

	logger.WithFields(logrus.Fields{
		"samples":  len(result.Report.Submission),
		"eligible": result.Report.EligibleCount(),
		"controls": result.Report.ControlCount(),
	}).Info("Submission summary")

	return nil
}

// virusDetected reports whether any sample carried a matching strain.
func virusDetected(report *service.BatchReport) bool {
	for _, row := range report.Submission {
		if row.FailureReason != domain.ReasonNoMatchingStrains {
			return true
		}
	}
	return false
}

func archiveRun(ctx context.Context, cfg *config.Config, result *service.RunResult) error {
	runStore, err := store.NewRunStore(cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer runStore.Close()

	run := store.RunRecord{
		ID:          result.RunID,
		Virus:       result.Virus,
		MinDepth:    cfg.Thresholds.MinDepth,
		MinCoverage: cfg.Thresholds.MinCoverage,
		Samples:     len(result.Report.Submission),
		Eligible:    result.Report.EligibleCount(),
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
	}
	samples := make([]store.SampleRecord, 0, len(result.Report.Submission))
	for _, row := range result.Report.Submission {
		samples = append(samples, store.SampleRecord{
			RunID:            result.RunID,
			LimsID:           row.LimsID,
			VirusType:        row.VirusType,
			Eligible:         row.Eligible,
			EligibleSegments: row.EligibleSegments,
			FailureReason:    row.FailureReason.String(),
		})
	}
	return runStore.RecordRun(ctx, run, samples)
}
