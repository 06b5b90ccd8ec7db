package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/contract"
	"github.com/driftwatch/driftwatch/internal/drift"
	"github.com/driftwatch/driftwatch/internal/inference"
	"github.com/driftwatch/driftwatch/internal/report"
	"github.com/driftwatch/driftwatch/pkg/models"
)

var (
	analyzeContract string
	analyzeTraffic  string
	analyzeUsage    string
	analyzeOutput   string
	analyzeNoFail   bool
)

// errBlockingDrift makes the command exit non-zero so CI pipelines can gate
// deployments on the analysis result.
var errBlockingDrift = errors.New("blocking drift detected")

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a one-shot analysis over captured inputs",
	Long: `Reads a declared contract, a file of sampled traffic records and
optionally a file of client usage records, runs a full analysis and writes
the report as JSON.

Exits non-zero when any finding recommends stopping the deployment, which
makes the command usable as a CI gate. Pass --no-fail to always exit zero.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeContract, "contract", "", "OpenAPI contract file (yaml or json)")
	analyzeCmd.Flags().StringVar(&analyzeTraffic, "traffic", "", "JSON file with sampled traffic records")
	analyzeCmd.Flags().StringVar(&analyzeUsage, "usage", "", "JSON file with client usage records")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "write the report to this file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeNoFail, "no-fail", false, "exit zero even when blocking drift is found")
	analyzeCmd.MarkFlagRequired("contract") //nolint:errcheck
	analyzeCmd.MarkFlagRequired("traffic")  //nolint:errcheck

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := config.BuildLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	// Contract
	contractData, err := os.ReadFile(analyzeContract)
	if err != nil {
		return fmt.Errorf("reading contract: %w", err)
	}
	declared, err := contract.Parse(contractData, contract.DetectFormat(contractData))
	if err != nil {
		return fmt.Errorf("parsing contract: %w", err)
	}

	// Traffic
	var records []models.TrafficRecord
	if err := readJSONFile(analyzeTraffic, &records); err != nil {
		return fmt.Errorf("reading traffic records: %w", err)
	}

	// A private registry keeps one-shot runs from fighting over the global
	// Prometheus registerer.
	inferencer := inference.New(inference.NewMetrics(prometheus.NewRegistry()), logger)

	malformed := 0
	for _, rec := range records {
		if err := inferencer.Observe(rec); err != nil {
			if errors.Is(err, inference.ErrMalformedRecord) {
				malformed++
				continue
			}
			return fmt.Errorf("ingesting traffic: %w", err)
		}
	}
	if malformed > 0 {
		logger.Warn("skipped malformed traffic records", zap.Int("count", malformed))
	}

	// Usage
	var usageRecords []models.ClientUsageRecord
	if analyzeUsage != "" {
		if err := readJSONFile(analyzeUsage, &usageRecords); err != nil {
			return fmt.Errorf("reading usage records: %w", err)
		}
	}

	runner := report.NewRunner(
		drift.Config{TypeConfidence: cfg.Analysis.TypeConfidence},
		cfg.Analysis.ClientCriticality,
		logger,
	)

	rep, err := runner.Run(declared, inferencer.FlushAll(), usageRecords)
	if err != nil {
		return fmt.Errorf("running analysis: %w", err)
	}

	if err := writeReport(rep, analyzeOutput); err != nil {
		return err
	}

	logger.Info("analysis complete",
		zap.String("report_id", rep.ID),
		zap.Int("endpoints", rep.Summary.EndpointsAnalyzed),
		zap.Int("issues", rep.Summary.TotalIssues),
		zap.Int("critical", rep.Summary.CriticalIssues),
		zap.Int("high", rep.Summary.HighIssues))

	if rep.HasBlockingIssues() && !analyzeNoFail {
		return errBlockingDrift
	}
	return nil
}

// readJSONFile decodes a JSON file into v.
func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeReport writes the report as indented JSON to path, or stdout when
// path is empty.
func writeReport(rep *models.AnalysisReport, path string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
