package cmd

import (
	"fmt"
	"github.com/cottand/tyflow/cfg"
	"github.com/cottand/tyflow/internal/log"
	"github.com/cottand/tyflow/report"
	"github.com/cottand/tyflow/tyflow"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
	"path/filepath"
)

var CheckCmd = &cobra.Command{
	Use:          "check FILE|./folder...",
	Short:        "Narrow and check the exhaustiveness of every unit in YAML fixtures",
	RunE:         runCheck,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

// ErrFindings is returned by the check command when --fail-on-findings is
// set and any unit has findings
var ErrFindings = errors.New("findings reported")

var configFile *string

var logger = log.DefaultLogger.With("section", "cmd")

func init() {
	configFile = CheckCmd.Flags().StringP("config", "c", "", "YAML config file")
	CheckCmd.Flags().IntP("log-level", "l", int(slog.LevelError), "log level")
	CheckCmd.Flags().IntP("parallelism", "p", 0, "units to check at once, 0 for one per CPU")
	CheckCmd.Flags().Int("fuel", 0, "node visits allowed per unit, 0 for the default")
	CheckCmd.Flags().Bool("fail-on-findings", false, "exit with an error if any unit has findings")
	CheckCmd.Flags().BoolP("types", "t", false, "print the narrowed types at every node")
}

func runCheck(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd.Flags(), *configFile)
	if err != nil {
		return err
	}
	log.SetLevel(config.LogLevel)

	files, err := fixtureFiles(args)
	if err != nil {
		return err
	}
	var units []*cfg.Unit
	for _, file := range files {
		loaded, err := loadFile(file)
		if err != nil {
			return err
		}
		logger.Debug("loaded fixture", "file", file, "units", len(loaded))
		units = append(units, loaded...)
	}

	results, err := tyflow.AnalyzeUnits(cmd.Context(), units, config.analysisOptions())
	if err != nil {
		return fmt.Errorf("could not analyse units: %w", err)
	}
	if err := report.Render(cmd.OutOrStdout(), results, config.reportOptions()); err != nil {
		return err
	}
	if config.FailOnFindings && tyflow.HasFindings(results) {
		return ErrFindings
	}
	return nil
}

// fixtureFiles expands folders in targets to the .yaml and .yml files they
// contain
func fixtureFiles(targets []string) ([]string, error) {
	var files []string
	for _, target := range targets {
		stat, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("could not stat target: %w", err)
		}
		if !stat.IsDir() {
			files = append(files, target)
			continue
		}
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(target, pattern))
			if err != nil {
				return nil, err
			}
			files = append(files, matches...)
		}
	}
	return files, nil
}

func loadFile(path string) ([]*cfg.Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	units, err := cfg.LoadUnits(f)
	if err != nil {
		return nil, fmt.Errorf("could not load %s: %w", path, err)
	}
	return units, nil
}
