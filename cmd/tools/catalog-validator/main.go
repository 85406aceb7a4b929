// cmd/tools/catalog-validator/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"planscape-scenarios/internal/common/config"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/common/planscape"
	"planscape-scenarios/internal/models"
	"planscape-scenarios/pkg/catalogschema"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check-paths", flag.ExitOnError)
	snapshotCmd := flag.NewFlagSet("snapshot", flag.ExitOnError)

	// Validate command flags
	kind := validateCmd.String("kind", string(catalogschema.KindTreatmentGoals), "Catalog kind (treatment-goals, conditions)")
	path := validateCmd.String("path", "", "Path to the catalog file")

	// Check-paths command flags
	goalsPath := checkCmd.String("goals", "", "Path to the treatment-goal catalog")
	conditionsPath := checkCmd.String("conditions", "", "Path to the conditions catalog")

	// Snapshot command flags
	configPath := snapshotCmd.String("config", "", "Path to a config file (default: configs/config.yaml)")
	outDir := snapshotCmd.String("out", "catalogs", "Directory to write catalog files into")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if *path == "" {
			fmt.Println("Error: path is required for validate.")
			validateCmd.Usage()
			os.Exit(1)
		}
		if err := validateFile(catalogschema.Kind(*kind), *path); err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Catalog validation passed.")

	case "check-paths":
		checkCmd.Parse(os.Args[2:])
		if *goalsPath == "" || *conditionsPath == "" {
			fmt.Println("Error: goals and conditions are required for check-paths.")
			checkCmd.Usage()
			os.Exit(1)
		}
		missing, err := checkPaths(*goalsPath, *conditionsPath)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if len(missing) > 0 {
			for _, m := range missing {
				fmt.Printf("  unresolved metric: %s\n", m)
			}
			os.Exit(1)
		}
		fmt.Println("All metric paths resolve.")

	case "snapshot":
		snapshotCmd.Parse(os.Args[2:])
		if err := snapshot(*configPath, *outDir); err != nil {
			fmt.Printf("Snapshot failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Catalogs written to %s\n", *outDir)

	case "help":
		fallthrough
	default:
		help()
	}
}

func validateFile(kind catalogschema.Kind, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	result, err := catalogschema.Validate(kind, data)
	if err != nil {
		return err
	}
	for _, msg := range result.GetErrorMessages() {
		fmt.Printf("  %s\n", msg)
	}
	return result.Err()
}

// checkPaths reports every question metric whose path is missing from the
// conditions catalog.
func checkPaths(goalsPath, conditionsPath string) ([]string, error) {
	goals, err := catalogschema.LoadTreatmentGoals(goalsPath)
	if err != nil {
		return nil, err
	}
	conditions, err := catalogschema.LoadConditions(conditionsPath)
	if err != nil {
		return nil, err
	}
	return unresolved(goals, conditions), nil
}

func unresolved(goals []models.TreatmentGoalConfig, conditions *models.ConditionsConfig) []string {
	var missing []string
	for _, goal := range goals {
		for _, q := range goal.Questions {
			for _, fp := range q.ScenarioOutputFieldsPaths {
				if _, ok := conditions.LookupMetric(fp.Path); !ok {
					missing = append(missing, fmt.Sprintf("%s / %s: %s %v", goal.CategoryName, q.ShortQuestionText, fp.Metric, fp.Path))
				}
			}
		}
	}
	return missing
}

// snapshot downloads both catalogs from the API and writes them, validated, to dir.
func snapshot(configPath, dir string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := planscape.NewClient(cfg.Planscape, logger.NewStructured(cfg.Logging.Level, "console", "stderr"))
	goals, err := client.TreatmentGoals(ctx)
	if err != nil {
		return err
	}
	conditions, err := client.ConditionsConfig(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := []struct {
		kind  catalogschema.Kind
		name  string
		value interface{}
	}{
		{catalogschema.KindTreatmentGoals, "treatment_goals.json", goals},
		{catalogschema.KindConditions, "conditions.json", conditions},
	}
	for _, f := range files {
		data, err := json.MarshalIndent(f.value, "", "  ")
		if err != nil {
			return err
		}
		result, err := catalogschema.Validate(f.kind, data)
		if err != nil {
			return err
		}
		if err := result.Err(); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func help() {
	fmt.Println("Usage: catalog-validator <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  validate     Validate a catalog file against its JSON schema")
	fmt.Println("  check-paths  Verify every question metric resolves in the conditions catalog")
	fmt.Println("  snapshot     Download both catalogs from the Planscape API")
	fmt.Println("  help         Show this help message")
}
