package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/flarewatch/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Check if YAML file exists
	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	// Check if SQLite file already exists
	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
	}

	yamlProvider := config.NewYAMLProvider(*yamlFile)
	configData, err := yamlProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate a defaulted copy so the stored config keeps its unset fields unset
	check := *configData
	check.ApplyDefaults()
	if err := check.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration is invalid: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		printConfigSummary(&check)
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	// Remove existing SQLite file if force is specified
	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	if err := writeSQLite(*sqliteFile, configData); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration into SQLite: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

func writeSQLite(path string, configData *config.ConfigData) error {
	provider, err := config.NewSQLiteProvider(path)
	if err != nil {
		return err
	}
	defer provider.Close()

	if err := provider.InitSchema(); err != nil {
		return err
	}
	return provider.SaveConfig(configData)
}

func printConfigSummary(c *config.ConfigData) {
	fmt.Println("Configuration summary (defaults applied):")
	fmt.Printf("  Detection: bin width %d, kernel width %d, rise ratio %.3f\n",
		c.Detection.BinWidth, c.Detection.KernelWidth, c.Detection.RiseRatio)
	fmt.Printf("             drop threshold %.1f, background ratio %.2f, decay offset %.2f\n",
		*c.Detection.DropThreshold, c.Detection.BackgroundRatio, *c.Detection.DecayOffset)
	fmt.Printf("  Storage:   %s (%s)\n", c.Storage.Driver, c.Storage.DSN)
	fmt.Printf("  Server:    %s:%d, max upload %d MB, CORS %v\n",
		c.Server.ListenAddr, c.Server.Port, c.Server.MaxUploadMB, c.Server.EnableCORS)
}
