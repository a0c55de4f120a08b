package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
	"github.com/augmentac/ff2api-postback/pkg/workflow"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "ff2api_config.json", "Path to configuration file")
	inputPath := flag.String("input", "", "Path to input CSV or JSON file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	help := flag.Bool("help", false, "Display help information")
	flag.Parse()

	// Display help if requested
	if *help {
		displayUsage()
		os.Exit(0)
	}

	if *inputPath == "" {
		fmt.Println("Error: -input is required")
		displayUsage()
		os.Exit(1)
	}

	// Create logger
	log := logger.New()
	log.SetLevel(*logLevel)

	// Load configuration
	log.Info("Loading configuration...")
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Read the input rows
	rows, err := workflow.ReadInputFile(*inputPath)
	if err != nil {
		log.Fatalf("Failed to read input file: %v", err)
	}
	log.Infof("Read %d rows from %s", len(rows), *inputPath)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Info("Received interrupt signal. Shutting down...")
		cancel()
		// Give some time for graceful shutdown
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()

	// Create the pipeline
	processor := workflow.NewProcessor(cfg, log)
	processor.OnProgress(func(step workflow.Step) {
		if step.Message != "" {
			log.Infof("[%s] %s: %s", step.Name, step.Status, step.Message)
		} else {
			log.Infof("[%s] %s", step.Name, step.Status)
		}
	})

	// Run the workflow
	startTime := time.Now()
	log.Infof("Starting %s workflow", cfg.Workflow.Type)

	summary, _, err := processor.Run(ctx, rows)
	if err != nil {
		// Check if the error is due to context cancellation (Ctrl+C)
		if err == context.Canceled {
			log.Info("Process stopped due to user interrupt (Ctrl+C)")
		} else {
			log.Fatalf("Error during workflow run: %v", err)
		}
	}

	// Log completion
	duration := time.Since(startTime)
	log.Infof("Run %s completed in %.2f seconds: %d rows, %d submitted, %d load IDs resolved, %d PRO numbers",
		summary.RunID, duration.Seconds(), summary.TotalRows, summary.Submitted,
		summary.Mapping.Success, summary.ProResolved)
}

// displayUsage displays usage information
func displayUsage() {
	fmt.Println("\nFF2API Freight Data Pipeline")
	fmt.Println("============================")
	fmt.Println("Usage: ff2api [options]")
	fmt.Println("Options:")
	fmt.Println("  -config string")
	fmt.Println("        Path to configuration file (default \"ff2api_config.json\")")
	fmt.Println("  -input string")
	fmt.Println("        Path to input CSV or JSON file (required)")
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: debug, info, warn, error (default \"info\")")
	fmt.Println("  -help")
	fmt.Println("        Display this help information")
	fmt.Println("Examples:")
	fmt.Println("  ff2api -input=loads.csv")
	fmt.Println("  ff2api -config=custom_config.json -input=loads.json -log-level=debug")
}
