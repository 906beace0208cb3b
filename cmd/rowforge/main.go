package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/rowforge/rowforge/internal/config"
	"github.com/rowforge/rowforge/internal/coordinator"
	"github.com/rowforge/rowforge/internal/logger"
	"github.com/rowforge/rowforge/internal/schema"
	"github.com/rowforge/rowforge/internal/shard"
)

// Version is set at build time
var Version = "dev"

func main() {
	// The shard worker subcommand runs before config load; it gets its full
	// job description over stdin from the coordinator.
	if len(os.Args) > 1 && os.Args[1] == "shard" {
		runShardSubcommand(os.Args[2:])
		return
	}

	variant := "generate"
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "generate", "stream", "xlsx":
			variant = args[0]
			args = args[1:]
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", Version).Str("variant", variant).Msg("Starting rowforge")

	rawSpecs, err := loadRawSpecs(cfg.Generator.SchemaPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Generator.SchemaPath).Msg("Schema load failed")
		os.Exit(1)
	}
	// Validate before any generation or file creation; duplicate ordinals
	// are fatal here.
	if _, err := schema.Load(rawSpecs); err != nil {
		log.Error().Err(err).Msg("Schema validation failed")
		os.Exit(1)
	}

	totalRecords := parseRecordCount(args, cfg.Generator.DefaultRecords)

	c := coordinator.New(cfg, logger.Get("coordinator"))
	ctx := context.Background()

	var code int
	switch variant {
	case "stream":
		code = c.RunStream(ctx, rawSpecs, totalRecords)
	case "xlsx":
		code = c.RunSheet(rawSpecs, totalRecords)
	default:
		code = c.Run(ctx, rawSpecs, totalRecords)
	}
	os.Exit(code)
}

// loadRawSpecs reads the schema file without parsing it, so the raw column
// definitions can be forwarded verbatim to shard workers.
func loadRawSpecs(path string) ([]schema.RawSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var raw []schema.RawSpec
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed schema JSON: %w", err)
	}
	return raw, nil
}

// parseRecordCount reads the positional record count. An absent, non-numeric
// or non-positive argument falls back to the configured default rather than
// failing the run.
func parseRecordCount(args []string, fallback int) int {
	if len(args) == 0 {
		return fallback
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		log.Warn().Str("arg", args[0]).Int("default", fallback).Msg("Invalid record count, using default")
		return fallback
	}
	return n
}

// runShardSubcommand handles the "shard" subcommand. The coordinator spawns
// this binary once per shard; the job config arrives on stdin and the result
// leaves on stdout, so worker logs are confined to stderr.
func runShardSubcommand(args []string) {
	fs := flag.NewFlagSet("shard", flag.ExitOnError)
	jobJSON := fs.String("job", "", "Job configuration as JSON")
	jobStdin := fs.Bool("job-stdin", false, "Read job configuration from stdin")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to parse flags: %v\n", err)
		os.Exit(1)
	}

	var configData []byte
	var err error

	if *jobStdin {
		configData, err = io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to read job from stdin: %v\n", err)
			os.Exit(1)
		}
	} else if *jobJSON != "" {
		configData = []byte(*jobJSON)
	} else {
		fmt.Fprintln(os.Stderr, "error: --job-stdin or --job flag required")
		os.Exit(1)
	}

	var job shard.JobConfig
	if err := json.Unmarshal(configData, &job); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid job config: %v\n", err)
		os.Exit(1)
	}

	result, err := shard.RunJob(context.Background(), &job)
	if err != nil && result == nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Emit the completion signal for the coordinator to parse
	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to encode result: %v\n", err)
		os.Exit(1)
	}
	if !result.Success {
		os.Exit(1)
	}
}
