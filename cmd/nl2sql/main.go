package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/nl2sql-go/internal/agent"
	"github.com/comigor/nl2sql-go/internal/config"
	"github.com/comigor/nl2sql-go/internal/database"
	"github.com/comigor/nl2sql-go/internal/llm"
	"github.com/comigor/nl2sql-go/internal/logger"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nl2sql",
	Short: "Answer natural-language questions from a SQL database",
	Long: `nl2sql turns questions into read-only SQL, runs them and answers from the results.

It lists the tables, asks the model which schemas it needs, then drafts,
reviews and runs queries until the model can answer.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			return os.Setenv("CONFIG_PATH", configPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./config.yaml or $CONFIG_PATH)")
	rootCmd.AddCommand(serveCmd, askCmd, mcpCmd, tablesCmd, fetchSampleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.L.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app is everything a command needs to answer questions.
type app struct {
	cfg   *config.Config
	db    *database.SQLDatabase
	agent *agent.Agent
	svc   *agent.Service
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		logger.L.Warn("failed to close database", "error", err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	gen, err := llm.New(cfg.LLM)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := agent.New(gen, db, cfg.Agent, agent.WithGenerationTimeout(cfg.LLM.Timeout))
	logger.L.Info("agent ready",
		"dialect", db.Dialect(),
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"max_steps", cfg.Agent.MaxSteps,
		"max_sessions", cfg.Agent.MaxSessions,
	)
	return &app{cfg: cfg, db: db, agent: a, svc: agent.NewService(a, cfg.Agent.MaxSessions)}, nil
}
