package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/comigor/nl2sql-go/internal/agent"
	"github.com/comigor/nl2sql-go/internal/conversation"
	"github.com/comigor/nl2sql-go/internal/database"
	"github.com/comigor/nl2sql-go/internal/logger"
	"github.com/comigor/nl2sql-go/internal/mcpserver"
	"github.com/comigor/nl2sql-go/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve questions over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := &http.Server{
			Addr:              net.JoinHostPort(a.cfg.Server.Host, a.cfg.Server.Port),
			Handler:           server.NewRouter(server.NewHandler(a.svc, a.db)),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.L.Info("starting server", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("failed to start server: %w", err)
		case <-ctx.Done():
		}

		logger.L.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("http server shutdown error", "error", err)
		}
		return nil
	},
}

var showTrace bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and exit",
	Long:  "Answer one question and exit. Without arguments the question is read from stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		if question == "" {
			b, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
			if err != nil {
				return fmt.Errorf("read question: %w", err)
			}
			question = string(b)
		}

		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.Process(cmd.Context(), question)
		if err != nil {
			return err
		}
		if showTrace {
			printTrace(cmd.ErrOrStderr(), res)
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Answer)
		return nil
	},
}

func printTrace(w io.Writer, res *agent.Result) {
	fmt.Fprintf(w, "== tools: %s\n", strings.Join(res.Tools, ", "))
	for i, step := range res.Steps {
		fmt.Fprintf(w, "== step %d: %s\n", i+1, step.State)
		for _, m := range step.Appended {
			switch {
			case m.Role == conversation.RoleTool:
				fmt.Fprintf(w, "   [%s result] %s\n", m.Result.Name, m.Content)
			case m.HasToolCalls():
				for _, c := range m.ToolCalls {
					fmt.Fprintf(w, "   [%s] %s\n", c.Name, c.ArgsJSON())
				}
			default:
				fmt.Fprintf(w, "   [%s] %s\n", m.Role, m.Content)
			}
		}
	}
	fmt.Fprintf(w, "== outcome: %s\n", res.Outcome)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the agent as an MCP tool over stdio",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// stdout carries the protocol
		logger.SetOutput(os.Stderr)

		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		return mcpserver.New(a.svc, a.db).ServeStdio(version)
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of the configured database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		tables, err := db.ListTables(cmd.Context())
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&showTrace, "trace", false, "Print every step to stderr")
}
