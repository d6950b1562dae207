package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/comigor/nl2sql-go/internal/logger"
)

const chinookURL = "https://storage.googleapis.com/benchmarks-artifacts/chinook/Chinook.db"

var (
	fetchOut   string
	fetchForce bool
)

var fetchSampleCmd = &cobra.Command{
	Use:   "fetch-sample",
	Short: "Download the Chinook sample database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !fetchForce {
			if _, err := os.Stat(fetchOut); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", fetchOut)
				return nil
			}
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		n, err := download(ctx, chinookURL, fetchOut)
		if err != nil {
			return err
		}
		logger.L.Info("sample database downloaded", "path", fetchOut, "bytes", n)
		fmt.Fprintf(cmd.OutOrStdout(), "File downloaded and saved as %s\n", fetchOut)
		return nil
	},
}

func init() {
	fetchSampleCmd.Flags().StringVarP(&fetchOut, "out", "o", "Chinook.db", "Where to save the database")
	fetchSampleCmd.Flags().BoolVar(&fetchForce, "force", false, "Overwrite an existing file")
}

// download writes url to path through a temporary file so a failed transfer
// never leaves a truncated database behind.
func download(ctx context.Context, url, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to download the file: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".chinook-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return n, os.Rename(tmp.Name(), path)
}
