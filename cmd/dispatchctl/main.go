// dispatchctl is the operator CLI: it runs database migrations and triggers
// maintenance jobs on a running dispatch daemon.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatfloor/dispatch/db"
	"github.com/chatfloor/dispatch/internal/config"
	internaldb "github.com/chatfloor/dispatch/internal/db"
	"github.com/chatfloor/dispatch/internal/logger"
)

var (
	configPath string
	apiBaseURL string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "dispatchctl",
		Short:         "Operate a dispatch deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to config.toml")
	root.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "dispatch API base URL (defaults to server.addr from config)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(migrateCmd())
	root.AddCommand(triggerCmd("sweep", "Run the inactivity and lock sweep now", "/maintenance/sweep"))
	root.AddCommand(triggerCmd("process-queue", "Serve waiting workers from free capacity now", "/maintenance/process-queue"))
	root.AddCommand(triggerCmd("rebalance", "Run one rebalance pass now", "/maintenance/rebalance"))
	root.AddCommand(triggerCmd("validate", "Repair integrity violations now", "/maintenance/validate"))
	root.AddCommand(queueCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version|force]",
		Short:     "Run database migrations",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"up", "down", "version", "force"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return internaldb.Migrate(logger.Named("migrate"), cfg.Postgres, db.MigrationsFS, args[0], args[1:])
		},
	}
	return cmd
}

func triggerCmd(name, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON(path)
		},
	}
}

func queueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the wait queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/queue")
		},
	}
}

func resolveBaseURL() (string, error) {
	base := strings.TrimSpace(apiBaseURL)
	if base == "" {
		cfg, err := loadConfig()
		if err != nil {
			return "", err
		}
		addr := strings.TrimSpace(cfg.Server.Addr)
		if strings.HasPrefix(addr, ":") {
			addr = "127.0.0.1" + addr
		}
		base = "http://" + addr
	}
	return strings.TrimRight(base, "/"), nil
}

func postJSON(path string) error {
	base, err := resolveBaseURL()
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(base+path, "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func getJSON(path string) error {
	base, err := resolveBaseURL()
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if len(body) == 0 {
		fmt.Println(resp.Status)
		return nil
	}
	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}
