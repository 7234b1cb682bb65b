package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/susi/internal/api"
	"github.com/kalambet/susi/internal/config"
	"github.com/kalambet/susi/internal/storage"
)

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trigger loop with the status API (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runDaemon(mode, withMCP)
	},
}

func init() {
	runCmd.Flags().String("mode", "", "trigger mode: polling or schedule (default from config)")
	runCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

// --- one-shot cycles ---

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Run one content cycle (workbook rows to post text) and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(config.WorkflowContent)
	},
}

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Run one image cycle (OneDrive folder to Instagram) and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(config.WorkflowImages)
	},
}

func runOnce(wf string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, wf)
	if err != nil {
		return err
	}
	defer a.Close()

	a.tokens.KeepAlive(ctx)
	var run storage.CycleRun
	if wf == config.WorkflowContent {
		run, err = a.loop.TryContent(ctx)
	} else {
		run, err = a.loop.TryImages(ctx, a.known)
	}
	printRun(run)
	if err != nil {
		return err
	}
	if run.Failed > 0 {
		printWarning("%s cycle finished with %d failed item(s); see notifications", wf, run.Failed)
		return nil
	}
	printSuccess("%s cycle finished", wf)
	return nil
}

func printRun(run storage.CycleRun) {
	if run.ID == "" {
		return
	}
	printStatus("Run", "%s", run.ID)
	printStatus("Status", "%s", colorize(statusColor(run.Status), run.Status))
	printStatus("Items", "%d (succeeded %d, failed %d, skipped %d)", run.Items, run.Succeeded, run.Failed, run.Skipped)
	if !run.FinishedAt.IsZero() {
		printStatus("Duration", "%s", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		printStatus("Error", "%s", run.Error)
	}
}

// --- trigger ---

var triggerCmd = &cobra.Command{
	Use:   "trigger <content|images>",
	Short: "Ask the running daemon to start a cycle now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/cycles/"+args[0], nil)
		if err != nil {
			return err
		}
		var run api.RunView
		if err := decodeJSON(resp, &run); err != nil {
			return err
		}
		printSuccess("Started %s run %s", run.Workflow, run.ID)
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon health and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/health")
		if err != nil {
			printStatus("Daemon", "%s", colorize(colorRed, "not running"))
			return err
		}
		var health map[string]string
		if err := decodeJSON(resp, &health); err != nil {
			return err
		}
		printStatus("Daemon", "%s (version %s)", colorize(colorGreen, health["status"]), health["version"])

		resp, err = client.get(cmd.Context(), fmt.Sprintf("/runs?limit=%d", limit))
		if err != nil {
			return err
		}
		var runs []api.RunView
		if err := decodeJSON(resp, &runs); err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %-8s %-9s %s  items=%d ok=%d failed=%d skipped=%d\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Workflow, r.Trigger, colorize(statusColor(r.Status), fmt.Sprintf("%-9s", r.Status)),
				r.Items, r.Succeeded, r.Failed, r.Skipped)
			if r.Error != "" {
				fmt.Printf("    %s\n", r.Error)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 10, "number of recent runs to show")
}

// --- seen ---

var seenCmd = &cobra.Command{
	Use:   "seen",
	Short: "List images already published and archived",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		imgs, err := store.ListSeenImages(limit)
		if err != nil {
			return err
		}
		if len(imgs) == 0 {
			fmt.Println("No images published yet.")
			return nil
		}
		for _, img := range imgs {
			fmt.Printf("%s  %s  %s\n", img.CompletedAt.Local().Format("2006-01-02 15:04"), img.ID, colorize(colorBold, img.Name))
		}
		return nil
	},
}

func init() {
	seenCmd.Flags().Int("limit", 50, "maximum number of images to list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective non-secret configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate that both workflows have their required settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(config.WorkflowContent, config.WorkflowImages); err != nil {
			return err
		}
		printSuccess("Configuration is complete")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configCheckCmd)
}
