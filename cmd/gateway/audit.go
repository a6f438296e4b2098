package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit/retention"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/cli"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
)

var auditFlags struct {
	format string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and maintain the audit store",
	Long: `Operations against the configured audit backend.

Examples:
  # Count stored audit records
  gateway audit count

  # Delete records past the retention window now
  gateway audit prune`,
}

var auditCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored audit records",
	RunE:  auditCount,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit records past the retention window",
	Long: `Run a one-off retention prune against the configured backend.

The DynamoDB backend expires records through its native TTL, so this
command only applies to SQLite and in-memory stores.`,
	RunE: auditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditCountCmd)
	auditCmd.AddCommand(auditPruneCmd)

	auditCmd.PersistentFlags().StringVar(&auditFlags.format, "format", "text", "output format: text, json")
}

func openAuditStorage(ctx context.Context) (audit.Storage, *config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError("", err.Error())
	}

	store, err := buildAuditStorage(ctx, cfg.Audit)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func auditCount(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, cfg, err := openAuditStorage(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return cli.NewCommandError("audit count", err)
	}

	result := struct {
		Backend string `json:"backend"`
		Records int64  `json:"records"`
	}{Backend: cfg.Audit.Backend, Records: count}

	if cli.OutputFormat(auditFlags.format) == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, result)
	}
	fmt.Printf("Backend: %s\n", result.Backend)
	fmt.Printf("Records: %d\n", result.Records)
	return nil
}

func auditPrune(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, cfg, err := openAuditStorage(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	pruner := retention.NewPruner(store, &retention.Config{
		RetentionDays: cfg.Audit.RetentionDays,
	})

	deleted, err := pruner.Prune(ctx)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}

	if cfg.Audit.RetentionDays <= 0 {
		fmt.Println("Retention disabled (retention_days is 0); nothing pruned.")
		return nil
	}
	fmt.Printf("Pruned %d records older than %d days.\n", deleted, cfg.Audit.RetentionDays)
	return nil
}
