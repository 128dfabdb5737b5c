package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/postdex/internal/domain"
	dombatch "github.com/kailas-cloud/postdex/internal/domain/batch"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
	logpkg "github.com/kailas-cloud/postdex/internal/logger"
)

func newSchemaCmd(flags *rootFlags) *cobra.Command {
	var printOnly, current bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create or replace the index schema",
		Long: `Builds the index schema from the configured index settings and
submits it to the engine. With --print the schema JSON is written to
stdout and no engine is contacted. With --current the schema last
submitted to the engine is printed instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if printOnly {
				idx, err := schema.Build(schemaOptions(cfg.Index))
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(idx)
			}

			a, err := newApp(cmd.Context(), flags.env, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if current {
				name := a.schemaOptions().Name
				data, err := a.engine.StoredSchema(cmd.Context(), name)
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("no schema submitted for index %s", name)
				}
				if err != nil {
					return err
				}
				var out bytes.Buffer
				if err := json.Indent(&out, data, "", "  "); err != nil {
					return fmt.Errorf("stored schema %s: %w", name, err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), out.String())
				return err
			}

			idx, err := a.indexer.PutSchema(cmd.Context(), a.schemaOptions())
			if err != nil {
				return err
			}
			cmd.Printf("Schema %s submitted (%s, doc types %v)\n", idx.Config.Name, idx.Config.Lang, idx.DocTypes())
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of submitting it")
	cmd.Flags().BoolVar(&current, "current", false, "print the schema stored in the engine")
	cmd.MarkFlagsMutuallyExclusive("print", "current")
	return cmd
}

func newSyncCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <tenant-id> <entity-id>",
		Short: "Rebuild one entity and the entities coupled to it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID("tenant-id", args[0])
			if err != nil {
				return err
			}
			entityID, err := parseID("entity-id", args[1])
			if err != nil {
				return err
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), flags.env, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := logpkg.ContextWithLogger(cmd.Context(), a.logger)
			results, err := a.indexer.Sync(ctx, tenantID, entityID)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Err() != nil {
					cmd.Printf("%s\t%s\t%v\n", r.ID(), r.Status(), r.Err())
				} else {
					cmd.Printf("%s\t%s\n", r.ID(), r.Status())
				}
				if r.Status() == dombatch.StatusError {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(results))
			}
			return nil
		},
	}
}

func newReindexCmd(flags *rootFlags) *cobra.Command {
	var (
		tenants []int64
		restart bool
	)
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Reindex every entity of one or more tenants",
		Long: `Walks the entities of each tenant in id order and rebuilds their
documents. Runs resume from the saved cursor unless --restart is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(tenants) == 0 {
				return errors.New("at least one --tenant is required")
			}
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), flags.env, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := logpkg.ContextWithLogger(cmd.Context(), a.logger)
			var failed int
			for _, tenantID := range tenants {
				if restart {
					if err := a.cursors.Reset(tenantID); err != nil {
						return fmt.Errorf("reset cursor for tenant %d: %w", tenantID, err)
					}
				}
				report, err := a.indexer.Run(ctx, tenantID)
				if err != nil {
					a.logger.Error("Reindex interrupted",
						zap.Int64("tenant_id", tenantID),
						zap.Int64("after", report.Cursor.After),
						zap.Error(err))
					return fmt.Errorf("reindex tenant %d: %w", tenantID, err)
				}
				cmd.Printf("tenant %d: ok=%d skipped=%d failed=%d coupled=%d in %s\n",
					tenantID, report.Summary.OK, report.Summary.Skipped, report.Summary.Failed,
					report.Coupled, report.Duration.Round(time.Millisecond))
				for _, f := range report.Failures {
					cmd.Printf("  %s: %v\n", f.ID(), f.Err())
				}
				failed += report.Summary.Failed
			}
			if failed > 0 {
				return fmt.Errorf("%d documents failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&tenants, "tenant", nil, "tenant id to reindex (repeatable)")
	cmd.Flags().BoolVar(&restart, "restart", false, "discard saved cursors and start from the first entity")
	return cmd
}

func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return id, nil
}
