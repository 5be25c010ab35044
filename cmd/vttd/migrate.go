package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tablekeep/vtt/internal/config"
	"github.com/tablekeep/vtt/internal/persist"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/internal/storage/legacy"
	"github.com/tablekeep/vtt/pkg/core"
)

// migrateUser is recorded as the author of promoted records.
const migrateUser = "vttd-migrate"

func migrateLegacyCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate-legacy [campaign-id...]",
		Short: "Promote legacy local caches to durable storage",
		Long: "Promotes each legacy cache file to durable storage unless the campaign already\n" +
			"has a durable record. With no arguments every cached campaign is migrated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = config.GetLegacyConfig().Dir
			}
			backend, err := openStorage(config.GetStorageConfig())
			if err != nil {
				return err
			}
			defer backend.Close()

			results, err := migrateLegacy(context.Background(), backend, legacy.New(dir), args)
			for _, r := range results {
				cmd.Printf("%s\t%s\n", r.campaignID, r.outcome)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "legacy cache directory (defaults to legacy.dir)")
	return cmd
}

type migration struct {
	campaignID string
	outcome    string
}

func migrateLegacy(ctx context.Context, backend storage.Backend, cache *legacy.Cache, campaigns []string) ([]migration, error) {
	if len(campaigns) == 0 {
		found, err := cache.Campaigns()
		if err != nil {
			return nil, fmt.Errorf("list legacy caches: %w", err)
		}
		campaigns = found
	}

	var (
		results []migration
		failed  int
	)
	for _, id := range campaigns {
		var promoteErr error
		gw, err := persist.New(backend, persist.Options{
			CampaignID: id,
			UserID:     migrateUser,
			ToolKey:    config.GetSyncConfig().ToolKey,
			Legacy:     cache,
			Logger:     Logger.With("campaignId", id),
			OnError:    func(err error) { promoteErr = err },
		})
		if err != nil {
			return results, err
		}
		h, err := gw.Hydrate(ctx, core.RoleGM)
		gw.Close()

		outcome := string(h.Source)
		switch {
		case err != nil:
			outcome = "error: " + err.Error()
			failed++
		case promoteErr != nil:
			outcome = "error: " + promoteErr.Error()
			failed++
		case h.Promoted:
			outcome = fmt.Sprintf("promoted (%d scenes)", len(h.State.Scenes))
		case h.Source == persist.SourceDurable:
			outcome = "skipped, durable record exists"
		}
		Logger.Info("Legacy migration", "campaignId", id, "outcome", outcome)
		results = append(results, migration{campaignID: id, outcome: outcome})
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d campaigns failed to migrate", failed, len(campaigns))
	}
	return results, nil
}
