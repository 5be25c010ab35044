package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tablekeep/vtt/internal/config"
	"github.com/tablekeep/vtt/internal/persist"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/core"
	"gopkg.in/yaml.v3"
)

func exportCmd() *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export [campaign-id...]",
		Short: "Export stored scene states as json or yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want json or yaml)", format)
			}
			backend, err := openStorage(config.GetStorageConfig())
			if err != nil {
				return err
			}
			defer backend.Close()

			docs, err := collectExports(context.Background(), backend, config.GetSyncConfig().ToolKey, args)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return writeExports(w, format, docs)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to a file instead of stdout")
	return cmd
}

type exportDoc struct {
	CampaignID string     `json:"campaignId"`
	ToolKey    string     `json:"toolKey"`
	UpdatedBy  string     `json:"updatedBy,omitempty"`
	SavedAt    time.Time  `json:"savedAt"`
	State      core.State `json:"state"`
}

func collectExports(ctx context.Context, backend storage.Backend, toolKey string, campaigns []string) ([]exportDoc, error) {
	var records []core.Record
	if len(campaigns) == 0 {
		lister, ok := backend.(storage.Lister)
		if !ok {
			return nil, fmt.Errorf("storage backend cannot list campaigns; pass campaign ids")
		}
		all, err := lister.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		for _, rec := range all {
			if rec.ToolKey == toolKey {
				records = append(records, rec)
			}
		}
	} else {
		for _, id := range campaigns {
			rec, err := backend.Load(ctx, id, toolKey)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", id, err)
			}
			if rec == nil {
				Logger.Warn("No stored state", "campaignId", id)
				continue
			}
			records = append(records, *rec)
		}
	}

	docs := make([]exportDoc, 0, len(records))
	for _, rec := range records {
		st, err := persist.Decode(rec.State)
		if err != nil {
			Logger.Warn("Skipping malformed record", "campaignId", rec.CampaignID, "error", err)
			continue
		}
		docs = append(docs, exportDoc{
			CampaignID: rec.CampaignID,
			ToolKey:    rec.ToolKey,
			UpdatedBy:  rec.UpdatedBy,
			SavedAt:    rec.SavedAt,
			State:      st,
		})
	}
	return docs, nil
}

// writeExports renders docs. YAML goes through the JSON form so both
// formats share the persisted field names.
func writeExports(w io.Writer, format string, docs []exportDoc) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
