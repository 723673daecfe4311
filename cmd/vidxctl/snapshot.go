package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arx-os/vecindex/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Back up or restore the index's raw page store",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Pack every page into a fresh snapshot",
	RunE:  runSnapshotCreate,
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot-id>",
	Short: "Restore the index from a snapshot id",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotRestore,
}

func init() {
	snapshotCmd.AddCommand(snapshotCreateCmd, snapshotRestoreCmd)
}

// snapshotBackendFromConfig builds the configured snapshot.Backend,
// mirroring internal/server's and pkg/vector's reliance on
// internal/config.StorageConfig to pick among local/s3/gcs/azure.
func snapshotBackendFromConfig(ctx context.Context) (snapshot.Backend, error) {
	switch appConfig.Storage.Backend {
	case "", "local":
		return snapshot.NewLocalBackend(appConfig.Storage.Local.BaseDir)
	case "s3":
		return snapshot.NewS3Backend(ctx, snapshot.S3Config{
			Region:          appConfig.Storage.S3.Region,
			Bucket:          appConfig.Storage.S3.Bucket,
			AccessKeyID:     appConfig.Storage.S3.AccessKeyID,
			SecretAccessKey: appConfig.Storage.S3.SecretAccessKey,
			Endpoint:        appConfig.Storage.S3.Endpoint,
		})
	case "gcs":
		return snapshot.NewGCSBackend(ctx, snapshot.GCSConfig{
			BucketName:      appConfig.Storage.GCS.BucketName,
			CredentialsFile: appConfig.Storage.GCS.CredentialsFile,
		})
	case "azure":
		return snapshot.NewAzureBackend(ctx, snapshot.AzureConfig{
			AccountName:      appConfig.Storage.Azure.AccountName,
			AccountKey:       appConfig.Storage.Azure.AccountKey,
			ContainerName:    appConfig.Storage.Azure.ContainerName,
			ConnectionString: appConfig.Storage.Azure.ConnectionString,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", appConfig.Storage.Backend)
	}
}

func runSnapshotCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	dest, err := snapshotBackendFromConfig(ctx)
	if err != nil {
		return fmt.Errorf("snapshot backend: %w", err)
	}
	manifest, err := ix.Snapshot(ctx, dest)
	if err != nil {
		return fmt.Errorf("snapshot create: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}

func runSnapshotRestore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	src, err := snapshotBackendFromConfig(ctx)
	if err != nil {
		return fmt.Errorf("snapshot backend: %w", err)
	}
	manifest, err := ix.Restore(ctx, src, args[0])
	if err != nil {
		return fmt.Errorf("snapshot restore: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}
