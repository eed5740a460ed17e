package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wipacrepo/pubs/internal/backup"
	"github.com/wipacrepo/pubs/internal/catalog"
	"github.com/wipacrepo/pubs/internal/config"
	"github.com/wipacrepo/pubs/internal/query"
)

func init() {
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a compressed JSON export to S3",
	Long: `Upload a gzip JSON export of the whole catalog to the S3 bucket named by
BACKUP_S3_BUCKET (BACKUP_S3_ENDPOINT for S3-compatible stores), then delete
the oldest backups beyond KEEP_BACKUPS.`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

// backupTarget maps the configuration onto a backup target.
func backupTarget(cfg *config.Config) backup.Target {
	return backup.Target{
		Bucket:    cfg.BackupBucket,
		Endpoint:  cfg.BackupEndpoint,
		Region:    cfg.BackupRegion,
		AccessKey: cfg.BackupAccessKey,
		SecretKey: cfg.BackupSecretKey,
		Prefix:    cfg.BackupPrefix,
		Keep:      cfg.KeepBackups,
	}
}

func runBackup(cmd *cobra.Command, args []string) error {
	a, ctx, cancel := mustOpenApp(cmd.Context())
	defer cancel()
	defer a.close()

	target := backupTarget(a.cfg)
	if target.Bucket == "" {
		a.close()
		exitWithError(ExitConfigError, "BACKUP_S3_BUCKET is not set")
	}
	client, err := backup.NewS3Client(ctx, target)
	if err != nil {
		a.close()
		exitWithError(ExitConfigError, "creating S3 client: %v", err)
	}

	pubs, err := a.svc.Fetch(ctx, query.Criteria{}, catalog.FetchOptions{})
	if err != nil {
		a.fail(err, "fetching publications")
	}
	res, err := backup.New(client, target, a.log).Run(ctx, pubs)
	if err != nil {
		a.fail(err, "backing up")
	}

	if humanOutput {
		fmt.Printf("Uploaded %d publications to s3://%s/%s\n", res.Records, target.Bucket, res.Key)
		for _, key := range res.Deleted {
			fmt.Printf("Deleted %s\n", key)
		}
		return nil
	}
	return outputJSON(res)
}
