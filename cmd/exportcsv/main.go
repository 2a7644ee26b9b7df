package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"eduadmin-sync/internal/config"
	"eduadmin-sync/internal/content"
	"eduadmin-sync/internal/export"
	"eduadmin-sync/internal/logging"
	"eduadmin-sync/internal/sftpclient"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the YAML config file")
		outPath    = flag.String("out", "COURSE-CATALOG.csv", "output file path")
		format     = flag.String("format", "csv", "output format: csv or xml")
		operation  = flag.String("operation", "upsert", "operation attribute on xml courses (empty to omit)")
		uploadSFTP = flag.Bool("sftp", false, "upload the generated file via SFTP")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	loc, err := time.LoadLocation(cfg.EduAdmin.Timezone)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid timezone")
	}

	store, err := content.Open(cfg.Content.DSN)
	if err != nil {
		logging.Fatal().Err(err).Msg("open content store")
	}
	defer store.Close()

	if dir := filepath.Dir(*outPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logging.Fatal().Err(err).Msg("create output dir")
		}
	}

	n, err := exportCatalog(ctx, store, *outPath, *format, *operation, time.Now().In(loc), loc)
	if err != nil {
		logging.Fatal().Err(err).Msg("export failed")
	}
	logging.Info().Int("courses", n).Str("out", *outPath).Str("format", *format).Msg("catalog exported")

	if *uploadSFTP {
		upCfg := sftpclient.FromConfig(cfg.Export.SFTP)
		remoteName := filepath.Base(*outPath)

		upCtx, upCancel := context.WithTimeout(ctx, 5*time.Minute)
		defer upCancel()
		if err := sftpclient.UploadFile(upCtx, upCfg, *outPath, remoteName); err != nil {
			logging.Fatal().Err(err).Msg("sftp upload failed")
		}
		logging.Info().Str("host", upCfg.Host).Str("dir", upCfg.RemoteDir).Str("file", remoteName).Msg("uploaded to sftp")
	}
}

// exportCatalog writes the published catalog to outPath and returns the row count.
func exportCatalog(ctx context.Context, store content.Store, outPath, format, operation string, now time.Time, loc *time.Location) (int, error) {
	courses, err := store.ListCourses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list courses: %w", err)
	}
	rows := export.BuildCatalog(courses, now, loc)

	switch strings.ToLower(format) {
	case "csv":
		err = export.WriteCatalogCSVFile(outPath, rows)
	case "xml":
		err = export.WriteCatalogXMLFile(outPath, rows, operation)
	default:
		return 0, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
