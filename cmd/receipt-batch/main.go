// Command receipt-batch analyzes directories of receipt images offline.
//
//	receipt-batch run   -dir receipts/ [-out receipt_analysis.json] [-limit 10] [-workers 2] [-per-image json/]
//	receipt-batch watch -dir inbox/ -out json/ [-backfill]
//	receipt-batch clean -dir json/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"receipt-scan/pkg/config"
	"receipt-scan/pkg/logger"
	"receipt-scan/pkg/models"
	"receipt-scan/pkg/services/batch"
	"receipt-scan/pkg/services/extraction"
	"receipt-scan/pkg/services/receipts"
	"receipt-scan/pkg/services/store"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: receipt-batch <run|watch|clean> [flags]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(ctx, os.Args[2:])
	case "watch":
		err = watchCmd(ctx, os.Args[2:])
	case "clean":
		err = cleanCmd(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "receipt-batch:", err)
		os.Exit(1)
	}
}

// setup loads and validates configuration and builds the analyzer
func setup(ctx context.Context, configPath string) (config.Config, *logrus.Logger, *receipts.Analyzer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	analyzer, err := receipts.NewFromConfig(ctx, cfg, log)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, log, analyzer, nil
}

func runCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "optional YAML config file")
	dir := fs.String("dir", "", "directory of receipt images")
	out := fs.String("out", batch.DefaultDocument, "batch output document")
	limit := fs.Int("limit", 0, "process at most this many images (0 = all)")
	workers := fs.Int("workers", 1, "concurrent model requests")
	perImage := fs.String("per-image", "", "also write one <image>.json per image into this directory")
	upload := fs.Bool("upload", false, "upload the output document to MinIO")
	save := fs.Bool("store", false, "save records to the database")
	_ = fs.Parse(args)
	if *dir == "" {
		return fmt.Errorf("-dir is required")
	}

	cfg, log, analyzer, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}

	var uploader *batch.Uploader
	if *upload {
		if !cfg.MinIO.Enabled() {
			return fmt.Errorf("-upload needs MINIO_ENDPOINT")
		}
		if uploader, err = batch.NewUploader(cfg.MinIO); err != nil {
			return err
		}
	}
	var repo *store.Repository
	if *save {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("-store needs DATABASE_URL")
		}
		if repo, err = store.Open(cfg.DatabaseURL); err != nil {
			return err
		}
		defer repo.Close()
	}

	paths, err := batch.ListImages(*dir, *limit)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"images": len(paths), "provider": analyzer.Provider()}).Info("starting batch")

	runner := batch.NewRunner(analyzer, *workers, log)
	runner.OnRecord(func(path string, rec models.ReceiptRecord) error {
		if *perImage != "" {
			if _, err := batch.WritePerImage(*perImage, path, rec); err != nil {
				return err
			}
		}
		if repo != nil {
			return repo.Save(ctx, rec)
		}
		return nil
	})
	report := runner.Run(ctx, paths)

	if err := batch.WriteDocument(*out, report.Records); err != nil {
		return err
	}
	log.WithField("file", *out).Info("results saved")

	if uploader != nil {
		name, err := uploader.Upload(ctx, *out)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"bucket": cfg.MinIO.Bucket, "object": name}).Info("results uploaded")
	}

	fmt.Printf("Analysis complete. Processed %d receipts (%d extracted, %d fallbacks). Results saved to: %s\n",
		report.Processed, report.Succeeded, report.Fallbacks, *out)
	return nil
}

func watchCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "optional YAML config file")
	dir := fs.String("dir", "", "directory to watch for receipt images")
	out := fs.String("out", "", "directory for per-image JSON output")
	backfill := fs.Bool("backfill", false, "first process images already in the directory")
	save := fs.Bool("store", false, "save records to the database")
	_ = fs.Parse(args)
	if *dir == "" || *out == "" {
		return fmt.Errorf("-dir and -out are required")
	}

	cfg, log, analyzer, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}

	w := batch.NewWatcher(*dir, *out, analyzer, log)
	if *save {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("-store needs DATABASE_URL")
		}
		repo, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer repo.Close()
		w.OnRecord(func(path string, rec models.ReceiptRecord) {
			if err := repo.Save(ctx, rec); err != nil {
				log.WithField("image", path).WithError(err).Error("failed to store receipt")
			}
		})
	}

	if *backfill {
		if err := w.Backfill(ctx); err != nil {
			return err
		}
	}
	return w.Run(ctx)
}

func cleanCmd(args []string) error {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	dir := fs.String("dir", "", "directory of saved model responses (*.json)")
	strategy := fs.String("strategy", "auto", "payload strategy: auto, fence or boundary")
	repair := fs.Bool("repair", false, "repair near-JSON payloads before validating")
	_ = fs.Parse(args)
	if *dir == "" {
		return fmt.Errorf("-dir is required")
	}
	st, err := extraction.ParseStrategy(*strategy)
	if err != nil {
		return err
	}

	results, err := batch.CleanDir(*dir, extraction.NewSanitizer(st, *repair))
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Printf("skipped %s: %v\n", r.Path, r.Err)
		case r.Cleaned:
			fmt.Printf("cleaned %s\n", r.Path)
		default:
			fmt.Printf("already clean %s\n", r.Path)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files had no valid JSON", failed, len(results))
	}
	return nil
}
