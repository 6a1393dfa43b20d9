// Command ingest はYAMLファイルの動画メタデータをカタログへ一括登録します。
//
//	go run ./cmd/ingest -file videos.yaml
//
// 形式:
//
//	videos:
//	  - ref: https://youtu.be/dQw4w9WgXcQ
//	    title: Final
//	    channel: Official
//	    viewCount: 1000000
//	    duration: 5400
//
// -fetch を指定すると、viewCount と duration が未指定の項目をリモートから解決してから登録します。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"exposure_backend/internal/app/di"
	"exposure_backend/internal/feature/metadata/usecase"
	scanentity "exposure_backend/internal/feature/scan/domain/entity"
	"exposure_backend/internal/platform/config"
	infradb "exposure_backend/internal/platform/db"
)

// entry はYAMLの1項目です。
type entry struct {
	Ref       string `yaml:"ref"`
	Title     string `yaml:"title"`
	Channel   string `yaml:"channel"`
	ViewCount int64  `yaml:"viewCount"`
	Duration  int64  `yaml:"duration"`
}

type catalogFile struct {
	Videos []entry `yaml:"videos"`
}

func main() {
	file := flag.String("file", "", "path to the catalog YAML file")
	fetch := flag.Bool("fetch", false, "resolve missing view count and duration from remote providers")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -file videos.yaml [-fetch]")
		os.Exit(2)
	}
	if err := godotenv.Load(".env"); err != nil {
		slog.Info(".env not found; using system environment variables")
	}

	f, err := os.Open(*file)
	if err != nil {
		slog.Error("failed to open catalog file", "error", err)
		os.Exit(1)
	}
	entries, err := parseEntries(f)
	_ = f.Close()
	if err != nil {
		slog.Error("failed to parse catalog file", "file", *file, "error", err)
		os.Exit(1)
	}

	db, err := infradb.OpenDB(infradb.LoadConfigFromEnv())
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	var providers []usecase.RemoteProvider
	if *fetch {
		providers = di.NewMetadataProviders(nil, cfg.Metadata)
	}
	uc := usecase.NewMetadataUsecase(di.NewCatalogRepository(db), providers, cfg.Metadata.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := ingestAll(ctx, uc, entries, *fetch); err != nil {
		slog.Error("ingest finished with errors", "error", err)
		os.Exit(1)
	}
	slog.Info("ingest ok", "videos", len(entries))
}

func parseEntries(r io.Reader) ([]entry, error) {
	var cf catalogFile
	if err := yaml.NewDecoder(r).Decode(&cf); err != nil {
		return nil, err
	}
	for i, e := range cf.Videos {
		if e.Ref == "" {
			return nil, fmt.Errorf("videos[%d]: ref is required", i)
		}
	}
	return cf.Videos, nil
}

// ingestAll は全項目を登録します。1件の失敗で中断せず、エラーをまとめて返します。
func ingestAll(ctx context.Context, uc usecase.MetadataUsecase, entries []entry, fetch bool) error {
	var errs []error
	for _, e := range entries {
		meta := scanentity.VideoMetadata{
			Title:           e.Title,
			Channel:         e.Channel,
			ViewCount:       e.ViewCount,
			DurationSeconds: e.Duration,
		}
		if fetch && (meta.ViewCount == 0 || meta.DurationSeconds == 0) {
			remote, err := uc.Resolve(ctx, e.Ref)
			if err != nil {
				slog.Warn("failed to resolve metadata", "ref", e.Ref, "error", err)
			} else {
				meta = merge(meta, remote)
			}
		}
		if err := uc.UpsertCatalog(ctx, e.Ref, meta); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Ref, err))
		}
	}
	return errors.Join(errs...)
}

// merge は明示された値を優先し、空の項目だけをリモートの値で埋めます。
func merge(local, remote scanentity.VideoMetadata) scanentity.VideoMetadata {
	if local.Title == "" {
		local.Title = remote.Title
	}
	if local.Channel == "" {
		local.Channel = remote.Channel
	}
	if local.ViewCount == 0 {
		local.ViewCount = remote.ViewCount
	}
	if local.DurationSeconds == 0 {
		local.DurationSeconds = remote.DurationSeconds
	}
	return local
}
