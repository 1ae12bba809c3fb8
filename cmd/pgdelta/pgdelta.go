package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studio1767/pgdelta/internal/config"
	"github.com/studio1767/pgdelta/internal/delta"
	"github.com/studio1767/pgdelta/internal/manifest"
	"github.com/studio1767/pgdelta/internal/s3io"
	"github.com/studio1767/pgdelta/internal/snapshot"
	"github.com/studio1767/pgdelta/internal/transfer"
)

func main() {
	// process the command line
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-p aws-profile] [-i identities-file] [-c config-file] [-s site] <bucket> <datadir>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}

	profile := flag.String("p", "default", "aws profile for credentials and configuration")
	identities := flag.String("i", "default", "age identities file for decrypting manifests")
	cfgfile := flag.String("c", "pgdelta.yml", "site configuration file")
	sitename := flag.String("s", "", "site to back up (optional when only one is configured)")
	metrics := flag.String("m", "", "address to serve prometheus metrics on for the run's duration")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "Error: incorrect arguments provided\n")
		flag.Usage()
		os.Exit(1)
	}

	bucket := flag.Arg(0)
	datadir := flag.Arg(1)

	fi, err := os.Stat(datadir)
	if err != nil {
		log.Fatal(err)
	}
	if fi.IsDir() == false {
		log.Fatalf("data directory is not a directory: %s", datadir)
	}

	// load the site configuration
	cfg, err := config.Load(*cfgfile)
	if err != nil {
		log.Fatal(err)
	}
	site, err := cfg.Site(*sitename)
	if err != nil {
		log.Fatal(err)
	}

	// create the s3 client
	client, err := s3io.NewClient(*profile, bucket, *identities)
	if err != nil {
		log.Fatal(err)
	}

	// expose the upload counters while the backup runs
	if *metrics != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metrics, mux); err != nil {
				log.Print(err)
			}
		}()
	}

	err = runBackup(client, site, datadir)
	if err != nil {
		log.Fatal(err)
	}
}

func runBackup(client s3io.Client, site *config.Site, datadir string) error {
	// stop cleanly on interrupt: in-flight waits abandon instead of hanging
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// start the transfer agents
	queue := make(transfer.Queue, site.Parallel)

	var wg sync.WaitGroup
	for i := 0; i < site.Parallel; i++ {
		agent := transfer.NewAgent(client, queue)
		wg.Add(1)
		go func() {
			defer wg.Done()
			agent.Serve(ctx)
		}()
	}
	defer func() {
		close(queue)
		wg.Wait()
	}()

	snapshotter := snapshotterFor(site, datadir)

	listBackups := func() ([]delta.BackupInfo, error) {
		prefix := fmt.Sprintf("%s/basebackup/", site.Prefix)

		keys, err := client.ListMatching(prefix)
		if err != nil {
			return nil, err
		}

		var backups []delta.BackupInfo
		for _, key := range keys {
			meta, err := client.Metadata(key)
			if err != nil {
				return nil, err
			}
			backups = append(backups, delta.BackupInfo{
				Name:      strings.TrimPrefix(key, prefix),
				FormatTag: meta["format"],
			})
		}
		return backups, nil
	}

	fetchManifest := func(path string) (*manifest.Manifest, []byte, error) {
		return manifest.Download(client, path)
	}

	bb := delta.New(delta.Config{
		Storage:     client,
		Site:        site.Name,
		Prefix:      site.Prefix,
		Transfer:    queue,
		Compression: site.Compression,
		Encryption: transfer.EncryptionData{
			Recipients: client.Recipients(),
		},
		Parallel:      site.Parallel,
		ChunkSize:     site.ChunkSize,
		TempDir:       site.TempDir,
		IsRunning:     func() bool { return ctx.Err() == nil },
		ListBackups:   listBackups,
		FetchManifest: fetchManifest,
	})

	// name the backup after today with a sequence number, so multiple
	// backups per day sort naturally
	existing, err := listBackups()
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%d", time.Now().UTC().Format("2006-01-02"), len(existing))

	fmt.Printf("Backing up %s to %s/basebackup/%s\n", datadir, site.Prefix, name)

	run, err := bb.Run(name, snapshotter)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s/basebackup/%s", site.Prefix, name)
	err = manifest.Upload(client, run.Manifest, key, delta.FormatDeltaV2.String())
	if err != nil {
		return err
	}
	fmt.Printf("- uploaded: %s\n", key)

	fmt.Println()
	fmt.Printf("Backup Summary\n")
	fmt.Printf(" hashed files:\n")
	fmt.Printf("        total: %d (%s bytes)\n", run.DigestMetric.Count, humanize.Comma(run.DigestMetric.InputSize))
	fmt.Printf("       stored: %s bytes\n", humanize.Comma(run.DigestMetric.StoredSize))
	fmt.Printf("     uploaded: %d (%s bytes up)\n", run.UploadMetric.Count, humanize.Comma(run.UploadMetric.StoredSize))
	fmt.Printf(" bundled files:\n")
	fmt.Printf("       chunks: %d\n", run.BundleChunks)
	fmt.Printf("     uploaded: %s bytes (%s bytes up)\n", humanize.Comma(run.BundleInput), humanize.Comma(run.BundleStored))
	fmt.Printf(" embedded files:\n")
	fmt.Printf("        total: %d (%s bytes)\n", run.EmbedMetric.Count, humanize.Comma(run.EmbedMetric.InputSize))
	fmt.Println()

	return nil
}

func snapshotterFor(site *config.Site, datadir string) *snapshot.Snapshotter {
	return snapshot.New(datadir, snapshot.Options{
		SkipDirs:      site.SkipDirs,
		MissingOK:     site.MissingOK,
		EmbedMaxSize:  site.EmbedMaxSize,
		BundleMaxSize: site.BundleMaxSize,
	})
}
