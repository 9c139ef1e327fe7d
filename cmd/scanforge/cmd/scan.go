package cmd

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/features"
	"github.com/scanforge/scanforge/internal/imageio"
	"github.com/scanforge/scanforge/internal/pathutil"
	"github.com/scanforge/scanforge/internal/scanner"
)

func init() {
	scanCmd := &cobra.Command{
		Use:   "scan [image]",
		Short: "Scan an image and record per-page block hashes",
		Long: `Scan opens a raw file, split-raw series, EWF container or directory of
files, iterates it page by page, and records an MD5 for each usable page into
a feature file in the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}

	scanCmd.Flags().BoolP("recurse", "r", false, "allow scanning a directory of individual files")
	scanCmd.Flags().Int("page-size", 0, "usable page size in bytes (overrides config)")
	scanCmd.Flags().Int("margin", -1, "look-ahead margin in bytes (overrides config)")
	scanCmd.Flags().Int("workers", 0, "concurrent page workers (overrides config)")
	scanCmd.Flags().StringP("output", "o", "", "feature file output directory (overrides config)")

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyScanFlags(cmd, cfg)
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := afero.NewOsFs()
	imagePath := args[0]

	if err := pathutil.CheckDirectoryWritable(fs, cfg.Output.Dir); err != nil {
		return err
	}

	src, err := imageio.Open(fs, imagePath, imageio.Config{
		PageSize: cfg.PageSize,
		Margin:   cfg.Margin,
		Recurse:  cfg.Recurse,
	})
	if err != nil {
		return fmt.Errorf("open image %s: %w", imagePath, err)
	}
	defer src.Close()

	rec, err := features.NewRecorder(fs, cfg.Output.Dir, "block_hashes", imagePath)
	if err != nil {
		return err
	}

	sc := scanner.New(src, &hashSink{rec: rec}, scanner.Config{
		Workers:  cfg.Workers,
		LogEvery: 64,
	})

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		return sc.Run(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				fmt.Printf("%s\n", sc.Tracker())
			}
		}
	})

	scanErr := g.Wait()
	if err := rec.Close(); err != nil {
		if scanErr == nil {
			scanErr = err
		}
	}
	if scanErr != nil {
		return scanErr
	}

	fmt.Printf("scan complete: %s in %s\n", sc.Tracker(), sc.Tracker().Elapsed().Round(time.Millisecond))
	return nil
}

func applyScanFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("recurse") {
		cfg.Recurse, _ = cmd.Flags().GetBool("recurse")
	}
	if cmd.Flags().Changed("page-size") {
		cfg.PageSize, _ = cmd.Flags().GetInt("page-size")
	}
	if cmd.Flags().Changed("margin") {
		cfg.Margin, _ = cmd.Flags().GetInt("margin")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Dir, _ = cmd.Flags().GetString("output")
	}
}

// hashSink hashes each usable page and records the digest as a feature.
type hashSink struct {
	rec *features.Recorder
}

func (h *hashSink) ProcessPage(_ context.Context, page *imageio.Page) error {
	sum := md5.Sum(page.Usable())
	return h.rec.Record(page.Addr, hex.EncodeToString(sum[:]), fmt.Sprintf("len=%d", page.PageSize))
}
