package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/imageio"
)

func init() {
	infoCmd := &cobra.Command{
		Use:   "info [image]",
		Short: "Print how an image would be opened and paged",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}

	infoCmd.Flags().BoolP("recurse", "r", false, "allow inspecting a directory of individual files")

	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("recurse") {
		cfg.Recurse, _ = cmd.Flags().GetBool("recurse")
	}
	setupLogging(cfg)

	src, err := imageio.Open(afero.NewOsFs(), args[0], imageio.Config{
		PageSize: cfg.PageSize,
		Margin:   cfg.Margin,
		Recurse:  cfg.Recurse,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	fmt.Printf("image:      %s\n", args[0])
	fmt.Printf("size:       %d (%s)\n", src.ImageSize(), humanize.Bytes(src.ImageSize()))
	fmt.Printf("page size:  %s (+%s margin)\n", humanize.Bytes(uint64(cfg.PageSize)), humanize.Bytes(uint64(cfg.Margin)))
	fmt.Printf("max blocks: %d\n", src.MaxBlocks())
	fmt.Printf("end label:  %s\n", src.Label(src.End()))
	return nil
}
