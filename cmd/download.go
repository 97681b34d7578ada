package cmd

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/anoixa/album-client/internal/images"
	"github.com/spf13/cobra"
)

// downloadCmd 下载原图
var downloadCmd = &cobra.Command{
	Use:   "download <photo-id> [dest]",
	Short: "Download a photo's original file",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustAuthenticatedApp(cmd)
		defer app.Close()

		photoID := args[0]
		dest := photoID + ".jpg"
		if len(args) == 2 {
			dest = args[1]
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := images.Download(ctx, app.client, photoID, dest); err != nil {
			log.Fatalf("Download failed: %v", err)
		}
		abs, _ := filepath.Abs(dest)
		fmt.Printf("Saved to %s\n", abs)
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}
