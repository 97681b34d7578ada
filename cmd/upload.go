package cmd

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/anoixa/album-client/config"
	"github.com/anoixa/album-client/internal/upload"
	"github.com/anoixa/album-client/utils/format"
	"github.com/spf13/cobra"
)

// uploadCmd 上传照片到相册
var uploadCmd = &cobra.Command{
	Use:   "upload <album-id> <file>...",
	Short: "Upload photos to an album",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustAuthenticatedApp(cmd)
		defer app.Close()

		cfg := config.Get()
		uploader := upload.NewUploader(app.client, app.state, cfg.UploadMaxSizeBytes())

		albumID := args[0]
		paths := args[1:]

		ctx, cancel := commandContext(cmd)
		defer cancel()

		if len(paths) == 1 {
			title, _ := cmd.Flags().GetString("title")
			description, _ := cmd.Flags().GetString("description")

			result, err := uploader.Upload(ctx, upload.Options{
				AlbumID:     albumID,
				FilePath:    paths[0],
				Title:       title,
				Description: description,
				OnProgress: func(percent int) {
					fmt.Printf("\r%s", format.ProgressBar(percent, 30))
				},
			})
			fmt.Println()
			if err != nil {
				log.Fatalf("Upload failed: %v", err)
			}
			fmt.Printf("Uploaded %s (%s) as photo %s\n",
				result.FileName, format.HumanReadableSize(result.FileSize), result.PhotoID)
			return
		}

		results := uploader.UploadBatch(ctx, albumID, paths, cfg.UploadConcurrency, nil)

		failed := 0
		for _, r := range results {
			name := filepath.Base(r.FilePath)
			if r.Err != nil {
				failed++
				fmt.Printf("FAIL %-30s %v\n", name, r.Err)
				continue
			}
			fmt.Printf("OK   %-30s photo %s (%s)\n",
				name, r.Result.PhotoID, format.HumanReadableSize(r.Result.FileSize))
		}
		if failed > 0 {
			log.Fatalf("%d of %d uploads failed", failed, len(results))
		}
	},
}

// uploadsCmd 查看本地上传历史
var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "Show recent upload history",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newAppContext()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		records, err := app.state.RecentUploads(limit)
		if err != nil {
			log.Fatalf("Failed to read upload history: %v", err)
		}
		if len(records) == 0 {
			fmt.Println("No uploads recorded.")
			return
		}
		for _, rec := range records {
			line := fmt.Sprintf("%s %-8s album %-6s %-30s %s",
				rec.CreatedAt.Local().Format("2006-01-02 15:04"),
				rec.Status, rec.AlbumID, rec.Filename,
				format.HumanReadableSize(rec.FileSize))
			if rec.Message != "" {
				line += "  " + rec.Message
			}
			fmt.Println(line)
		}
	},
}

func init() {
	uploadCmd.Flags().String("title", "", "photo title (single file only)")
	uploadCmd.Flags().String("description", "", "photo description (single file only)")
	uploadsCmd.Flags().Int("limit", 20, "number of records to show")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(uploadsCmd)
}
