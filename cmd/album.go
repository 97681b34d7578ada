package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/anoixa/album-client/internal/albums"
	"github.com/spf13/cobra"
)

// albumCmd 相册管理
var albumCmd = &cobra.Command{
	Use:   "album",
	Short: "Manage albums",
}

var albumListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your albums",
	Run: func(cmd *cobra.Command, args []string) {
		app := mustAuthenticatedApp(cmd)
		defer app.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		list, err := app.albums.FetchAlbums(ctx)
		if err != nil {
			log.Fatalf("Failed to fetch albums: %v", err)
		}

		if len(list) == 0 {
			fmt.Println("No albums yet.")
			return
		}
		for _, album := range list {
			shared := ""
			if album.ShareToken != "" {
				shared = " (shared)"
			}
			fmt.Printf("%-6s %-30s %3d photos%s\n", album.ID, album.Name, album.PhotoCount, shared)
		}
	},
}

var albumCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new album",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustAuthenticatedApp(cmd)
		defer app.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		description, _ := cmd.Flags().GetString("description")
		album, err := app.albums.CreateAlbum(ctx, args[0], description)
		if err != nil {
			log.Fatalf("Failed to create album: %v", err)
		}
		fmt.Printf("Created album %s (%s)\n", album.Name, album.ID)
	},
}

var albumUpdateCmd = &cobra.Command{
	Use:   "update <id> <name>",
	Short: "Update an album",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustAuthenticatedApp(cmd)
		defer app.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		var description *string
		if cmd.Flags().Changed("description") {
			value, _ := cmd.Flags().GetString("description")
			description = &value
		}
		cover, _ := cmd.Flags().GetString("cover")

		album, err := app.albums.UpdateAlbum(ctx, args[0], args[1], description, cover)
		if err != nil {
			log.Fatalf("Failed to update album: %v", err)
		}
		fmt.Printf("Updated album %s (%s)\n", album.Name, album.ID)
	},
}

var albumDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an album",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustAuthenticatedApp(cmd)
		defer app.Close()

		force, _ := cmd.Flags().GetBool("yes")
		if !force && !confirm(fmt.Sprintf("Delete album %s? This cannot be undone.", args[0])) {
			fmt.Println("Cancelled.")
			return
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := app.albums.DeleteAlbum(ctx, args[0]); err != nil {
			log.Fatalf("Failed to delete album: %v", err)
		}
		fmt.Println("Album deleted.")
	},
}

var albumShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show album details with photos",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustAuthenticatedApp(cmd)
		defer app.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		album, err := app.albums.GetAlbum(ctx, args[0])
		if err != nil {
			log.Fatalf("Failed to fetch album: %v", err)
		}
		printAlbum(album)
	},
}

var photoDeleteCmd = &cobra.Command{
	Use:   "remove-photos <album-id> <photo-id>...",
	Short: "Remove photos from an album",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustAuthenticatedApp(cmd)
		defer app.Close()

		force, _ := cmd.Flags().GetBool("yes")
		if !force && !confirm(fmt.Sprintf("Remove %d photo(s) from album %s? This cannot be undone.", len(args)-1, args[0])) {
			fmt.Println("Cancelled.")
			return
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := app.albums.DeletePhotos(ctx, args[0], args[1:]); err != nil {
			log.Fatalf("Failed to remove photos: %v", err)
		}
		fmt.Println("Photos removed.")
	},
}

// printAlbum 打印相册详情
func printAlbum(album *albums.Album) {
	fmt.Printf("Album:       %s (%s)\n", album.Name, album.ID)
	if album.Description != "" {
		fmt.Printf("Description: %s\n", album.Description)
	}
	if !album.CreatedAt.IsZero() {
		fmt.Printf("Created:     %s\n", album.CreatedAt.Local().Format("2006-01-02"))
	}
	if album.ShareToken != "" {
		fmt.Printf("Share token: %s\n", album.ShareToken)
	}
	fmt.Printf("Photos:      %d\n", len(album.Images))
	for _, photo := range album.Images {
		fmt.Printf("  %-6s %-30s %s\n", photo.ID, photo.Name, photo.URL)
	}
}

// mustAuthenticatedApp 装配应用并恢复会话，未认证时退出。
// 受保护命令入口，进入时清除受邀模式。
func mustAuthenticatedApp(cmd *cobra.Command) *appContext {
	app, err := newAppContext()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if err := app.session.Restore(ctx); err != nil {
		log.Fatalf("Failed to restore session: %v", err)
	}
	if _, err := app.session.RequireAuthenticated(); err != nil {
		log.Fatalf("%v", err)
	}
	return app
}

// commandContext 命令级超时
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 2*time.Minute)
}

// confirm 读取 y/N 确认
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func init() {
	albumCreateCmd.Flags().String("description", "", "album description")
	albumUpdateCmd.Flags().String("description", "", "album description")
	albumUpdateCmd.Flags().String("cover", "", "cover photo id")
	albumDeleteCmd.Flags().Bool("yes", false, "skip confirmation")
	photoDeleteCmd.Flags().Bool("yes", false, "skip confirmation")

	albumCmd.AddCommand(albumListCmd)
	albumCmd.AddCommand(albumCreateCmd)
	albumCmd.AddCommand(albumUpdateCmd)
	albumCmd.AddCommand(albumDeleteCmd)
	albumCmd.AddCommand(albumShowCmd)
	albumCmd.AddCommand(photoDeleteCmd)
	rootCmd.AddCommand(albumCmd)
}
