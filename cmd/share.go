package cmd

import (
	"errors"
	"fmt"
	"log"

	"github.com/anoixa/album-client/internal/albums"
	"github.com/spf13/cobra"
)

// shareCmd 分享链接管理
var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Manage album share links",
}

var shareCreateCmd = &cobra.Command{
	Use:   "create <album-id>",
	Short: "Create a share link for an album",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustAuthenticatedApp(cmd)
		defer app.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		token, err := app.albums.CreateShareLink(ctx, args[0])
		if err != nil {
			log.Fatalf("Failed to create share link: %v", err)
		}
		fmt.Printf("Share token: %s\n", token)
		fmt.Printf("Share URL:   %s\n", app.client.ResolveURL("/share/"+token))
	},
}

var shareRevokeCmd = &cobra.Command{
	Use:   "revoke <album-id>",
	Short: "Revoke active share links for an album",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := mustAuthenticatedApp(cmd)
		defer app.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := app.albums.RevokeShareLink(ctx, args[0]); err != nil {
			log.Fatalf("Failed to revoke share links: %v", err)
		}
		fmt.Println("Share links revoked.")
	},
}

// shareShowCmd 匿名查看共享相册，对应受邀访问入口
var shareShowCmd = &cobra.Command{
	Use:   "show <token>",
	Short: "View a shared album by token (no sign-in required)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newAppContext()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.Close()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		shared, err := app.albums.GetShared(ctx, args[0])
		if err != nil {
			switch {
			case errors.Is(err, albums.ErrShareNotFound):
				log.Fatal("This share link does not exist.")
			case errors.Is(err, albums.ErrShareExpired):
				log.Fatal("This share link has expired.")
			default:
				log.Fatalf("Failed to load shared album: %v", err)
			}
		}

		remember, _ := cmd.Flags().GetBool("remember")
		if remember {
			app.session.EnterInvitedMode(args[0])
			fmt.Println("Entered invited mode; signed-in session cleared.")
		}

		fmt.Printf("Album: %s\n", shared.Name)
		if shared.Description != "" {
			fmt.Printf("About: %s\n", shared.Description)
		}
		fmt.Printf("Photos: %d\n", len(shared.Images))
		for _, photo := range shared.Images {
			fmt.Printf("  %-30s %s\n", photo.Name, photo.URL)
		}
	},
}

func init() {
	shareShowCmd.Flags().Bool("remember", false, "enter invited mode for this album")

	shareCmd.AddCommand(shareCreateCmd)
	shareCmd.AddCommand(shareRevokeCmd)
	shareCmd.AddCommand(shareShowCmd)
	rootCmd.AddCommand(shareCmd)
}
