package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/anoixa/album-client/config"
	"github.com/anoixa/album-client/internal/gallery"
	"github.com/spf13/cobra"
)

// galleryCmd 启动本地浏览服务
var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Serve a local read-only web gallery",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := newAppContext()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer app.Close()

		restoreCtx, cancelRestore := context.WithTimeout(cmd.Context(), 30*time.Second)
		if err := app.session.Restore(restoreCtx); err != nil {
			cancelRestore()
			log.Fatalf("Failed to restore session: %v", err)
		}
		cancelRestore()

		cfg := config.Get()
		factory, err := app.cacheFactory()
		if err != nil {
			log.Printf("[Gallery] Cache unavailable, continuing without: %v", err)
			factory = nil
		}

		server := gallery.NewServer(app.albums, app.session, app.client, app.state, factory, time.Duration(cfg.CacheTTL)*time.Second)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := cfg.GalleryAddr()
		fmt.Printf("Gallery listening on http://%s\n", addr)
		if err := server.Run(ctx, addr); err != nil {
			log.Fatalf("Gallery server error: %v", err)
		}
		log.Println("[Gallery] Server stopped")
	},
}

func init() {
	rootCmd.AddCommand(galleryCmd)
}
