package main

import (
	"log"

	"github.com/anoixa/album-client/cmd"
	"github.com/anoixa/album-client/config"
)

func main() {
	log.Printf("album-client %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
