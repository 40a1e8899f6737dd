package main

import (
	"log"

	"github.com/dr-electrique/rapport-server/cmd"
	"github.com/dr-electrique/rapport-server/config"
)

func main() {
	log.Printf("rapport-server %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
