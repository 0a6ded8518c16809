package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/chrislearn/mofa-studio/companionservice"
)

func main() {
	if err := companionservice.Run(); err != nil {
		log.Error().Err(err).Msg("companion service exited with error")
		os.Exit(1)
	}
}
