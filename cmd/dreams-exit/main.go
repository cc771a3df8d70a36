package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/zym9863/Dream-s-Exit/dreamservice"
)

func main() {
	if err := dreamservice.Run(); err != nil {
		log.Error().Err(err).Msg("dreams-exit exited with error")
		os.Exit(1)
	}
}
