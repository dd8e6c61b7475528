package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/fTr0ut/shelvesai/shelvesservice"
)

func main() {
	if err := shelvesservice.Run(); err != nil {
		log.Error().Err(err).Msg("shelves-service exited with error")
		os.Exit(1)
	}
}
