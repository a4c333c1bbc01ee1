package main

import (
	"github.com/charmbracelet/log"

	"github.com/songzhibin97/ipclass/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal("ipclass terminated", "error", err)
	}
}
