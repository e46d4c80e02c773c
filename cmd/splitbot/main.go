package main

import (
	"log"

	corecmd "github.com/opensplit/splitbot/core/cmd"
	coreconfig "github.com/opensplit/splitbot/core/config"

	"github.com/opensplit/splitbot/internal/bot"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        coreconfig.Load,
		Bootstrap: func(cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
			return bot.New(cfg)
		},
	})
	if err != nil {
		log.Fatalf("splitbot: %v", err)
	}
}
