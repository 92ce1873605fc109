package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags)
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "dmforge",
	Short:   "dmforge is an AI-narrated tabletop RPG session service",
	Long:    `dmforge runs turn-based RPG sessions narrated by an AI Dungeon Master that manages characters, experience and dice through tool calls.`,
	Version: Version,
}

func main() {
	// Missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to the configuration file")
}
