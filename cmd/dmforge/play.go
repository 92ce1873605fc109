package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/dmforge-dev/dmforge/internal/dm"
	"github.com/dmforge-dev/dmforge/internal/tools"
	"github.com/dmforge-dev/dmforge/pkg/config"
	"github.com/dmforge-dev/dmforge/pkg/dice"
	"github.com/dmforge-dev/dmforge/pkg/game"
	metrics "github.com/dmforge-dev/dmforge/pkg/observability"
)

var playCmd = &cobra.Command{
	Use:   "play [player name]",
	Short: "Play a single-player session in the terminal",
	Long:  `Starts an interactive session against the AI Dungeon Master using the file storage backend. State persists across runs of the same game id.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		playerName := "Adventurer"
		if len(args) > 0 {
			playerName = args[0]
		}
		gameID, _ := cmd.Flags().GetString("game")
		return runPlay(configPath, playerName, gameID)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().String("game", "", "Resume an existing game by id")
}

func runPlay(configPath, playerName, gameID string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.OpenAIKey == "" {
		return fmt.Errorf("an OpenAI API key is required to play (set OPENAI_API_KEY)")
	}

	metrics.InitMetrics()

	backend, err := game.NewFileBackend(cfg.Storage.FileDir)
	if err != nil {
		return err
	}

	clientCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	narrator := dm.NewAgent(
		openai.NewClientWithConfig(clientCfg),
		cfg.Model,
		tools.NewRegistry(dice.NewRoller()),
		dm.WithTimeout(cfg.Narrator.Timeout.Duration),
		dm.WithTemperature(cfg.Temperature),
	)

	manager := game.NewManager(backend, narrator)
	defer manager.Close()

	ctx := context.Background()

	var state *game.State
	if gameID != "" {
		state, err = manager.GetSession(ctx, gameID)
	} else {
		state, err = manager.CreateSession(ctx, []string{playerName})
	}
	if err != nil {
		return err
	}
	player := state.Players[0]

	fmt.Printf("Game %s. You are %s (player %s). Type your actions, or 'quit' to leave.\n", state.ID, player.Name, player.ID)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Println("\nFarewell, adventurer.")
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			fmt.Println("Farewell, adventurer.")
			return nil
		}
		line.AppendHistory(input)

		state, err = manager.SubmitAction(ctx, state.ID, player.ID, input)
		if err != nil {
			fmt.Printf("The DM could not respond: %v\n", err)
			continue
		}

		if len(state.Log) > 0 {
			last := state.Log[len(state.Log)-1]
			if last.Type == game.EventDMResponse {
				if msg, ok := last.Payload["message"].(string); ok {
					fmt.Printf("\n%s\n\n", msg)
				}
			}
		}
	}
}
