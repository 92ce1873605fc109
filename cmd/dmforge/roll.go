package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmforge-dev/dmforge/pkg/dice"
)

var rollCmd = &cobra.Command{
	Use:   "roll <dice>",
	Short: "Roll dice from the command line",
	Long:  `Rolls dice using standard notation, e.g. "dmforge roll d20" or "dmforge roll 3d6".`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, sides, err := parseDiceNotation(args[0])
		if err != nil {
			return err
		}

		result, err := dice.NewRoller().Roll(sides, count)
		if err != nil {
			return err
		}

		if count == 1 {
			fmt.Printf("d%d: %d\n", sides, result.Total)
			return nil
		}
		rolls := make([]string, len(result.Rolls))
		for i, r := range result.Rolls {
			rolls[i] = strconv.Itoa(r)
		}
		fmt.Printf("%dd%d: %s = %d\n", count, sides, strings.Join(rolls, " + "), result.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollCmd)
}

// parseDiceNotation parses "d20" or "3d6" into count and sides.
func parseDiceNotation(s string) (count, sides int, err error) {
	countPart, sidesPart, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "d")
	if !found {
		return 0, 0, fmt.Errorf("invalid dice notation %q, expected e.g. d20 or 3d6", s)
	}

	count = 1
	if countPart != "" {
		count, err = strconv.Atoi(countPart)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid dice count %q", countPart)
		}
	}

	sides, err = strconv.Atoi(sidesPart)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid die size %q", sidesPart)
	}
	return count, sides, nil
}
