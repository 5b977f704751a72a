package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/insomniacdoll/animeloader/internal/buildinfo"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "animeloader-server",
		Short: "Surveille des flux RSS d'anime et déclenche les téléchargements",
	}
	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Affiche la version",
		Run: func(cmd *cobra.Command, args []string) {
			info := buildinfo.Current()
			cmd.Printf("animeloader-server %s", info.Version)
			if info.Commit != "" {
				cmd.Printf(" (%s, %s)", info.Commit, info.Date)
			}
			cmd.Println()
		},
	}
}
