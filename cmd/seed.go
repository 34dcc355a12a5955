/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/b-cal/apiserver/internal/auth"
	"github.com/b-cal/apiserver/internal/db"
	"github.com/b-cal/apiserver/internal/seed"
	"github.com/b-cal/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var seedForce bool

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Reset the database and insert sample users and entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		if !seedForce {
			fmt.Fprintf(cmd.OutOrStdout(), "This deletes every user and calendar entry in %s. Continue? [y/N] ", cfg.Database.DBName)
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if !strings.EqualFold(strings.TrimSpace(answer), "y") {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		result, err := seed.Run(cmd.Context(), store.NewUserRepository(conn), store.NewCalendarRepository(conn), auth.NewBcryptHasher())
		if err != nil {
			return err
		}
		logger.Info("database seeded", "users", result.Users, "entries", result.Entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().BoolVarP(&seedForce, "force", "f", false, "skip the confirmation prompt")
}
