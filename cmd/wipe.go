package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pmcompanion/pmcompanion/config"
	"github.com/pmcompanion/pmcompanion/internal/store"
)

func wipeCMD() *cobra.Command {
	var cfgPath string
	var yes bool

	var wipe = &cobra.Command{
		Use:   "wipe",
		Short: "Destroy the chat schema (policies, trigger, tables). Users survive.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Fprint(os.Stderr, "this drops all chats, messages, artifacts and telemetry; type 'wipe' to continue: ")
				line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				if strings.TrimSpace(line) != "wipe" {
					return fmt.Errorf("aborted")
				}
			}
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			var st *store.Store
			if dsn, err := cfg.Storage.Postgres.DSN(); err == nil {
				st, err = store.NewWithDSN(cmd.Context(), dsn)
				if err != nil {
					return err
				}
			} else {
				// no config file; fall back to DATABASE_URL / POSTGRES_* envs
				st, err = store.New(cmd.Context())
				if err != nil {
					return err
				}
			}
			return st.Wipe(cmd.Context())
		},
	}
	wipe.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	wipe.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file directory (default is .)")

	return wipe
}
