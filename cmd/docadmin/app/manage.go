package app

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"docadmin/internal/identity"
	"docadmin/internal/settings"
)

func (a *App) insertCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a new document",
		Long: `Insert reads one document as relaxed Extended JSON. Without an _id the
server generates one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.requireCollection()
			if err != nil {
				return err
			}
			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			doc, err := documentFromText(text)
			if err != nil {
				return err
			}

			store, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			id, err := store.Insert(cmd.Context(), name, doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Inserted %s into %s\n", identity.Normalize(id), name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "file to read, - for stdin")
	return cmd
}

func (a *App) deleteCommand() *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to delete without --yes")
			}

			name, doc, err := a.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			store, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}

			deleted, err := store.Delete(cmd.Context(), name, doc.ID)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintf(out(cmd), "%s was already gone from %s\n", identity.Normalize(doc.ID), name)
				return nil
			}
			fmt.Fprintf(out(cmd), "Deleted %s from %s\n", identity.Normalize(doc.ID), name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "confirm the deletion")
	return cmd
}

func (a *App) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the saved connection",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			password := ""
			if cfg.Connection.Password != "" {
				password = "********"
			}

			w := out(cmd)
			fmt.Fprintf(w, "file:       %s\n", a.settings.Path())
			fmt.Fprintf(w, "address:    %s\n", cfg.Connection.Address())
			fmt.Fprintf(w, "database:   %s\n", cfg.Connection.Database)
			fmt.Fprintf(w, "username:   %s\n", cfg.Connection.Username)
			fmt.Fprintf(w, "password:   %s\n", password)
			fmt.Fprintf(w, "collection: %s\n", a.collection)
			fmt.Fprintf(w, "cache:      %s (ttl %s)\n", cfg.Cache.Backend, cfg.Cache.TTL)
			return nil
		},
	})

	var conn settings.Connection
	set := &cobra.Command{
		Use:   "set",
		Short: "Save connection settings to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := a.settings.Connection()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("host") {
				current.Host = conn.Host
			}
			if flags.Changed("port") {
				current.Port = conn.Port
			}
			if flags.Changed("database") {
				current.Database = conn.Database
			}
			if flags.Changed("username") {
				current.Username = conn.Username
			}
			if flags.Changed("password") {
				current.Password = conn.Password
			}

			if err := a.settings.SaveConnection(current); err != nil {
				return errors.Wrap(err, "failed to save connection")
			}
			fmt.Fprintf(out(cmd), "Saved connection %s/%s to %s\n", current.Address(), current.Database, a.settings.Path())
			return nil
		},
	}
	set.Flags().StringVar(&conn.Host, "host", "", "server host")
	set.Flags().IntVar(&conn.Port, "port", 0, "server port")
	set.Flags().StringVar(&conn.Database, "database", "", "database name")
	set.Flags().StringVar(&conn.Username, "username", "", "user name")
	set.Flags().StringVar(&conn.Password, "password", "", "password")
	cmd.AddCommand(set)

	return cmd
}
