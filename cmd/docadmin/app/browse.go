package app

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"docadmin/internal/collection"
	"docadmin/internal/editor"
	"docadmin/internal/identity"
	"docadmin/internal/model"
	"docadmin/internal/storage"
)

func (a *App) collectionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections of the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			names, err := store.ListCollections(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(out(cmd), name)
			}
			return nil
		},
	}
}

func (a *App) listCommand() *cobra.Command {
	var (
		field, value string
		refresh      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the documents of the active collection",
		Long: `List prints one line per document: the identifier followed by the
document as relaxed Extended JSON.

With --field and --value only documents whose field equals the value are
listed. The value is parsed as Extended JSON when possible, so --value 5
matches the number and --value '"5"' the string.

Listings are cached for a few minutes. --refresh reads the collection from
the server again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.requireCollection()
			if err != nil {
				return err
			}
			store, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}

			if field != "" {
				docs, err := store.FindByField(cmd.Context(), name, field, parseFilterValue(value))
				if err != nil {
					return err
				}
				printDocuments(cmd, docs)
				fmt.Fprintf(out(cmd), "%d documents in %s where %s = %s\n", len(docs), name, field, value)
				return nil
			}

			vm := collection.NewViewModel(store)
			if err := vm.SwitchCollection(cmd.Context(), name); err != nil {
				return err
			}
			if refresh {
				if err := vm.Reload(cmd.Context()); err != nil {
					return err
				}
			}
			state := vm.Snapshot()
			printDocuments(cmd, state.Documents)
			fmt.Fprintln(out(cmd), state.StatusMessage)
			return nil
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "only list documents where this field equals --value")
	cmd.Flags().StringVar(&value, "value", "", "value for --field")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "skip the cached listing and read the collection from the server")
	return cmd
}

func (a *App) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one document as editable text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, doc, err := a.resolve(cmd, args[0])
			if err != nil {
				return err
			}
			text, err := editor.FormatSnapshot(editor.ExportSnapshot(doc, editor.NewBuffer(doc)))
			if err != nil {
				return errors.Wrapf(err, "failed to format document from %s", name)
			}
			fmt.Fprintln(out(cmd), text)
			return nil
		},
	}
}

// resolve finds a document of the active collection by any form of its identifier
// and reads its current state from the store.
func (a *App) resolve(cmd *cobra.Command, token string) (string, model.Document, error) {
	name, err := a.requireCollection()
	if err != nil {
		return "", model.Document{}, err
	}
	store, err := a.connect(cmd.Context())
	if err != nil {
		return "", model.Document{}, err
	}

	vm := collection.NewViewModel(store)
	if err := vm.SwitchCollection(cmd.Context(), name); err != nil {
		return "", model.Document{}, err
	}

	listed, err := vm.Lookup(token)
	if errors.Is(err, collection.ErrNoDocument) {
		return "", model.Document{}, errors.Wrapf(storage.ErrNotFound, "no document %q in %s", token, name)
	}
	if err != nil {
		return "", model.Document{}, errors.Wrapf(err, "cannot select %q in %s", token, name)
	}

	// The listing may come from the cache, so sessions start from the server copy
	doc, err := store.FindOne(cmd.Context(), name, listed.ID)
	if err != nil {
		return "", model.Document{}, errors.Wrapf(err, "failed to read %q from %s", token, name)
	}
	return name, doc, nil
}

func printDocuments(cmd *cobra.Command, docs []model.Document) {
	for _, doc := range docs {
		fmt.Fprintf(out(cmd), "%s\t%s\n", identity.Normalize(doc.ID), doc)
	}
}

// parseFilterValue reads an Extended JSON value and falls back to the raw string.
func parseFilterValue(text string) interface{} {
	v, err := model.UnmarshalRelaxed([]byte(text))
	if err != nil {
		return text
	}
	return v
}
