package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"docadmin/internal/editor"
	"docadmin/internal/model"
)

// openSession resolves a document and opens an edit session on it.
func (a *App) openSession(cmd *cobra.Command, token string) (*editor.Session, error) {
	name, doc, err := a.resolve(cmd, token)
	if err != nil {
		return nil, err
	}
	store, err := a.connect(cmd.Context())
	if err != nil {
		return nil, err
	}

	// Without a clipboard the clipboard commands fail with ErrNoClipboard
	clip, _ := a.clipboard()
	return editor.NewSession(name, doc, store, clip), nil
}

func (a *App) editCommand() *cobra.Command {
	var sets, unsets []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change or remove fields of a document",
		Long: `Edit replaces field text and saves only the fields that changed.

Each --set takes field=text where text is what the field would show in the
editor: a number for numeric fields, relaxed Extended JSON for objects,
arrays and other typed values, and plain text otherwise. --unset removes a
field from the stored document.`,
		Example: `  docadmin -c players edit 507f1f77bcf86cd799439011 --set level=7
  docadmin -c players edit 507f1f77bcf86cd799439011 --set 'inventory={"sword": 2}' --unset nickname`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openSession(cmd, args[0])
			if err != nil {
				return err
			}

			for _, assignment := range sets {
				key, text, ok := strings.Cut(assignment, "=")
				if !ok {
					return errors.Errorf("invalid --set %q, expected field=text", assignment)
				}
				if err := session.SetField(key, text); err != nil {
					return errors.Wrapf(err, "cannot set %s", key)
				}
			}
			for _, key := range unsets {
				if err := session.RemoveField(key); err != nil {
					return errors.Wrapf(err, "cannot unset %s", key)
				}
			}

			return finish(cmd, session, dryRun)
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=text to change (repeatable)")
	cmd.Flags().StringArrayVar(&unsets, "unset", nil, "field to remove (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the change as a merge patch without saving")
	return cmd
}

func (a *App) exportCommand() *cobra.Command {
	var toClipboard bool

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a document as importable text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openSession(cmd, args[0])
			if err != nil {
				return err
			}
			defer session.Discard()

			if toClipboard {
				if err := session.ExportToClipboard(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out(cmd), "Copied to clipboard")
				return nil
			}

			text, err := session.Export()
			if err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&toClipboard, "clipboard", false, "copy to the system clipboard instead of printing")
	return cmd
}

func (a *App) importCommand() *cobra.Command {
	var file string
	var fromClipboard, dryRun bool

	cmd := &cobra.Command{
		Use:   "import <id>",
		Short: "Merge exported text back into a document",
		Long: `Import reads a document exported by "docadmin export" (or written by
hand, shell syntax such as ObjectId("...") is accepted) and merges its fields
into the document. The identifier in the text must match the document.
Fields the document does not have are ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.openSession(cmd, args[0])
			if err != nil {
				return err
			}

			if fromClipboard {
				err = session.ImportFromClipboard(cmd.Context())
			} else {
				var text string
				text, err = readInput(cmd, file)
				if err == nil {
					err = session.Import(text)
				}
			}
			if err != nil {
				return err
			}

			return finish(cmd, session, dryRun)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "file to import, - for stdin")
	cmd.Flags().BoolVar(&fromClipboard, "clipboard", false, "import from the system clipboard")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the change as a merge patch without saving")
	return cmd
}

// finish saves the session, or prints its pending change for a dry run.
func finish(cmd *cobra.Command, session *editor.Session, dryRun bool) error {
	if dryRun {
		defer session.Discard()

		update, err := session.Pending()
		if err != nil {
			return err
		}
		if update.IsEmpty() {
			fmt.Fprintln(out(cmd), "No changes")
			return nil
		}
		patch, err := editor.MergePatch(session.Document(), update)
		if err != nil {
			return err
		}
		fmt.Fprintln(out(cmd), string(patch))
		return nil
	}

	result, err := session.Save(cmd.Context())
	if err != nil {
		return err
	}
	if result.Update.IsEmpty() {
		fmt.Fprintln(out(cmd), "No changes")
		return nil
	}

	fmt.Fprintf(out(cmd), "Saved %d field(s) in %s", result.Update.Len(), session.Collection())
	if !result.Modified {
		fmt.Fprint(out(cmd), " (values already stored)")
	}
	fmt.Fprintln(out(cmd))
	fmt.Fprintln(out(cmd), string(result.MergePatch))
	return nil
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read input")
	}
	return string(data), nil
}

// documentFromText parses a document for insertion. The identifier is optional.
func documentFromText(text string) (model.Document, error) {
	parsed, err := editor.ParseSnapshot(text)
	if err != nil {
		return model.Document{}, &editor.ImportError{Kind: editor.MalformedInput, Err: err}
	}

	doc, err := model.DocumentFromBSON(parsed)
	if errors.Is(err, model.ErrMissingID) {
		fields := make([]model.Field, 0, len(parsed))
		for _, e := range parsed {
			fields = append(fields, model.Field{Key: e.Key, Value: model.FromBSON(e.Value)})
		}
		return model.NewDocument(nil, fields...), nil
	}
	return doc, err
}
