package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/changeset"
	"github.com/codeatlas-dev/codeatlas/internal/observability"
)

// NewChangesetCommand creates the "changeset" command group: propose,
// apply, roll back, and commit multi-file changesets (spec §4.I).
func NewChangesetCommand(g Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "changeset",
		Short:         "Propose, apply, and roll back multi-file changesets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newChangesetProposeCommand(g))
	cmd.AddCommand(newChangesetApplyCommand(g))
	cmd.AddCommand(newChangesetRollbackCommand(g))
	cmd.AddCommand(newChangesetCommitCommand(g))

	return cmd
}

func newChangesetProposeCommand(g Globals) *cobra.Command {
	var (
		root       string
		snapshotID string
		title      string
		rationale  string
		patchFiles []string
	)

	cmd := &cobra.Command{
		Use:           "propose",
		Short:         "Propose a multi-file patch against a snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			if len(patchFiles) == 0 {
				return fmt.Errorf("at least one --patch <relpath>=<newfile> is required")
			}

			rootPath, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve root path: %w", err)
			}

			patches, err := loadPatches(rootPath, patchFiles)
			if err != nil {
				return err
			}

			d, err := g.load(observability.ModeCLI)
			if err != nil {
				return err
			}
			defer d.close(cobraCmd.Context())

			cs, err := d.applier.Create(cobraCmd.Context(), rootPath, snapshotID, title, rationale, patches)
			if err != nil {
				return fmt.Errorf("propose changeset: %w", err)
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "changeset %s: %s\n", cs.ID, cs.Status)

			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "project working tree root")
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "snapshot id this changeset is proposed against")
	cmd.Flags().StringVar(&title, "title", "", "short changeset title")
	cmd.Flags().StringVar(&rationale, "rationale", "", "why this change is proposed")
	cmd.Flags().StringArrayVar(&patchFiles, "patch", nil,
		"project-relative file path and a local file holding its proposed content, as path=localfile (repeatable)")

	return cmd
}

// loadPatches reads each --patch path=localfile argument's local file
// content, relative to the invoking shell's working directory (not
// root, which is the target project's tree).
func loadPatches(_ string, patchFiles []string) ([]changeset.NewPatch, error) {
	patches := make([]changeset.NewPatch, 0, len(patchFiles))

	for _, spec := range patchFiles {
		relPath, localFile, ok := splitPatchSpec(spec)
		if !ok {
			return nil, fmt.Errorf("invalid --patch %q, expected path=localfile", spec)
		}

		content, err := os.ReadFile(localFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", localFile, err)
		}

		patches = append(patches, changeset.NewPatch{FilePath: relPath, NewContent: string(content)})
	}

	return patches, nil
}

func splitPatchSpec(spec string) (relPath, localFile string, ok bool) {
	for i := range spec {
		if spec[i] == '=' {
			return spec[:i], spec[i+1:], true
		}
	}

	return "", "", false
}

func newChangesetApplyCommand(g Globals) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:           "apply <changeset-id>",
		Short:         "Apply a proposed changeset to the working tree",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			rootPath, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve root path: %w", err)
			}

			d, err := g.load(observability.ModeCLI)
			if err != nil {
				return err
			}
			defer d.close(cobraCmd.Context())

			if err := d.applier.Apply(cobraCmd.Context(), rootPath, args[0]); err != nil {
				return fmt.Errorf("apply changeset: %w", err)
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "changeset %s applied\n", args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "project working tree root")

	return cmd
}

func newChangesetRollbackCommand(g Globals) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:           "rollback <changeset-id>",
		Short:         "Revert an applied changeset's files to their prior content",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			rootPath, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve root path: %w", err)
			}

			d, err := g.load(observability.ModeCLI)
			if err != nil {
				return err
			}
			defer d.close(cobraCmd.Context())

			if err := d.applier.Rollback(cobraCmd.Context(), rootPath, args[0]); err != nil {
				return fmt.Errorf("rollback changeset: %w", err)
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "changeset %s rolled back\n", args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "project working tree root")

	return cmd
}

func newChangesetCommitCommand(g Globals) *cobra.Command {
	var (
		root    string
		message string
	)

	cmd := &cobra.Command{
		Use:           "commit <changeset-id>",
		Short:         "Stage and commit an applied changeset's files via VCS",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			rootPath, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve root path: %w", err)
			}

			d, err := g.load(observability.ModeCLI)
			if err != nil {
				return err
			}
			defer d.close(cobraCmd.Context())

			collaborator := collaboratorFor(rootPath)
			d.applier.VCS = collaborator

			sha, err := d.applier.Commit(cobraCmd.Context(), rootPath, args[0], message)
			if err != nil {
				return fmt.Errorf("commit changeset: %w", err)
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "changeset %s committed as %s\n", args[0], sha)

			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "project working tree root")
	cmd.Flags().StringVar(&message, "message", "", "commit message")

	return cmd
}
