package cli

import (
	"fmt"
	"strconv"

	"github.com/yourorg/course-template-service/internal/app"
	"github.com/yourorg/course-template-service/internal/model"

	"github.com/spf13/cobra"
)

// templateView is the printed form of a template
type templateView struct {
	ID          int      `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	CourseID    int      `json:"course_id" yaml:"course_id"`
	Archive     string   `json:"archive,omitempty" yaml:"archive,omitempty"`
	Screenshot  string   `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

func viewTemplate(t *model.Template) templateView {
	v := templateView{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		CourseID:    t.CourseID,
		Archive:     t.ArchiveName(),
	}
	if t.Screenshot != nil {
		v.Screenshot = *t.Screenshot
	}
	for _, tag := range t.Tags {
		v.Tags = append(v.Tags, tag.Name)
	}
	return v
}

func newTemplatesCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template", "tpl"},
		Short:   "Template management commands",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List templates ordered by name",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(func(a *app.App) error {
					templates, err := a.TemplateService.ListTemplates(cmd.Context())
					if err != nil {
						return err
					}
					views := make([]templateView, len(templates))
					for i := range templates {
						views[i] = viewTemplate(&templates[i])
					}
					return opts.print(cmd.OutOrStdout(), views)
				})
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show one template",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return opts.withApp(func(a *app.App) error {
					template, err := a.TemplateService.GetTemplate(cmd.Context(), id)
					if err != nil {
						return err
					}
					return opts.print(cmd.OutOrStdout(), viewTemplate(template))
				})
			},
		},
		newTemplateCreateCommand(opts),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a template, its tags and its files",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return opts.withApp(func(a *app.App) error {
					if err := a.TemplateService.DeleteTemplate(cmd.Context(), id, opts.userID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Template %d deleted\n", id)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "archive <id>",
			Short: "Create the template archive if it does not exist yet",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return opts.withApp(func(a *app.App) error {
					template, err := a.TemplateService.GetTemplate(cmd.Context(), id)
					if err != nil {
						return err
					}
					ref, err := a.ArchiveService.EnsureArchive(cmd.Context(), template, opts.userID)
					if err != nil {
						return err
					}
					return opts.print(cmd.OutOrStdout(), map[string]string{
						"filename": ref.Filename,
						"path":     ref.Path(),
					})
				})
			},
		},
	)

	return cmd
}

func newTemplateCreateCommand(opts *options) *cobra.Command {
	var req model.TemplateCreate

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Save a course as a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				template, err := a.TemplateService.CreateTemplate(cmd.Context(), &req)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), viewTemplate(template))
			})
		},
	}

	cmd.Flags().IntVar(&req.CourseID, "course", 0, "Source course id")
	cmd.Flags().StringVar(&req.Name, "name", "", "Template name")
	cmd.Flags().StringVar(&req.Description, "description", "", "Template description")
	cmd.Flags().StringVar(&req.Tags, "tags", "", "Comma separated tags")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newTagsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags with the number of templates using them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				tags, err := a.TemplateService.ListTags(cmd.Context())
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), tags)
			})
		},
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", s, model.ErrInvalidInput)
	}
	return id, nil
}
