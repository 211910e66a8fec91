package cli

import (
	"fmt"
	"os"

	"github.com/yourorg/course-template-service/internal/app"
	"github.com/yourorg/course-template-service/internal/model"

	"github.com/spf13/cobra"
)

func newCourseCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Create or fill courses from templates",
	}
	cmd.AddCommand(newCourseCreateCommand(opts), newCourseImportCommand(opts))
	return cmd
}

func newCourseCreateCommand(opts *options) *cobra.Command {
	var req model.NewCourseRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new course from a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				result, err := a.CourseService.CreateCourse(cmd.Context(), opts.actor(), &req)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), result)
			})
		},
	}

	f := cmd.Flags()
	f.IntVar(&req.TemplateID, "template", 0, "Template id")
	f.IntVar(&req.CategoryID, "category", 0, "Category of the new course")
	f.StringVar(&req.Fullname, "fullname", "", "Course full name")
	f.StringVar(&req.Shortname, "shortname", "", "Course short name")
	f.StringVar(&req.IDNumber, "idnumber", "", "Course id number")
	f.Int64Var(&req.StartDate, "startdate", 0, "Course start date as unix time")
	f.StringVar(&req.Summary, "summary", "", "Course summary")
	f.BoolVar(&req.SetChannel, "setchannel", false, "Classify the course as a learning channel")
	f.StringVar(&req.CustomCourseHeading, "heading", "", "Custom course heading, used with --setchannel")
	for _, name := range []string{"template", "category", "fullname", "shortname"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newCourseImportCommand(opts *options) *cobra.Command {
	var req model.ImportRequest

	cmd := &cobra.Command{
		Use:   "import <course-id>",
		Short: "Add a template's content to an existing course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, err := parseID(args[0])
			if err != nil {
				return err
			}
			req.CourseID = courseID

			return opts.withApp(func(a *app.App) error {
				result, err := a.CourseService.ImportIntoCourse(cmd.Context(), opts.actor(), &req)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().IntVar(&req.TemplateID, "template", 0, "Template id")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func newMigrateCommand(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply a schema file to the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			return opts.withApp(func(a *app.App) error {
				if _, err := a.DB.ExecContext(cmd.Context(), string(schema)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", file)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "migrations/001_init.sql", "Schema file")
	return cmd
}
