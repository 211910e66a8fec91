// Package cli implements templatectl, the administration tool for course templates.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/yourorg/course-template-service/internal/app"
	"github.com/yourorg/course-template-service/internal/config"
	"github.com/yourorg/course-template-service/internal/model"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Bootstrap builds the service graph for one command run
type Bootstrap func(configPath string) (*app.App, error)

// DefaultBootstrap loads the configuration file and connects to postgres
func DefaultBootstrap(configPath string) (*app.App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := app.ConnectDB(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a, err := app.New(cfg, db, logger, app.Options{})
	if err != nil {
		db.Close()
		return nil, err
	}
	a.OnClose(db.Close)
	a.OnClose(func() error {
		_ = logger.Sync()
		return nil
	})

	return a, nil
}

type options struct {
	bootstrap  Bootstrap
	configPath string
	output     string
	userID     int
}

// NewRootCommand creates the templatectl command tree
func NewRootCommand(bootstrap Bootstrap) *cobra.Command {
	opts := &options{bootstrap: bootstrap}

	root := &cobra.Command{
		Use:           "templatectl",
		Short:         "Manage course templates",
		Long:          `templatectl lists and maintains course templates and creates courses from them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "yaml", "json":
				return nil
			default:
				return fmt.Errorf("unsupported output format %q (want yaml or json)", opts.output)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "config/config.yaml", "Config file path")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "yaml", "Output format: yaml or json")
	root.PersistentFlags().IntVar(&opts.userID, "user", 2, "User id recorded as the actor")

	root.AddCommand(
		newTemplatesCommand(opts),
		newTagsCommand(opts),
		newCourseCommand(opts),
		newMigrateCommand(opts),
	)

	return root
}

// Execute runs templatectl with the default bootstrap
func Execute() {
	if err := NewRootCommand(DefaultBootstrap).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withApp bootstraps the services, runs fn and closes them again
func (o *options) withApp(fn func(a *app.App) error) error {
	a, err := o.bootstrap(o.configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func (o *options) actor() model.Actor {
	return model.Actor{UserID: o.userID}
}

func (o *options) print(w io.Writer, v interface{}) error {
	if o.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
