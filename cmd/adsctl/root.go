package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dvcrn/adboard/internal/api"
	"github.com/dvcrn/adboard/internal/app"
	"github.com/dvcrn/adboard/internal/client"
	"github.com/dvcrn/adboard/internal/config"
	"github.com/dvcrn/adboard/internal/logger"
	"github.com/spf13/cobra"
)

// cli holds global flags and the client built from them.
type cli struct {
	configPath string
	baseURL    string
	storeType  string
	output     string
	verbose    bool

	out    io.Writer
	client *client.Client
	api    *api.API
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "adsctl",
		Short: "Command-line client for the classifieds marketplace",
		Long: `adsctl talks to the marketplace API with a stored session.

Log in once with "adsctl login"; expired access tokens are refreshed
automatically and the session is cleared when the refresh token is no
longer accepted.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "Path to config file (default: $CONFIG_PATH or ./adboard.yaml)")
	flags.StringVar(&c.baseURL, "base-url", "", "Marketplace API base URL")
	flags.StringVar(&c.storeType, "store", "", "Session store: memory, file, env, keychain or redis")
	flags.StringVarP(&c.output, "output", "o", "json", "Output format: json or yaml")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.refreshCmd(),
		c.statusCmd(),
		c.adsCmd(),
		c.categoriesCmd(),
		c.profileCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
		return nil
	}
	if c.output != "json" && c.output != "yaml" {
		return fmt.Errorf("unknown output format %q", c.output)
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.baseURL != "" {
		cfg.API.BaseURL = c.baseURL
	}
	if c.storeType != "" {
		cfg.Store.Type = c.storeType
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	log := logger.New(cfg.Env, level)

	store, err := app.NewStore(cmd.Context(), cfg.Store, log)
	if err != nil {
		return err
	}
	c.client, err = app.NewClient(cfg, store, log, nil)
	if err != nil {
		return err
	}
	c.api = api.New(c.client)
	return nil
}

func (c *cli) print(v interface{}) error {
	return printResult(c.out, c.output, v)
}

// explain turns a lost session into an actionable message.
func explain(err error) error {
	if errors.Is(err, client.ErrNoRefreshToken) || errors.Is(err, client.ErrRefreshFailed) {
		return fmt.Errorf("%w (run \"adsctl login\")", err)
	}
	return err
}
