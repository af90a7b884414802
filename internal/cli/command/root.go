package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sessionguard/internal/infra/buildinfo"
	"github.com/yndnr/sessionguard/internal/infra/confloader"
	"github.com/yndnr/sessionguard/internal/server/config"
)

// App creates the sessionguard-server application. Running it without a
// command starts the server.
func App() *cli.App {
	return &cli.App{
		Name:                      "sessionguard-server",
		Usage:                     "single-session authentication service",
		Version:                   buildinfo.Get().Version,
		Flags:                     globalFlags(),
		DisableSliceFlagSeparator: true,
		Action:                    serveAction,
		Commands: []*cli.Command{
			ServeCommand(),
			CheckConfigCommand(),
			HashPasswordCommand(),
			VersionCommand(),
		},
	}
}

// globalFlags returns the flags shared by every command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the YAML configuration file",
			EnvVars: []string{"SESSIONGUARD_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "dotenv file loaded before reading SESSIONGUARD_* variables",
		},
		&cli.StringSliceFlag{
			Name:  "set",
			Usage: "override a configuration key, e.g. --set server.http.addr=0.0.0.0:5080",
		},
	}
}

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, buildinfo.String())
			return nil
		},
	}
}

// loadConfig builds the server configuration from defaults, the config
// file, the environment and --set overrides, then verifies it.
func loadConfig(c *cli.Context) (*config.ServerConfig, error) {
	opts, err := loaderOptions(c)
	if err != nil {
		return nil, err
	}
	return loadConfigWith(opts)
}

func loadConfigWith(opts []confloader.Option) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loaderOptions(c *cli.Context) ([]confloader.Option, error) {
	var opts []confloader.Option
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	if path := c.String("env-file"); path != "" {
		opts = append(opts, confloader.WithEnvFile(path))
	}

	overrides, err := parseOverrides(c.StringSlice("set"))
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		opts = append(opts, confloader.WithOverrides(overrides))
	}
	return opts, nil
}

// parseOverrides turns key=value pairs into a dotted-key map.
func parseOverrides(pairs []string) (map[string]any, error) {
	overrides := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", pair)
		}
		if strings.HasSuffix(key, "cors_allowed_origins") {
			overrides[key] = splitList(value)
			continue
		}
		overrides[key] = value
	}
	return overrides, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
