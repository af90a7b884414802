package command

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sessionguard/internal/server/config"
)

// CheckConfigCommand loads and verifies the configuration without starting
// the server, then prints the effective settings with secrets masked.
func CheckConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "check-config",
		Aliases: []string{"check"},
		Usage:   "Validate the configuration and print the effective settings",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only report whether the configuration is valid",
			},
		},
		Action: checkConfig,
	}
}

func checkConfig(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if !c.Bool("quiet") {
		if err := printConfig(c.App.Writer, config.Sanitize(cfg)); err != nil {
			return err
		}
	}
	fmt.Fprintln(c.App.Writer, "configuration ok")
	return nil
}

func printConfig(w io.Writer, cfg *config.ServerConfig) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	http := cfg.Server.HTTP
	rows := [][2]string{
		{"server.http.addr", http.Addr},
		{"server.http.tls", fmt.Sprint(http.TLSCertFile != "" && http.TLSKeyFile != "")},
		{"server.http.read_timeout", http.ReadTimeout.String()},
		{"server.http.write_timeout", http.WriteTimeout.String()},
		{"server.http.idle_timeout", http.IdleTimeout.String()},
		{"server.http.shutdown_timeout", http.ShutdownTimeout.String()},
		{"server.http.trust_proxy", fmt.Sprint(http.TrustProxy)},
		{"server.http.cors_allowed_origins", strings.Join(http.CORSAllowedOrigins, ",")},
		{"server.http.rate_limit", fmt.Sprintf("%g/s burst %d", http.RateLimit, http.RateBurst)},
		{"session.window", cfg.Session.Window.String()},
		{"session.sweep_interval", cfg.Session.SweepInterval.String()},
		{"session.cookie_name", cfg.Session.CookieName},
		{"session.cookie_secure", fmt.Sprint(cfg.Session.CookieSecure)},
		{"security.pepper", cfg.Security.Pepper},
		{"security.argon2", fmt.Sprintf("m=%d,t=%d,p=%d",
			cfg.Security.Argon2Memory, cfg.Security.Argon2Iterations, cfg.Security.Argon2Parallelism)},
		{"security.login_rate", fmt.Sprintf("%g/s burst %d", cfg.Security.LoginRate, cfg.Security.LoginBurst)},
		{"admin.username", cfg.Admin.Username},
		{"admin.password", cfg.Admin.Password},
		{"metrics.enabled", fmt.Sprint(cfg.Metrics.Enabled)},
		{"log.level", cfg.Log.Level},
		{"log.format", cfg.Log.Format},
	}
	for _, row := range rows {
		value := row[1]
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\n", row[0], value)
	}
	return tw.Flush()
}
