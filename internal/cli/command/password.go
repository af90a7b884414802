package command

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/core/service"
	"github.com/yndnr/sessionguard/internal/server/config"
)

// HashPasswordCommand prints the password hash the server would store,
// using the configured argon2 parameters and pepper.
func HashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-password",
		Usage:     "Hash a password with the configured parameters",
		ArgsUsage: "[PASSWORD]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "stdin",
				Usage: "read the password from the first line of stdin",
			},
		},
		Action: hashPassword,
	}
}

func hashPassword(c *cli.Context) error {
	password, err := readPassword(c)
	if err != nil {
		return err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	hash, err := newHasher(cfg).Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}

func readPassword(c *cli.Context) (string, error) {
	if c.Bool("stdin") {
		line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	if c.NArg() != 1 {
		return "", errors.New("expected exactly one PASSWORD argument or --stdin")
	}
	return c.Args().First(), nil
}

// newHasher builds the password hasher described by cfg.
func newHasher(cfg *config.ServerConfig) *service.PasswordHasher {
	hc := service.DefaultPasswordHasherConfig()
	hc.Memory = cfg.Security.Argon2Memory
	hc.Iterations = cfg.Security.Argon2Iterations
	hc.Parallelism = cfg.Security.Argon2Parallelism
	hc.Pepper = cfg.Security.Pepper
	return service.NewPasswordHasher(hc)
}
