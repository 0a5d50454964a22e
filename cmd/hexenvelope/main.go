// Command hexenvelope encrypts and decrypts envelopes and talks to the store
// administration backend.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/remind101/hexenvelope/config"
	"github.com/remind101/hexenvelope/crypto/envelope"
	"github.com/remind101/hexenvelope/svc"
	"github.com/urfave/cli"
)

const version = "0.1.0"

var stdin io.Reader = os.Stdin

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "hexenvelope"
	app.Usage = "Encrypted JSON envelopes and store administration"
	app.Version = version
	app.Flags = getFlags()
	app.Commands = commands
	app.Metadata = map[string]interface{}{}
	app.Before = before
	app.After = func(c *cli.Context) error {
		if env, ok := c.App.Metadata["env"].(svc.Env); ok {
			env.Close()
		}
		return nil
	}
	return app
}

func getFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "env-file",
			Usage: "load environment variables from `FILE` if it exists",
			Value: ".env",
		},
		cli.GenericFlag{
			Name:  "key, k",
			Usage: "envelope key as 64 hex characters, overrides $" + config.EnvEnvelopeKey,
			Value: &keyValue{},
		},
		cli.StringFlag{
			Name:  "level, l",
			Usage: "logging level [debug|info|warn|error|crit], overrides $" + config.EnvLogLevel,
		},
	}
}

func before(c *cli.Context) error {
	cfg, err := config.Load(c.GlobalString("env-file"))
	if err != nil {
		return err
	}
	if k, ok := c.GlobalGeneric("key").(*keyValue); ok && k.hex != "" {
		cfg.EnvelopeKey = k.hex
	}
	if l := c.GlobalString("level"); l != "" {
		cfg.LogLevel = l
	}

	c.App.Metadata["env"] = svc.InitAll(cfg)
	return nil
}

func envFrom(c *cli.Context) svc.Env {
	return c.App.Metadata["env"].(svc.Env)
}

// keyValue is a flag value holding an envelope key. It is checked when the
// flag is parsed and never printed.
type keyValue struct {
	hex string
}

func (k *keyValue) Set(s string) error {
	if _, err := envelope.ParseKey(s); err != nil {
		return errors.New("key must be 64 hex characters")
	}
	k.hex = s
	return nil
}

func (k *keyValue) String() string {
	if k.hex == "" {
		return ""
	}
	return "redacted"
}
