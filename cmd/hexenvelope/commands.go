package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/remind101/hexenvelope/admin"
	"github.com/remind101/hexenvelope/crypto/envelope"
	"github.com/remind101/hexenvelope/id"
	"github.com/remind101/hexenvelope/reporter"
	"github.com/urfave/cli"
)

var errInvalidID = errors.New("not a valid UUID")

var adminFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "admin-email",
		Usage:  "log in as `EMAIL`",
		EnvVar: "HEXENVELOPE_ADMIN_EMAIL",
	},
	cli.StringFlag{
		Name:   "admin-password",
		Usage:  "password of the admin account",
		EnvVar: "HEXENVELOPE_ADMIN_PASSWORD",
	},
}

var commands = []cli.Command{
	{
		Name:      "encrypt",
		Usage:     "Encrypt a JSON value read from the argument or stdin",
		ArgsUsage: "[JSON]",
		Action:    monitored(runEncrypt),
	},
	{
		Name:      "decrypt",
		Usage:     "Decrypt an envelope and print the JSON value",
		ArgsUsage: "ENVELOPE",
		Action:    monitored(runDecrypt),
	},
	{
		Name:  "uuid",
		Usage: "Generate random v4 UUIDs",
		Flags: []cli.Flag{
			cli.IntFlag{Name: "count, n", Value: 1, Usage: "number of UUIDs"},
		},
		Action: monitored(runUUID),
	},
	{
		Name:      "check-uuid",
		Usage:     "Check that the argument is a well formed UUID",
		ArgsUsage: "UUID",
		Action:    monitored(runCheckUUID),
	},
	{
		Name:  "users",
		Usage: "List users (super admin only)",
		Flags: append([]cli.Flag{
			cli.StringFlag{Name: "role", Usage: "only users with `ROLE`"},
			cli.StringFlag{Name: "search", Usage: "only users matching `TEXT`"},
		}, adminFlags...),
		Action: monitored(runUsers),
	},
	{
		Name:  "create-user",
		Usage: "Create a user (super admin only)",
		Flags: append([]cli.Flag{
			cli.StringFlag{Name: "name", Usage: "display name, 2-20 characters"},
			cli.StringFlag{Name: "email", Usage: "login email"},
			cli.StringFlag{Name: "password", Usage: "initial password, at least 6 characters"},
			cli.StringFlag{Name: "role", Value: admin.RoleEmployee, Usage: "super_admin, admin or employee"},
			cli.IntFlag{Name: "store-limit", Value: 1, Usage: "maximum number of stores, 1-1000"},
		}, adminFlags...),
		Action: monitored(runCreateUser),
	},
	{
		Name:   "stats",
		Usage:  "Print application usage statistics",
		Flags:  adminFlags,
		Action: monitored(runStats),
	},
	{
		Name:  "activities",
		Usage: "Print recent activities",
		Flags: append([]cli.Flag{
			cli.IntFlag{Name: "limit", Value: admin.DefaultActivityLimit, Usage: "maximum number of activities"},
		}, adminFlags...),
		Action: monitored(runActivities),
	},
}

// monitored reports panics in fn before they crash the command.
func monitored(fn func(*cli.Context) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		defer reporter.Monitor(envFrom(c).Context)
		return fn(c)
	}
}

func runEncrypt(c *cli.Context) error {
	env := envFrom(c)
	if err := env.Config.Require("EnvelopeKey"); err != nil {
		return err
	}

	var r io.Reader = stdin
	if c.NArg() > 0 {
		r = strings.NewReader(c.Args().First())
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return errors.Wrap(err, "reading JSON input")
	}

	s, err := envelope.Encrypt(v, env.Config.EnvelopeKey)
	if err != nil {
		return errors.Wrap(err, "encrypt")
	}
	fmt.Fprintln(c.App.Writer, s)
	return nil
}

func runDecrypt(c *cli.Context) error {
	env := envFrom(c)
	if err := env.Config.Require("EnvelopeKey"); err != nil {
		return err
	}
	if c.NArg() != 1 {
		return errors.New("decrypt takes exactly one envelope")
	}

	var v interface{}
	if err := envelope.DecryptInto(strings.TrimSpace(c.Args().First()), env.Config.EnvelopeKey, &v); err != nil {
		return errors.Wrap(err, "decrypt")
	}
	return printJSON(c.App.Writer, v)
}

func runUUID(c *cli.Context) error {
	for i := 0; i < c.Int("count"); i++ {
		fmt.Fprintln(c.App.Writer, id.Generate())
	}
	return nil
}

func runCheckUUID(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("check-uuid takes exactly one argument")
	}
	if !id.IsValid(c.Args().First()) {
		return errInvalidID
	}
	fmt.Fprintln(c.App.Writer, "valid")
	return nil
}

// withAdmin logs in with the admin flags, runs fn and logs out.
func withAdmin(c *cli.Context, fn func(*admin.Client) error) error {
	env := envFrom(c)
	if err := env.Config.RequireAPI(); err != nil {
		return err
	}

	client := env.NewAdminClient()
	if _, err := client.Login(env.Context, c.String("admin-email"), c.String("admin-password")); err != nil {
		return errors.Wrap(err, "login")
	}
	defer client.Logout(env.Context)

	return fn(client)
}

func runUsers(c *cli.Context) error {
	return withAdmin(c, func(client *admin.Client) error {
		users, err := client.Users(envFrom(c).Context, admin.UserFilters{
			Role:   c.String("role"),
			Search: c.String("search"),
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tSTORES")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", u.ID, u.Name, u.Email, u.Role, u.StoreLimit)
		}
		return w.Flush()
	})
}

func runCreateUser(c *cli.Context) error {
	u := &admin.NewUser{
		Name:       c.String("name"),
		Email:      c.String("email"),
		Password:   c.String("password"),
		Role:       c.String("role"),
		StoreLimit: c.Int("store-limit"),
	}
	if err := u.Validate(); err != nil {
		return err
	}

	return withAdmin(c, func(client *admin.Client) error {
		if err := client.CreateUser(envFrom(c).Context, u); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "created %s\n", u.Email)
		return nil
	})
}

func runStats(c *cli.Context) error {
	return withAdmin(c, func(client *admin.Client) error {
		stats, err := client.UsageStats(envFrom(c).Context)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, stats)
	})
}

func runActivities(c *cli.Context) error {
	return withAdmin(c, func(client *admin.Client) error {
		activities, err := client.RecentActivities(envFrom(c).Context, c.Int("limit"))
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, activities)
	})
}

func printJSON(w io.Writer, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}
