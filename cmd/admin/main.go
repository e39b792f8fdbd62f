// Command admin is the operator CLI: schema migration, manual plan
// assignment and admin grants.
package main

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/01moynul/basegigs-golang/internal/config"
	"github.com/01moynul/basegigs-golang/internal/database"
	"github.com/01moynul/basegigs-golang/internal/quota"
	"github.com/01moynul/basegigs-golang/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	openDB := func() (*sql.DB, error) {
		if cfg.DSNPrimary == "" {
			return nil, errors.New("DB_DSN_PRIMARY is not set")
		}
		return database.OpenDBWithDSN(cfg.DSNPrimary)
	}
	openStore := func() (store.Store, error) {
		db, err := openDB()
		if err != nil {
			return nil, err
		}
		return store.NewMySQL(db), nil
	}

	if err := newApp(openDB, openStore, os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(openDB func() (*sql.DB, error), openStore func() (store.Store, error), out io.Writer) *cli.App {
	logger := slog.New(slog.NewTextHandler(out, nil))

	withQuota := func(fn func(c *cli.Context, st store.Store, q *quota.Manager) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return fn(c, st, quota.NewManager(st, logger))
		}
	}

	return &cli.App{
		Name:      "basegigs-admin",
		Usage:     "operate a BaseGigs deployment",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "create any missing tables",
				Action: func(c *cli.Context) error {
					db, err := openDB()
					if err != nil {
						return err
					}
					defer db.Close()
					if err := database.Migrate(c.Context, db); err != nil {
						return err
					}
					fmt.Fprintf(out, "applied %d schema statements\n", len(database.Statements()))
					return nil
				},
			},
			{
				Name:  "set-plan",
				Usage: "give a client a fresh subscription on a plan",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "client", Usage: "client user id", Required: true},
					&cli.StringFlag{Name: "plan", Usage: "basic, starter, pro or unlimited", Required: true},
				},
				Action: withQuota(func(c *cli.Context, st store.Store, q *quota.Manager) error {
					clientID := c.Int64("client")
					user, err := st.GetUser(c.Context, clientID)
					if err != nil {
						return errors.Wrapf(err, "load user %d", clientID)
					}
					if !user.CanPost() {
						return errors.Errorf("user %d is not registered as a client", clientID)
					}
					sub, err := q.SetPlan(c.Context, clientID, c.String("plan"))
					if err != nil {
						return err
					}
					if sub.Unlimited {
						fmt.Fprintf(out, "client %d: plan %s, unlimited posts until %s\n", clientID, sub.PlanKey, sub.ExpiresAt.Format("2006-01-02"))
					} else {
						fmt.Fprintf(out, "client %d: plan %s, %d posts until %s\n", clientID, sub.PlanKey, sub.GigPostsLeft, sub.ExpiresAt.Format("2006-01-02"))
					}
					return nil
				}),
			},
			{
				Name:  "clear-plan",
				Usage: "remove a client's subscription",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "client", Usage: "client user id", Required: true},
				},
				Action: withQuota(func(c *cli.Context, _ store.Store, q *quota.Manager) error {
					if err := q.ClearPlan(c.Context, c.Int64("client")); err != nil {
						return err
					}
					fmt.Fprintf(out, "client %d: subscription removed\n", c.Int64("client"))
					return nil
				}),
			},
			{
				Name:  "grant-admin",
				Usage: "give (or with --revoke, take away) admin rights",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user", Usage: "user id", Required: true},
					&cli.BoolFlag{Name: "revoke", Usage: "remove admin rights instead"},
				},
				Action: func(c *cli.Context) error {
					st, err := openStore()
					if err != nil {
						return err
					}
					defer st.Close()

					userID, admin := c.Int64("user"), !c.Bool("revoke")
					if err := st.SetAdmin(c.Context, userID, admin); err != nil {
						return errors.Wrapf(err, "update user %d", userID)
					}
					fmt.Fprintf(out, "user %d: admin=%t\n", userID, admin)
					return nil
				},
			},
		},
	}
}
