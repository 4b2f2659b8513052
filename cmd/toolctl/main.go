package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"Gin_postgres_redis_tool_lending/config"
	"Gin_postgres_redis_tool_lending/db"
	"Gin_postgres_redis_tool_lending/models"

	"github.com/urfave/cli/v3"
	"gorm.io/gorm"
)

func main() {
	config.LoadEnv()
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "toolctl",
		Usage: "Operator commands for the tool lending backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dsn", Usage: "Postgres DSN (default: DATABASE_URL or DB_*)"},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			seedCommand(),
			overdueCommand(),
			reassignLeadCommand(),
		},
	}
	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func openDB(c *cli.Command) (*gorm.DB, error) {
	dsn := c.String("dsn")
	if dsn == "" {
		dsn = config.DatabaseDSN()
	}
	return db.Open(dsn)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update all tables and indexes",
		Action: func(ctx context.Context, c *cli.Command) error {
			conn, err := openDB(c)
			if err != nil {
				return err
			}
			if err := db.Migrate(conn); err != nil {
				return err
			}
			fmt.Println("migrated")
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Insert lookup rows (roles, statuses, conditions) and an optional department",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "department", Usage: "department name to ensure"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			conn, err := openDB(c)
			if err != nil {
				return err
			}
			if err := db.SeedLookups(ctx, conn); err != nil {
				return err
			}
			if name := c.String("department"); name != "" {
				d, err := db.EnsureDepartment(ctx, conn, name)
				if err != nil {
					return err
				}
				fmt.Printf("department %q id=%d\n", d.Name, d.ID)
			}
			fmt.Println("seeded")
			return nil
		},
	}
}

func overdueCommand() *cli.Command {
	return &cli.Command{
		Name:  "overdue",
		Usage: "List loans past their due date",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "department", Usage: "only borrowers of this department"},
			&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			conn, err := openDB(c)
			if err != nil {
				return err
			}
			var dept *uint
			if c.IsSet("department") {
				d := c.Uint("department")
				dept = &d
			}
			loans, err := db.NewRepo(conn).ListOverdueLoans(ctx, dept)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(loans)
			}
			printOverdue(loans, time.Now().UTC())
			return nil
		},
	}
}

func printOverdue(loans []models.Loan, now time.Time) {
	if len(loans) == 0 {
		fmt.Println("no overdue loans")
		return
	}
	for _, l := range loans {
		fmt.Printf("loan %d  borrower=%d  due=%s  late=%s  items=%d\n",
			l.ID, l.BorrowerUserID, l.DueAt.Format(time.RFC3339),
			now.Sub(l.DueAt).Truncate(time.Minute), len(l.Items))
	}
}

func reassignLeadCommand() *cli.Command {
	return &cli.Command{
		Name:  "reassign-lead",
		Usage: "Set or clear a department's lead (promotes/demotes roles accordingly)",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "department", Required: true},
			&cli.UintFlag{Name: "user", Usage: "new lead user id; omit with --clear"},
			&cli.BoolFlag{Name: "clear", Usage: "clear the lead (a random member succeeds)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Bool("clear") == c.IsSet("user") {
				return fmt.Errorf("exactly one of --user or --clear is required")
			}
			conn, err := openDB(c)
			if err != nil {
				return err
			}
			var lead *uint
			if c.IsSet("user") {
				u := c.Uint("user")
				lead = &u
			}
			d, err := db.NewRepo(conn).SetDepartmentLead(ctx, c.Uint("department"), lead)
			if err != nil {
				return err
			}
			if d.LeadUserID == nil {
				fmt.Printf("department %q now has no lead\n", d.Name)
			} else {
				fmt.Printf("department %q lead is user %d\n", d.Name, *d.LeadUserID)
			}
			return nil
		},
	}
}
