package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/matteoser/PiemonteDB/pkg/config"
	"github.com/matteoser/PiemonteDB/pkg/core"
	"github.com/matteoser/PiemonteDB/pkg/executor"
	"github.com/matteoser/PiemonteDB/pkg/loader"
	"github.com/matteoser/PiemonteDB/pkg/pax"
	"github.com/matteoser/PiemonteDB/pkg/server"
	"github.com/matteoser/PiemonteDB/pkg/types"
)

// Build information (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "piemontedb",
		Usage:   "Teaching-oriented relational database with a vectorized execution core",
		Version: Version,
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(c *cli.Context) error {
					fmt.Printf("PiemonteDB %s\n", Version)
					fmt.Printf("Build Time: %s\n", BuildTime)
					fmt.Printf("Git Commit: %s\n", GitCommit)
					return nil
				},
			},
			{
				Name:  "serve",
				Usage: "Start the database server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Configuration file path"},
					&cli.StringFlag{Name: "data-dir", Usage: "Override the data directory"},
				},
				Action: serve,
			},
			{
				Name:  "recover",
				Usage: "Replay the write-ahead log into the catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}},
					&cli.StringFlag{Name: "data-dir", Usage: "Override the data directory"},
				},
				Action: func(c *cli.Context) error {
					db, _, err := openDatabase(c)
					if err != nil {
						return err
					}
					defer db.Close()
					if err := db.Recover(); err != nil {
						return err
					}
					fmt.Println("recovery complete")
					return nil
				},
			},
			{
				Name:  "load",
				Usage: "Bulk-load a delimited file into a table",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}},
					&cli.StringFlag{Name: "table", Required: true},
					&cli.StringFlag{Name: "file", Required: true},
					&cli.StringFlag{Name: "terminated", Value: ",", Usage: "Field delimiter"},
					&cli.StringFlag{Name: "enclosed", Value: "\"", Usage: "Quote character"},
				},
				Action: loadData,
			},
			{
				Name:  "table",
				Usage: "Table management commands",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "Create a table; columns are name:type[:len] triples",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "config", Aliases: []string{"c"}},
							&cli.StringFlag{Name: "name", Required: true},
							&cli.StringSliceFlag{Name: "column", Required: true},
							&cli.StringFlag{Name: "format", Value: "pax", Usage: "pax or row"},
						},
						Action: createTable,
					},
					{
						Name:  "list",
						Usage: "List tables",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "config", Aliases: []string{"c"}},
						},
						Action: listTables,
					},
				},
			},
			{
				Name:  "config",
				Usage: "Configuration management commands",
				Subcommands: []*cli.Command{
					{
						Name:  "generate",
						Usage: "Generate a sample configuration file",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "piemontedb.yaml"},
						},
						Action: func(c *cli.Context) error {
							path := c.String("output")
							if err := config.WriteSample(path); err != nil {
								return err
							}
							fmt.Printf("wrote %s\n", path)
							return nil
						},
					},
					{
						Name:  "validate",
						Usage: "Validate a configuration file",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true},
						},
						Action: func(c *cli.Context) error {
							if _, err := config.LoadConfig(c.String("file")); err != nil {
								return err
							}
							fmt.Println("configuration is valid")
							return nil
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openDatabase(c *cli.Context) (*core.Database, *config.PiemonteConfig, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	executor.SetVectorized(cfg.Exec.Vectorized)
	db, err := core.OpenDatabase(cfg.DataDir, cfg.Storage.CacheSize, cfg.Storage.SyncWrites)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}

func serve(c *cli.Context) error {
	db, cfg, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := server.NewServer(db, nil, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("shutting down...")
		cancel()
	}()

	return srv.Start(ctx)
}

func loadData(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	table, ok := db.FindTable(c.String("table"))
	if !ok {
		return fmt.Errorf("table %s does not exist", c.String("table"))
	}
	ld := loader.NewLoader()
	if v := c.String("terminated"); v != "" {
		ld.Terminated = v[0]
	}
	if v := c.String("enclosed"); v != "" {
		ld.Enclosed = v[0]
	}
	report, err := ld.Load(table, c.String("file"))
	if report != "" {
		fmt.Println(report)
	}
	return err
}

func createTable(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	format := pax.FormatPAX
	if strings.EqualFold(c.String("format"), "row") {
		format = pax.FormatRow
	}
	var attrs []core.AttrInfo
	for _, spec := range c.StringSlice("column") {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 {
			return fmt.Errorf("invalid column spec %q, want name:type[:len]", spec)
		}
		attrType, ok := types.ParseAttrType(parts[1])
		if !ok {
			return fmt.Errorf("unknown type %q in column spec %q", parts[1], spec)
		}
		length := attrType.FixedLen()
		if len(parts) == 3 {
			length, err = strconv.Atoi(parts[2])
			if err != nil {
				return fmt.Errorf("invalid length in column spec %q", spec)
			}
		}
		attrs = append(attrs, core.AttrInfo{Name: parts[0], Type: attrType, Len: length})
	}
	if _, err := db.CreateTable(c.String("name"), attrs, format); err != nil {
		return err
	}
	fmt.Printf("created table %s\n", c.String("name"))
	return nil
}

func listTables(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()
	for _, name := range db.TableNames() {
		fmt.Println(name)
	}
	return nil
}
