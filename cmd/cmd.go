// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// storageFlags are shared by every command that opens the repository.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "Storage backend override (json, yaml, sql)",
		},
		&cli.StringFlag{
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "Source file override for json/yaml backends",
		},
		&cli.StringFlag{
			Name:  "dsn",
			Usage: "Database DSN override for the sql backend",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output JSON",
		},
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "last-name", Usage: "Last name contains (case-insensitive)"},
		&cli.StringFlag{Name: "first-name", Usage: "First name contains (case-insensitive)"},
		&cli.StringFlag{Name: "middle-name", Usage: "Middle name contains (case-insensitive)"},
		&cli.StringFlag{Name: "phone", Usage: "Phone contains"},
		&cli.StringFlag{Name: "email", Usage: "Email contains (case-insensitive)"},
		&cli.StringFlag{Name: "series", Usage: "Passport series equals"},
		&cli.StringFlag{Name: "number", Usage: "Passport number equals"},
		&cli.StringFlag{Name: "born-from", Usage: "Birth date on or after DD-MM-YYYY"},
		&cli.StringFlag{Name: "born-to", Usage: "Birth date on or before DD-MM-YYYY"},
	}
}

func contactFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "contact",
		Usage: "Contact shown in short views (phone, email)",
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize storage",
		Flags:  storageFlags(),
		Action: r.Setup,
	}
}

func cleanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Validate every record and write the _clean, _snapshot and _errors artifacts",
		Flags: flags(storageFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "view",
				Usage: "Report view (short, full)",
				Value: "short",
			},
		}),
		Action: r.Clean,
	}
}

func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "Show a page of short client views",
		Flags: flags(storageFlags(), filterFlags(), []cli.Flag{
			&cli.IntFlag{
				Name:    "page",
				Aliases: []string{"k"},
				Usage:   "Page number (1-based)",
				Value:   1,
			},
			&cli.IntFlag{
				Name:    "size",
				Aliases: []string{"n"},
				Usage:   "Page size",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort column (id, last_name, birth_date)",
				Value: "id",
			},
			&cli.BoolFlag{
				Name:  "desc",
				Usage: "Sort descending",
			},
			contactFlag(),
		}),
		Action: r.List,
	}
}

func countCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "count",
		Usage:  "Count clients, optionally filtered",
		Flags:  flags(storageFlags(), filterFlags()),
		Action: r.Count,
	}
}

func getCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "Show one client by id",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags:  storageFlags(),
		Action: r.Get,
	}
}

func addCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add a client from a JSON object or a delimited string",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "record"},
		},
		Flags: flags(storageFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "sep",
				Usage: "Treat the record as delimited with this separator",
			},
		}),
		Action: r.Add,
	}
}

func replaceCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "replace",
		Usage: "Replace every field of a client, keeping its id",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
			&cli.StringArg{Name: "record"},
		},
		Flags: flags(storageFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:  "sep",
				Usage: "Treat the record as delimited with this separator",
			},
		}),
		Action: r.Replace,
	}
}

func deleteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Aliases: []string{"rm"},
		Usage:   "Delete a client by id",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags:  storageFlags(),
		Action: r.Delete,
	}
}

func sortCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sort",
		Usage: "List every client ordered by last name",
		Flags: flags(storageFlags(), []cli.Flag{
			&cli.BoolFlag{
				Name:  "desc",
				Usage: "Sort descending",
			},
		}),
		Action: r.Sort,
	}
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export valid clients to CSV, Markdown or text",
		Flags: flags(storageFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format (csv, md, txt)",
				Value:   "csv",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path",
			},
		}),
		Action: r.Export,
	}
}

func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Bulk load a JSON or YAML array into the sql backend",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: flags(storageFlags(), []cli.Flag{
			&cli.BoolFlag{
				Name:  "replace",
				Usage: "Empty the table before loading",
			},
			&cli.BoolFlag{
				Name:  "preserve-ids",
				Usage: "Keep record ids instead of assigning new ones",
			},
		}),
		Action: r.Import,
	}
}

func dbCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Schema migration commands for the sql backend",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the current schema version",
				Flags:  storageFlags(),
				Action: r.DBStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Flags:  storageFlags(),
				Action: r.DBRollback,
			},
		},
	}
}

func contractFilterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "number", Usage: "Contract number contains (case-insensitive)"},
		&cli.IntFlag{Name: "client", Usage: "Owning client id"},
		&cli.StringFlag{Name: "status", Usage: "Status equals (Draft, Active, Closed)"},
		&cli.StringFlag{Name: "start-from", Usage: "Start date on or after YYYY-MM-DD"},
		&cli.StringFlag{Name: "start-to", Usage: "Start date on or before YYYY-MM-DD"},
		&cli.StringFlag{Name: "end-from", Usage: "End date on or after YYYY-MM-DD"},
		&cli.StringFlag{Name: "end-to", Usage: "End date on or before YYYY-MM-DD"},
	}
}

// contractCommand groups the contract operations. They all require the sql backend.
func contractCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "contract",
		Aliases: []string{"contracts"},
		Usage:   "Manage client contracts stored in the sql backend",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a contract from a JSON object",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "record"},
				},
				Flags:  storageFlags(),
				Action: r.ContractAdd,
			},
			{
				Name:  "update",
				Usage: "Replace every field of a contract, keeping its id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "record"},
				},
				Flags:  storageFlags(),
				Action: r.ContractUpdate,
			},
			{
				Name:  "close",
				Usage: "Mark a contract Closed",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  storageFlags(),
				Action: r.ContractClose,
			},
			{
				Name:  "get",
				Usage: "Show one contract by id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  storageFlags(),
				Action: r.ContractGet,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "Show a page of contracts, newest first unless --sort is set",
				Flags: flags(storageFlags(), contractFilterFlags(), []cli.Flag{
					&cli.IntFlag{
						Name:    "page",
						Aliases: []string{"k"},
						Usage:   "Page number (1-based)",
						Value:   1,
					},
					&cli.IntFlag{
						Name:    "size",
						Aliases: []string{"n"},
						Usage:   "Page size",
						Value:   10,
					},
					&cli.StringFlag{
						Name:  "sort",
						Usage: "Sort column (id, number, end_date)",
					},
					&cli.BoolFlag{
						Name:  "asc",
						Usage: "Sort ascending",
					},
				}),
				Action: r.ContractList,
			},
			{
				Name:   "count",
				Usage:  "Count contracts, optionally filtered",
				Flags:  flags(storageFlags(), contractFilterFlags()),
				Action: r.ContractCount,
			},
		},
	}
}
