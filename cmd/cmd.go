// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlags(def string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format (text, markdown, csv, json)",
			Value:   def,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file instead of stdout",
		},
	}
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create config.toml if missing, initialize databases and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// localCommand handles the local store: cached lists and the remembered account
func localCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "local",
		Usage: "Local store operations",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the local store",
				Flags:  formatFlags("text"),
				Action: r.LocalShow,
			},
			{
				Name:   "keys",
				Usage:  "List keys held by the durable store",
				Action: r.LocalKeys,
			},
			{
				Name:  "clear",
				Usage: "Reset the local store to its defaults",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Clear the whole durable store and reset every store",
					},
				},
				Action: r.LocalClear,
			},
			{
				Name:      "follow",
				Usage:     "Follow an author",
				Arguments: []cli.Argument{&cli.StringArg{Name: "author"}},
				Action:    r.LocalFollow,
			},
			{
				Name:      "unfollow",
				Usage:     "Unfollow an author",
				Arguments: []cli.Argument{&cli.StringArg{Name: "author"}},
				Action:    r.LocalUnfollow,
			},
			{
				Name:    "watch-later",
				Aliases: []string{"wl"},
				Usage:   "Watch-later list operations",
				Commands: []*cli.Command{
					{
						Name:  "add",
						Usage: "Add a comic to the watch-later list",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "id",
								Usage:    "Comic ID",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "title",
								Usage: "Comic title",
							},
							&cli.StringFlag{
								Name:  "author",
								Usage: "Comic author",
							},
						},
						Action: r.WatchLaterAdd,
					},
					{
						Name:      "remove",
						Usage:     "Remove a comic from the watch-later list",
						Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
						Action:    r.WatchLaterRemove,
					},
					{
						Name:  "list",
						Usage: "List the watch-later comics",
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  "json",
								Usage: "Output raw JSON",
							},
						},
						Action: r.WatchLaterList,
					},
				},
			},
			{
				Name:  "account",
				Usage: "Show or remember sign-in credentials",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "email",
						Usage: "Email to remember",
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Password to remember",
					},
				},
				Action: r.LocalAccount,
			},
		},
	}
}

// userCommand handles the session token and profile
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "User session operations",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in and store the session token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "email",
						Usage: "Account email (defaults to the remembered account)",
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Account password (defaults to the remembered account)",
					},
				},
				Action: r.UserLogin,
			},
			{
				Name:  "profile",
				Usage: "Fetch and store the signed-in user's profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.UserProfile,
			},
			{
				Name:   "logout",
				Usage:  "Drop the session token and profile",
				Action: r.UserLogout,
			},
			{
				Name:   "show",
				Usage:  "Print the user store",
				Flags:  formatFlags("text"),
				Action: r.UserShow,
			},
		},
	}
}

// settingCommand handles the reader settings
func settingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "setting",
		Aliases: []string{"settings"},
		Usage:   "Reader setting operations",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the setting store",
				Flags:  formatFlags("text"),
				Action: r.SettingShow,
			},
			{
				Name:  "set",
				Usage: "Change reader settings",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "quality",
						Usage: "Image quality (original, high, medium, low)",
					},
					&cli.IntFlag{
						Name:  "proxy-line",
						Usage: "API route, 1-based",
					},
					&cli.IntFlag{
						Name:  "width",
						Usage: "Reader image width",
					},
					&cli.BoolFlag{
						Name:  "auto-read",
						Usage: "Turn pages automatically",
					},
					&cli.IntFlag{
						Name:  "auto-read-speed",
						Usage: "Seconds per page when auto-reading",
					},
				},
				Action: r.SettingSet,
			},
			{
				Name:      "block",
				Usage:     "Hide a category",
				Arguments: []cli.Argument{&cli.StringArg{Name: "title"}},
				Action:    r.SettingBlock,
			},
			{
				Name:      "unblock",
				Usage:     "Show a hidden category again",
				Arguments: []cli.Argument{&cli.StringArg{Name: "title"}},
				Action:    r.SettingUnblock,
			},
		},
	}
}

// categoriesCommand lists the catalog categories
func categoriesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "categories",
		Aliases: []string{"cats"},
		Usage:   "List categories, fetching and caching them on first use",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Include blocked categories",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Drop the cache and fetch again",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Categories,
	}
}

// exportCommand renders every store
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "export",
		Usage:  "Export all stores",
		Flags:  formatFlags("json"),
		Action: r.Export,
	}
}

// watchCommand launches the live inspector
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Interactive inspector that follows changes from other sessions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the inspector owns the screen",
				Value: "./tmp/picasync-watch.log",
			},
		},
		Action: r.Watch,
	}
}
