package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/docstore"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/models"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

// RootFlags are shared by every subcommand.
func RootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "Storage root directory",
			Value:   ".ansuz",
			Sources: cli.EnvVars("ANSUZ_ROOT"),
		},
		&cli.StringFlag{
			Name:    "project-dir",
			Usage:   "Host project directory recorded with each version",
			Sources: cli.EnvVars("ANSUZ_PROJECT_DIR"),
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

func cliLogger(cmd *cli.Command) *slog.Logger {
	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withStore opens the store for one command invocation.
func withStore(cmd *cli.Command, fn func(context.Context, *docstore.Service) error) error {
	logger := cliLogger(cmd)
	svc, closeStore, err := OpenStore(cmd.String("root"), cmd.String("project-dir"), logger)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(context.Background(), svc)
}

// argContent resolves a content argument, reading stdin when it is "-".
func argContent(raw string) (string, error) {
	if raw != "-" {
		return raw, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func requireArgs(cmd *cli.Command, names ...string) error {
	if cmd.Args().Len() < len(names) {
		return fmt.Errorf("usage: %s %s", cmd.Name, strings.Join(names, " "))
	}
	return nil
}

// Commands returns the full CLI command tree.
func Commands() []*cli.Command {
	return []*cli.Command{
		initCommand(),
		storeCommand(),
		appendCommand(),
		recordDecisionCommand(),
		commitCommand(),
		showCommand(),
		searchCommand(),
		whyCommand(),
		listCommand(),
		logCommand(),
		statusCommand(),
		serveCommand(),
		mcpCommand(),
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a store in the root directory",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, closeStore, err := InitStore(ctx, cmd.String("root"), cmd.String("project-dir"), cliLogger(cmd))
			if err != nil {
				return err
			}
			defer closeStore()
			_ = svc
			fmt.Printf("Initialized store at %s\n", cmd.String("root"))
			return nil
		},
	}
}

func storeCommand() *cli.Command {
	return &cli.Command{
		Name:      "store",
		Usage:     "Store a document (create, or replace with --update)",
		ArgsUsage: "<name> <description> <content>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "update",
				Aliases: []string{"u"},
				Usage:   "Replace an existing document",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, "<name>", "<description>", "<content>"); err != nil {
				return err
			}
			name := cmd.Args().Get(0)
			description := cmd.Args().Get(1)
			content, err := argContent(cmd.Args().Get(2))
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, svc *docstore.Service) error {
				var doc *models.Doc
				var err error
				if cmd.Bool("update") {
					doc, err = svc.Update(ctx, name, description, content)
				} else {
					doc, err = svc.Put(ctx, name, description, content)
				}
				if err != nil {
					return err
				}
				fmt.Printf("Stored %s (version %d)\n", doc.Name, doc.Version)
				return nil
			})
		},
	}
}

func appendCommand() *cli.Command {
	return &cli.Command{
		Name:      "append",
		Usage:     "Append markdown to an existing document",
		ArgsUsage: "<name> <content>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, "<name>", "<content>"); err != nil {
				return err
			}
			name := cmd.Args().Get(0)
			content, err := argContent(cmd.Args().Get(1))
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, svc *docstore.Service) error {
				doc, err := svc.Append(ctx, name, content)
				if err != nil {
					return err
				}
				fmt.Printf("Appended to %s (version %d)\n", doc.Name, doc.Version)
				return nil
			})
		},
	}
}

func recordDecisionCommand() *cli.Command {
	return &cli.Command{
		Name:      "record-decision",
		Usage:     "Record a design decision with its rationale",
		ArgsUsage: "<name> <decision> <rationale>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, "<name>", "<decision>", "<rationale>"); err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, svc *docstore.Service) error {
				doc, err := svc.RecordDecision(ctx, cmd.Args().Get(0), cmd.Args().Get(1), cmd.Args().Get(2))
				if err != nil {
					return err
				}
				fmt.Printf("Recorded decision on %s (version %d)\n", doc.Name, doc.Version)
				return nil
			})
		},
	}
}

func commitCommand() *cli.Command {
	return &cli.Command{
		Name:      "commit",
		Usage:     "Record the current on-disk content as a new version (after a manual edit)",
		ArgsUsage: "<name> [message]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, "<name>"); err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, svc *docstore.Service) error {
				doc, err := svc.CommitFile(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
				if err != nil {
					return err
				}
				fmt.Printf("Committed %s (version %d)\n", doc.Name, doc.Version)
				return nil
			})
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a document",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "path-only",
				Usage: "Print the content file path instead of the document",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, "<name>"); err != nil {
				return err
			}
			name := cmd.Args().Get(0)
			return withStore(cmd, func(ctx context.Context, svc *docstore.Service) error {
				if cmd.Bool("path-only") {
					p, err := svc.Path(name)
					if err != nil {
						return err
					}
					fmt.Println(p)
					return nil
				}
				doc, err := svc.Get(ctx, name)
				if err != nil {
					if errors.Is(err, apperr.ErrNotFound) {
						if hits := svc.Suggest(ctx, name); len(hits) > 0 {
							fmt.Fprintln(os.Stderr, "Similar documents:")
							for _, h := range hits {
								fmt.Fprintf(os.Stderr, "  %s  %s\n", h.Name, h.Description)
							}
						}
					}
					return err
				}
				fmt.Printf("# %s (version %d)\n# %s\n\n", doc.Name, doc.Version, doc.Description)
				fmt.Println(doc.Content)
				return nil
			})
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Ranked keyword search across names, descriptions, and content",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of results",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, "<query>"); err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, svc *docstore.Service) error {
				hits, err := svc.Search(ctx, cmd.Args().Get(0))
				if err != nil {
					return err
				}
				if limit := int(cmd.Int("limit")); limit > 0 && limit < len(hits) {
					hits = hits[:limit]
				}
				if len(hits) == 0 {
					fmt.Println("No matches")
					return nil
				}
				for _, h := range hits {
					fmt.Printf("%6.1f  %s (v%d)  %s\n", h.Score, h.Name, h.Version, h.Description)
				}
				return nil
			})
		},
	}
}

func whyCommand() *cli.Command {
	return &cli.Command{
		Name:      "why",
		Usage:     "Search recorded decisions: why was something done this way",
		ArgsUsage: "<query>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, "<query>"); err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, svc *docstore.Service) error {
				hits, err := svc.Why(ctx, cmd.Args().Get(0))
				if err != nil {
					return err
				}
				if len(hits) == 0 {
					fmt.Println("No matching decisions")
					return nil
				}
				for _, h := range hits {
					fmt.Printf("%s\n", h.Name)
					for _, d := range h.Decisions {
						fmt.Printf("  - %s (%s)\n    %s\n", d.Decision, d.Date, d.Rationale)
					}
				}
				return nil
			})
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all documents",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "tree",
				Usage: "Render the name hierarchy as a tree",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(cmd, func(ctx context.Context, svc *docstore.Service) error {
				summaries, err := svc.List(ctx)
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					fmt.Println("No documents")
					return nil
				}
				if cmd.Bool("tree") {
					byName := make(map[string]models.Summary, len(summaries))
					for _, s := range summaries {
						byName[s.Name] = s
					}
					printTree(docstore.BuildTree(summaries), byName, 0)
					return nil
				}
				for _, s := range summaries {
					dirty := ""
					if s.Dirty {
						dirty = "  [dirty]"
					}
					fmt.Printf("%s (v%d)  %s%s\n", s.Name, s.Version, s.Description, dirty)
				}
				return nil
			})
		},
	}
}

func printTree(node *models.TreeNode, byName map[string]models.Summary, depth int) {
	for _, c := range node.Children {
		indent := strings.Repeat("  ", depth)
		if s, ok := byName[c.Name]; ok {
			fmt.Printf("%s%s (v%d)  %s\n", indent, c.Segment, s.Version, s.Description)
		} else {
			fmt.Printf("%s%s/\n", indent, c.Segment)
		}
		printTree(c, byName, depth+1)
	}
}

func logCommand() *cli.Command {
	return &cli.Command{
		Name:      "log",
		Usage:     "Show the change history of a document, most recent first",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, "<name>"); err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, svc *docstore.Service) error {
				seq, err := svc.Log(ctx, cmd.Args().Get(0))
				if err != nil {
					return err
				}
				for e, err := range seq {
					if err != nil {
						return err
					}
					fmt.Printf("%s  %s  %s\n", e.Hash, e.Timestamp.Format("2006-01-02 15:04"), e.Message)
				}
				return nil
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show store-wide counters and recent activity",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(cmd, func(ctx context.Context, svc *docstore.Service) error {
				st, err := svc.Status(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Documents: %d\nVersions:  %d\n", st.Documents, st.Versions)
				if len(st.Recent) > 0 {
					fmt.Println("\nRecently updated:")
					for _, s := range st.Recent {
						fmt.Printf("  %s (v%d)  %s\n", s.Name, s.Version, s.UpdatedAt.Format("2006-01-02 15:04"))
					}
				}
				if len(st.Dirty) > 0 {
					fmt.Println("\nUncommitted manual edits:")
					for _, name := range st.Dirty {
						fmt.Printf("  %s\n", name)
					}
				}
				if len(st.Untracked) > 0 {
					fmt.Println("\nFiles not in the index:")
					for _, name := range st.Untracked {
						fmt.Printf("  %s\n", name)
					}
				}
				return nil
			})
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the read-only HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Sources: cli.EnvVars("ANSUZ_CONFIG_FILE"),
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP port (overrides config)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := NewDefaultConfig()
			if path := cmd.String("config"); path != "" {
				if err := pkgconfig.Load(path, cfg); err != nil {
					return fmt.Errorf("failed to parse config: %w", err)
				}
			}
			if cmd.IsSet("root") {
				cfg.Store.Root = cmd.String("root")
			}
			if cmd.IsSet("project-dir") {
				cfg.Store.ProjectDir = cmd.String("project-dir")
			}
			if port := int(cmd.Int("port")); port > 0 {
				cfg.App.HTTP.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return Run(ctx, WithConfig(cfg))
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the store tools over MCP stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withStore(cmd, func(ctx context.Context, svc *docstore.Service) error {
				return mcpserver.New(svc).ServeStdio()
			})
		},
	}
}
