package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/atebit/legaldocs/internal/analysis"
	"github.com/atebit/legaldocs/internal/config"
	"github.com/atebit/legaldocs/internal/extract"
	"github.com/atebit/legaldocs/internal/gcp"
	"github.com/atebit/legaldocs/internal/guard"
	"github.com/atebit/legaldocs/internal/logging"
	"github.com/atebit/legaldocs/internal/service"
	"github.com/atebit/legaldocs/internal/store"
)

var (
	version = "dev"

	configPath string
	tokenFlag  string
	logLevel   string
)

// app bundles everything a command needs, built once per invocation.
type app struct {
	cfg     *config.Config
	svc     *service.Service
	vertex  *gcp.VertexClient
	mirror  *store.SQLiteMirror
	cleanup []func() error
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		_ = a.cleanup[i]()
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.Init(logLevel)

	a := &app{cfg: cfg}

	fsClient, err := gcp.NewFirestoreClient(ctx, cfg.GCP.ProjectID)
	if err != nil {
		return nil, err
	}
	a.cleanup = append(a.cleanup, fsClient.Close)

	gcsClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.cleanup = append(a.cleanup, gcsClient.Close)

	vertex, err := gcp.NewVertexClient(ctx, gcp.VertexConfig{
		ProjectID:     cfg.GCP.ProjectID,
		Region:        cfg.GCP.Region,
		Model:         cfg.Vertex.Model,
		DetectorModel: cfg.Vertex.DetectorModel,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.vertex = vertex
	a.cleanup = append(a.cleanup, vertex.Close)

	mirror, err := store.NewSQLiteMirror(cfg.Mirror.Path)
	if err != nil {
		a.close()
		return nil, err
	}
	a.mirror = mirror
	a.cleanup = append(a.cleanup, mirror.Close)

	verifier, err := guard.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		a.close()
		return nil, err
	}

	st := store.NewStore(fsClient, cfg.GCP.Collection, logger)
	blobs, err := store.NewBlobs(gcsClient, cfg.GCP.Bucket, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	invoker := analysis.NewInvoker(vertex, analysis.InvokerConfig{
		MaxAttempts:    cfg.Vertex.MaxAttempts,
		InitialBackoff: cfg.Vertex.InitialBackoff(),
		MaxBackoff:     cfg.Vertex.MaxBackoff(),
		Temperature:    cfg.Vertex.Temperature,
	}, logger)
	orchestrator := analysis.NewOrchestrator(invoker, st, mirror, logger)

	a.svc = service.New(service.Config{
		Guard:        guard.New(verifier, st),
		Store:        st,
		Blobs:        blobs,
		Mirror:       mirror,
		Extractor:    extract.NewExtractor(int(cfg.Pipeline.MaxFileBytes)),
		Orchestrator: orchestrator,
		Detector:     vertex,
		ObjectPath:   store.ObjectPath,
		Logger:       logger,
	})
	return a, nil
}

func token() (string, error) {
	if tokenFlag != "" {
		return tokenFlag, nil
	}
	if t := os.Getenv("LEGALDOCS_TOKEN"); t != "" {
		return t, nil
	}
	return "", fmt.Errorf("no access token: pass --token or set LEGALDOCS_TOKEN")
}

// runApp wires the app, resolves the caller token and runs fn, taking
// care of teardown.
func runApp(cmd *cobra.Command, fn func(ctx context.Context, a *app, tok string) error) error {
	tok, err := token()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a, tok)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "legaldocs",
		Short: "Legal document ingestion and AI analysis",
		Long: `Legaldocs ingests legal documents (PDF, DOCX, plain text),
extracts their text, and runs structured AI analyses: summaries,
key points, risk alerts and translations.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "legaldocs.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Access token (defaults to LEGALDOCS_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("legaldocs %s\n", version)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "create <title>",
		Short: "Register a new document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app, tok string) error {
				doc, err := a.svc.Create(ctx, tok, args[0])
				if err != nil {
					return err
				}
				return printJSON(doc)
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "upload <document-id> <file>",
		Short: "Upload a file and extract its text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app, tok string) error {
				payload, err := os.ReadFile(args[1])
				if err != nil {
					return fmt.Errorf("read %s: %w", args[1], err)
				}
				doc, err := a.svc.Upload(ctx, tok, args[0], args[1], payload)
				if err != nil {
					return err
				}
				return printJSON(doc)
			})
		},
	})

	var targetLanguage string
	analyzeCmd := &cobra.Command{
		Use:   "analyze <document-id> <summary|key_points|risks|translation|all>",
		Short: "Run an AI analysis against an uploaded document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app, tok string) error {
				kind, err := analysis.ParseKind(args[1])
				if err != nil {
					return err
				}
				result, err := a.svc.Analyze(ctx, tok, args[0], kind, targetLanguage)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	analyzeCmd.Flags().StringVar(&targetLanguage, "target-language", "", "ISO 639-1 code (required for translation)")
	rootCmd.AddCommand(analyzeCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "get <document-id>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app, tok string) error {
				doc, err := a.svc.Get(ctx, tok, args[0])
				if err != nil {
					return err
				}
				return printJSON(doc)
			})
		},
	})

	var listLimit, listOffset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List your documents, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApp(cmd, func(ctx context.Context, a *app, tok string) error {
				docs, err := a.svc.List(ctx, tok, listLimit, listOffset)
				if err != nil {
					return err
				}
				return printJSON(docs)
			})
		},
	}
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of documents")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Number of documents to skip")
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app, tok string) error {
				return a.svc.Delete(ctx, tok, args[0])
			})
		},
	})

	var ttlHours int
	downloadCmd := &cobra.Command{
		Use:   "download-url <document-id>",
		Short: "Issue a signed URL for the original file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app, tok string) error {
				url, err := a.svc.DownloadURL(ctx, tok, args[0], time.Duration(ttlHours)*time.Hour)
				if err != nil {
					return err
				}
				fmt.Println(url)
				return nil
			})
		},
	}
	downloadCmd.Flags().IntVar(&ttlHours, "ttl-hours", 1, "URL lifetime in hours (clamped to 1-24)")
	rootCmd.AddCommand(downloadCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "analysis <document-id> [version]",
		Short: "Fetch a stored analysis (latest when no version is given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app, tok string) error {
				version := 0
				if len(args) == 2 {
					v, err := strconv.Atoi(args[1])
					if err != nil {
						return fmt.Errorf("version must be a number: %w", err)
					}
					version = v
				}
				result, err := a.svc.Analysis(ctx, tok, args[0], version)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	})

	var historyLimit int
	historyCmd := &cobra.Command{
		Use:   "history <document-id>",
		Short: "Show the document's audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd, func(ctx context.Context, a *app, tok string) error {
				entries, err := a.svc.History(ctx, tok, args[0], historyLimit)
				if err != nil {
					return err
				}
				return printJSON(entries)
			})
		},
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of entries")
	rootCmd.AddCommand(historyCmd)

	var tokenTTLHours int
	mintCmd := &cobra.Command{
		Use:   "mint-token <uid>",
		Short: "Mint a development access token for a UID",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			verifier, err := guard.NewVerifier(cfg.Auth.JWTSecret)
			if err != nil {
				return err
			}
			tok, err := verifier.IssueToken(args[0], time.Duration(tokenTTLHours)*time.Hour)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	mintCmd.Flags().IntVar(&tokenTTLHours, "ttl-hours", 24, "Token lifetime in hours")
	rootCmd.AddCommand(mintCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
