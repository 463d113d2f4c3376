package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jurify/internal/app"
	"jurify/internal/config"
	"jurify/internal/db"
	"jurify/internal/docx"
	"jurify/internal/domain"
	"jurify/internal/engine"
	"jurify/internal/logging"
	"jurify/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "jurify",
	Short: "Jurify CLI",
	Long: `Jurify turns case descriptions into Brazilian initial petitions.
- Document: a legal case you describe (title, parties, facts, request).
- Process: sends the document to the AI webhook; the answer is stored as a response.
- Response: the normalized AI answer; generate it once to render the petition.
- Export: writes the generated petition as a Word (.docx) file.
- Failed webhooks: the last submissions that did not go through, kept for diagnosis.
- Event log: diary of changes, view with 'jurify log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	workspace := viper.GetString("workspace")
	_ = godotenv.Load(filepath.Join(workspace, ".env"))
	viper.SetEnvPrefix("JURIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", server.DefaultActor, "actor identifier")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(documentCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(responseCmd())
	rootCmd.AddCommand(failedCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func documentCmd() *cobra.Command {
	doc := &cobra.Command{Use: "document", Short: "Manage legal documents"}
	doc.AddCommand(documentCreateCmd())
	doc.AddCommand(documentListCmd())
	doc.AddCommand(documentShowCmd())
	return doc
}

func documentCreateCmd() *cobra.Command {
	var opts engine.DocumentCreateOptions
	var docType, status, contentFile string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a legal document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return err
				}
				opts.Content = string(data)
			}
			opts.DocumentType = domain.DocumentType(docType)
			opts.Status = domain.DocumentStatus(status)
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CreateDocument(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "document id (generated when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "document title")
	cmd.Flags().StringVar(&opts.Content, "content", "", "free text content")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "read content from file")
	cmd.Flags().StringVar(&opts.ActionType, "action-type", "", "kind of legal action")
	cmd.Flags().StringVar(&opts.Plaintiff, "plaintiff", "", "plaintiff (autor)")
	cmd.Flags().StringVar(&opts.Defendant, "defendant", "", "defendant (réu)")
	cmd.Flags().StringVar(&opts.Facts, "facts", "", "facts of the case")
	cmd.Flags().StringVar(&opts.LegalBasis, "legal-basis", "", "legal basis")
	cmd.Flags().StringVar(&opts.Request, "request", "", "what is being requested")
	cmd.Flags().StringVar(&docType, "type", "", "document type (peticion, contract, appeal, motion, brief, memorandum, other)")
	cmd.Flags().StringVar(&status, "status", "", "status (draft, review, approved, filed, archived)")
	cmd.Flags().StringVar(&opts.TemplateID, "template", "", "template id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func documentListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List legal documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListDocuments(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Title", "Type", "Status", "Words", "Pages", "Created"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.Title, d.DocumentType, d.Status, d.WordCount, d.PagesCount, d.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max documents")
	return cmd
}

func documentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <document-id>",
		Short: "Show a legal document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.GetDocument(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	return cmd
}

func templateCmd() *cobra.Command {
	tmpl := &cobra.Command{Use: "template", Short: "Manage templates"}
	tmpl.AddCommand(templateCreateCmd())
	tmpl.AddCommand(templateListCmd())
	return tmpl
}

func templateCreateCmd() *cobra.Command {
	var opts engine.TemplateCreateOptions
	var docType, variables string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			if variables != "" {
				if err := json.Unmarshal([]byte(variables), &opts.Variables); err != nil {
					return errors.Wrap(err, "--variables must be a JSON object")
				}
			}
			opts.DocumentType = domain.DocumentType(docType)
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTemplate(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "template id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "template name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&docType, "type", "", "document type")
	cmd.Flags().StringVar(&opts.TemplateContent, "content", "", "template body")
	cmd.Flags().StringVar(&variables, "variables", "", "template variables as a JSON object")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func templateListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTemplates(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Type", "Created"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.DocumentType, t.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func processCmd() *cobra.Command {
	var templateID string
	var detached bool
	cmd := &cobra.Command{
		Use:   "process <document-id>",
		Short: "Send a document to the AI webhook",
		Long:  "Submits the document and stores the normalized answer as a response. Delivery failures are recorded in the failed-webhook log; the document is kept either way.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ProcessOptions{DocumentID: args[0], TemplateID: templateID, ActorID: viper.GetString("actor-id")}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if detached {
					task, err := e.ProcessDetached(ctx, opts)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(map[string]string{"task": task})
					}
					fmt.Printf("Started %s\n", task)
					return nil
				}
				res, err := e.Process(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Println(noticeText(res.Notice))
				if res.Response != nil {
					fmt.Printf("Response: %s\n", res.Response.ID)
				} else {
					fmt.Printf("Details: %s\n", res.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "template id (defaults to the document's)")
	cmd.Flags().BoolVar(&detached, "detached", false, "run the submission as a background task")
	return cmd
}

func noticeText(n engine.Notice) string {
	switch n {
	case engine.NoticeProcessed:
		return "Documento salvo e processado com sucesso."
	case engine.NoticeTimedOut:
		return "Documento salvo, mas o processamento excedeu o tempo limite."
	case engine.NoticeBlockedByServer:
		return "Documento salvo, mas o servidor bloqueou a requisição."
	default:
		return "Documento salvo, mas não foi processado."
	}
}

func responseCmd() *cobra.Command {
	resp := &cobra.Command{Use: "response", Short: "Inspect and generate webhook responses"}
	resp.AddCommand(responseListCmd())
	resp.AddCommand(responseShowCmd())
	resp.AddCommand(responseGenerateCmd())
	resp.AddCommand(responseValidateCmd())
	resp.AddCommand(responseExportCmd())
	return resp
}

func responseListCmd() *cobra.Command {
	var documentID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var items []domain.WebhookResponse
				var err error
				if documentID != "" {
					items, err = e.ListDocumentResponses(ctx, documentID)
				} else {
					items, err = e.ListResponses(ctx, limit)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Document", "Type", "Generated", "Created"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.LegalDocumentID, r.DocumentType, r.Gerado, r.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&documentID, "document", "", "only responses of this document")
	cmd.Flags().IntVar(&limit, "limit", 50, "max responses")
	return cmd
}

func responseShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <response-id>",
		Short: "Show a response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.GetResponse(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	return cmd
}

func responseGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <response-id>",
		Short: "Render the petition for a response (once)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.Generate(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(r)
				}
				fmt.Println(*r.DocumentoFormatado)
				return nil
			})
		},
	}
	return cmd
}

func responseValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <response-id>",
		Short: "Report case fields missing from a response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.Validate(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(v)
				}
				if v.Valido {
					fmt.Println("response OK")
					return nil
				}
				fmt.Printf("missing fields: %s\n", strings.Join(v.MissingFields, ", "))
				return nil
			})
		},
	}
	return cmd
}

func responseExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <response-id>",
		Short: "Write the generated petition as a .docx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				exp, err := e.ExportWord(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				var saver docx.Saver = docx.DirSaver{Dir: out}
				path, err := saver.Save(ctx, exp.Filename, exp.Data)
				if err != nil {
					return err
				}
				size := units.HumanSize(float64(len(exp.Data)))
				if viper.GetBool("json") {
					return printJSON(map[string]any{"path": path, "bytes": len(exp.Data), "size": size})
				}
				fmt.Printf("Wrote %s (%s)\n", path, size)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", ".", "output directory")
	return cmd
}

func failedCmd() *cobra.Command {
	f := &cobra.Command{Use: "failed", Short: "Inspect failed webhook submissions"}
	f.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recent failed submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.FailedWebhooks(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Timestamp", "Document", "Error"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.Timestamp, it.Payload.Document.ID, it.Error})
				}
				tw.Render()
				return nil
			})
		},
	})
	return f
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Event log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.LatestEvents(ctx, n, evtType, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Actor", "Payload"})
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.TS, ev.Type, ev.EntityKind + ":" + ev.EntityID, ev.ActorID, ev.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in jurify.yml inside the workspace. JURIFY_WEBHOOK_URL, JURIFY_JWT_SECRET and JURIFY_DATABASE_DSN override it.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configUseWebhookCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default jurify.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Newf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configUseWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use-webhook <url>",
		Short: "Persist a webhook URL override in the workspace .env",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if err := setEnvValue(filepath.Join(workspace, ".env"), "JURIFY_WEBHOOK_URL", args[0]); err != nil {
				return err
			}
			fmt.Printf("Webhook set to %s\n", args[0])
			return nil
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				srvCfg := a.Config.Server
				if addr == "" {
					addr = srvCfg.Addr
				}
				if basePath == "" {
					basePath = srvCfg.BasePath
				}
				handler, err := server.New(server.Config{
					Engine:    a.Engine,
					BasePath:  basePath,
					Auth:      server.AuthConfig{JWTSecret: srvCfg.JWTSecret, Logger: a.Log},
					RateLimit: server.RateLimitConfig{RequestsPerMinute: srvCfg.RateLimitRPM, Burst: srvCfg.RateLimitBurst, TrustProxy: srvCfg.TrustProxy},
					Logger:    a.Log,
				})
				if err != nil {
					return err
				}
				if srvCfg.JWTSecret == "" {
					a.Log.Warnf("JURIFY_JWT_SECRET not set; every request acts as %s", server.DefaultActor)
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Jurify API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to server.base_path)")
	return cmd
}

// --- helpers ---

// loadConfig reads jurify.yml and applies environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("webhook_url"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := viper.GetString("database_dsn"); v != "" {
		cfg.Database.DSN = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, cfg.Validate()
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	a, err := app.Open(ctx, viper.GetString("workspace"), cfg, log)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	return errors.Join(runErr, a.Close())
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		return fn(ctx, a.Engine)
	})
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
