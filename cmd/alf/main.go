package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"alfcoach/internal/app"
	"alfcoach/internal/config"
	"alfcoach/internal/db"
	"alfcoach/internal/domain"
	"alfcoach/internal/flow"
	"alfcoach/internal/migrate"
	"alfcoach/internal/repo"
	"alfcoach/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "alf",
	Short: "ALF Coach CLI",
	Long: `ALF Coach walks a teacher through designing a project-based learning blueprint.
Core concepts:
- Workspace: your .alfcoach directory holding only the database; the coach config lives in the DB.
- Session: one blueprint conversation, moving through ideation, journey, deliverables, and completion.
- Steps: big_idea -> essential_question -> challenge -> journey -> deliverables -> completion -> completed.
- Turns: each message you send is assessed, captured into the blueprint, and checked against the stage gate.
- Going back: say "go back" (or use 'alf back') to revisit an earlier step; nothing you captured is lost.
- Event log: diary of session changes, view with 'alf log tail'.`,
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
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ALFCOACH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(sayCmd())
	rootCmd.AddCommand(backCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(transcriptCmd())
	rootCmd.AddCommand(blueprintCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func sessionCmd() *cobra.Command {
	session := &cobra.Command{
		Use:   "session",
		Short: "Manage blueprint sessions",
	}
	session.AddCommand(sessionStartCmd())
	session.AddCommand(sessionListCmd())
	session.AddCommand(sessionShowCmd())
	session.AddCommand(sessionDeleteCmd())
	return session
}

func sessionStartCmd() *cobra.Command {
	var id, title, duration string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new blueprint session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e flow.Engine) error {
				s, err := e.StartSession(ctx, flow.StartOptions{
					ID:           id,
					Title:        title,
					DurationHint: duration,
					ActorID:      viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Session %s started. First step: what's the big idea?\n", s.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "session id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&title, "title", "", "working title for the project")
	cmd.Flags().StringVar(&duration, "duration", "", "duration hint, e.g. \"6 weeks\"")
	return cmd
}

func sessionListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSessions(ctx, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Step", "Stage", "Status", "Updated"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Title, s.Step, s.Stage, s.Status, s.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (active, completed)")
	return cmd
}

func sessionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				s, err := r.GetSession(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func sessionDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteSession(ctx, args[0])
			})
		},
	}
	return cmd
}

func sayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "say <session-id> <text>",
		Short: "Send one chat turn to the coach",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			text := strings.Join(args[1:], " ")
			return withEngine(cmd.Context(), func(ctx context.Context, e flow.Engine) error {
				t, err := e.Submit(ctx, sessionID, text, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				printTurn(t)
				return nil
			})
		},
	}
	return cmd
}

func printTurn(t domain.Turn) {
	switch t.Outcome {
	case domain.OutcomeAdvanced:
		if t.NextStep == domain.StepCompleted {
			fmt.Println("Blueprint complete. Nice work!")
			return
		}
		fmt.Printf("Got it. Moving on to: %s\n", stepPrompt(t.NextStep))
	case domain.OutcomeHeld:
		fmt.Printf("Captured. Not done with this step yet: %s\n", t.Reason)
	case domain.OutcomeRejected:
		fmt.Println(t.Reason)
	case domain.OutcomeBack:
		fmt.Printf("Stepping back to %s. Everything you captured is kept.\n", t.NextStep)
	}
}

func stepPrompt(s domain.Step) string {
	switch s {
	case domain.StepBigIdea:
		return "what's the big idea?"
	case domain.StepEssentialQuestion:
		return "what essential question will drive the inquiry?"
	case domain.StepChallenge:
		return "what authentic challenge will students take on?"
	case domain.StepJourney:
		return "map the learning journey, one phase per line"
	case domain.StepDeliverables:
		return "list milestones, artifacts, and rubric criteria"
	case domain.StepCompletion:
		return "review the blueprint and confirm when it looks right"
	default:
		return string(s)
	}
}

func backCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "back <session-id> [step]",
		Short: "Re-enter an earlier step",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target domain.Step
			if len(args) == 2 {
				target = domain.Step(args[1])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e flow.Engine) error {
				s, err := e.GoBack(ctx, args[0], target, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Back at %s: %s\n", s.Step, stepPrompt(s.Step))
				return nil
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show session progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e flow.Engine) error {
				st, err := e.SessionStatus(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				fmt.Printf("Session: %s (%s)\n", st.SessionID, st.SessionStatus)
				fmt.Printf("Step: %s (stage %s), %d turns so far\n", st.Step, st.Stage, st.Turns)
				if st.Gate.OK {
					fmt.Println("Gate: met")
				} else {
					fmt.Println("Gate: not met")
					for _, m := range st.Gate.Missing {
						fmt.Printf("  - %s\n", m)
					}
				}
				return nil
			})
		},
	}
	return cmd
}

func transcriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript <session-id>",
		Short: "Show the session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				turns, err := r.ListTurns(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(turns)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Step", "Text", "Outcome", "Reason"})
				for _, t := range turns {
					tw.AppendRow(table.Row{t.Seq, t.Step, truncate(t.Text, 48), t.Outcome, truncate(t.Reason, 48)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func blueprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blueprint <session-id>",
		Short: "Show the captured blueprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				s, err := r.GetSession(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s.Captured)
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage coach config",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configImportCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configValidateCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a YAML config file, or the stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath != "" {
				data, err := os.ReadFile(filePath)
				if err != nil {
					return err
				}
				if _, err := config.FromYAML(data); err != nil {
					return err
				}
				fmt.Println("config ok")
				return nil
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e flow.Engine) error {
				if err := e.Config.Validate(); err != nil {
					return err
				}
				fmt.Println("config ok")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config (defaults to the stored config)")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show coach config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e flow.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import coach config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			cfg, err := config.FromYAML(data)
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpsertConfig(ctx, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func configInitCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Print the default config YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault(name))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "alf", "coach name")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Inspect the event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, sessionID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, sessionID, evtType)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e flow.Engine) error {
				authCfg := server.AuthConfig{JWTSecret: os.Getenv("ALFCOACH_JWT_SECRET")}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				fmt.Printf("Serving ALF Coach API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, flow.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveConfig(ctx, "alf", r)
	if err != nil {
		return err
	}
	e := flow.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
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

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
