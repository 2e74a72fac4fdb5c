package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/tbourn/legal-billing-backend/internal/app"
)

// withServices opens the database, builds the services and hands them to fn.
func withServices(env *cliEnv, fn func(*app.Services) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		db, closeDB, err := openDB(env.cfg, true)
		if err != nil {
			return err
		}
		defer closeDB()

		svcs, err := app.New(env.cfg, db)
		if err != nil {
			return err
		}
		out, err := fn(svcs)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newPushCmd(env *cliEnv) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push every summarized, unpushed email to Clio once",
		Long: `Run one push pass and print its result as JSON.

With --idempotency-key, rerunning within IDEMPOTENCY_TTL prints the
recorded result instead of pushing again.`,
	}
	cmd.RunE = withServices(env, func(s *app.Services) (any, error) {
		return s.Sync.PushIdempotent(cmd.Context(), key)
	})
	cmd.Flags().StringVar(&key, "idempotency-key", "", "replay the run recorded under this key if one exists")
	return cmd
}

func newGenerateCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Summarize every email that has no summary yet",
	}
	cmd.RunE = withServices(env, func(s *app.Services) (any, error) {
		return s.Summaries.Generate(cmd.Context())
	})
	return cmd
}

func newImportCmd(env *cliEnv) *cobra.Command {
	var days, limit int
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import recent emails from the connected mailbox",
	}
	cmd.RunE = withServices(env, func(s *app.Services) (any, error) {
		res, err := s.Mailbox.Import(cmd.Context(), days, limit)
		if err != nil {
			return nil, err
		}
		return struct {
			EmailsFetched int `json:"emails_fetched"`
			NewEmails     int `json:"new_emails"`
		}{res.EmailsFetched, res.NewEmails}, nil
	})
	cmd.Flags().IntVar(&days, "days-back", 7, "import messages from the last N days")
	cmd.Flags().IntVar(&limit, "max-results", 100, "maximum messages to fetch")
	return cmd
}
