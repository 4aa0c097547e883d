package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/config"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/daemon"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/client"
	"github.com/CodehubPriyanshu/taskhub-central-sub000/pkg/models"
)

// apiFlags are shared by the commands that talk to a running server.
type apiFlags struct {
	server string
	actor  string
	token  string
}

func addAPIFlags(cmd *cobra.Command, f *apiFlags) {
	cmd.PersistentFlags().StringVar(&f.server, "server", "", "Server URL (default: running daemon, then server.addr; env: TASKHUB_SERVER)")
	cmd.PersistentFlags().StringVar(&f.actor, "as", "", "Act as this member ID via X-Actor-ID (env: TASKHUB_ACTOR)")
	cmd.PersistentFlags().StringVar(&f.token, "token", "", "Bearer token (env: TASKHUB_TOKEN)")
}

// client resolves the server URL and credentials.
func (f *apiFlags) client(cmd *cobra.Command) (*client.Client, error) {
	server := firstNonEmpty(f.server, os.Getenv("TASKHUB_SERVER"))
	if server == "" {
		home := config.MustHomeFrom(cmd.Context())
		if st, _ := daemon.Status(cmd.Context(), home); st.Running && st.Addr != "unknown" {
			server = st.Addr
		} else {
			cfg, err := config.Load(home)
			if err != nil {
				return nil, err
			}
			server = cfg.Addr
		}
	}
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	c := client.New(strings.TrimRight(server, "/"), firstNonEmpty(f.actor, os.Getenv("TASKHUB_ACTOR")))
	c.Token = firstNonEmpty(f.token, os.Getenv("TASKHUB_TOKEN"))
	if c.Token == "" && c.ActorID == "" {
		return nil, errors.New("--as or --token is required")
	}
	return c, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTaskLine prints the one-line summary used after task actions.
func printTaskLine(w io.Writer, t *models.Task) {
	_, _ = fmt.Fprintf(w, "Task %s: status=%s acceptance=%s deadline=%s\n",
		t.TaskID, t.Status, t.AcceptanceStatus, t.Deadline.Format("2006-01-02"))
}
