package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	baseURL string
	http    *http.Client
	out     io.Writer
}

func main() {
	var (
		server  string
		timeout time.Duration
	)
	c := &client{out: os.Stdout}

	rootCmd := &cobra.Command{
		Use:           "animeloader",
		Short:         "Client de l'API animeloader",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.baseURL = server
			c.http = &http.Client{Timeout: timeout}
		},
	}
	rootCmd.PersistentFlags().StringVar(&server, "server", envOr("ANIMELOADER_SERVER_URL", "http://127.0.0.1:8080"), "URL du serveur")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "timeout HTTP")

	rootCmd.AddCommand(newCommands(c)...)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(1)
	}
}

func newCommands(c *client) []*cobra.Command {
	var noDownload bool
	check := &cobra.Command{
		Use:   "check <feedID>",
		Short: "Lance un cycle d'ingestion immédiat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid feed id %q", args[0])
			}
			q := url.Values{"autoDownload": {strconv.FormatBool(!noDownload)}}
			return c.do(http.MethodPost, "/api/v1/feeds/"+args[0]+"/check?"+q.Encode(), nil)
		},
	}
	check.Flags().BoolVar(&noDownload, "no-download", false, "ne déclenche pas les téléchargements")

	return []*cobra.Command{
		{
			Use:   "health",
			Short: "État du serveur",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(http.MethodGet, "/api/v1/health", nil)
			},
		},
		{
			Use:   "version",
			Short: "Version du serveur",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(http.MethodGet, "/api/v1/version", nil)
			},
		},
		{
			Use:   "jobs",
			Short: "Liste les jobs planifiés",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(http.MethodGet, "/api/v1/scheduler", nil)
			},
		},
		check,
		{
			Use:   "discover <url>",
			Short: "Analyse une page de catalogue",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.do(http.MethodPost, "/api/v1/smart-add/discover", map[string]string{"url": args[0]})
			},
		},
	}
}

// do affiche la réponse JSON indentée ; un statut >= 400 devient une erreur.
func (c *client) do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty any
	if err := json.Unmarshal(b, &pretty); err == nil {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(pretty)
	} else {
		c.out.Write(b)
		c.out.Write([]byte("\n"))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
