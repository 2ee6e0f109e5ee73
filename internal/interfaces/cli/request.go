package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	httpdomain "ytd.app/adminctl/internal/core/domain/http"
)

// NewRequestCommand creates the request command with one subcommand per verb
func NewRequestCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Send an authenticated request to the backend",
		Long: `Send a request through the session client. Expired access tokens are
refreshed once and the request replayed; state-changing verbs carry a CSRF token.`,
	}

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		cmd.AddCommand(newVerbCommand(container, method))
	}
	return cmd
}

type requestFlags struct {
	data    string
	headers []string
	query   []string
	noRetry bool
	include bool
}

func newVerbCommand(container *CLIContainer, method string) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " <path>",
		Short: fmt.Sprintf("Send a %s request", method),
		Args:  cobra.ExactArgs(1),
		Example: fmt.Sprintf(`  adminctl request %s /jobs --query status=active
  adminctl request %s /jobs --data '{"name":"nightly"}' --header "X-Trace: 1"`,
			strings.ToLower(method), strings.ToLower(method)),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.build(method, args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			resp, err := container.Container.Session.Do(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printResponse(cmd.OutOrStdout(), resp, flags.include)
		},
	}

	if method != http.MethodGet && method != http.MethodDelete {
		cmd.Flags().StringVarP(&flags.data, "data", "d", "", "Request body; @file reads a file, @- reads stdin")
	}
	cmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, `Extra header "Name: value" (repeatable)`)
	cmd.Flags().StringArrayVarP(&flags.query, "query", "q", nil, "Query parameter name=value (repeatable)")
	cmd.Flags().BoolVar(&flags.noRetry, "no-retry", false, "Do not refresh and replay on 401")
	cmd.Flags().BoolVarP(&flags.include, "include", "i", false, "Print the status line before the body")
	return cmd
}

func (f requestFlags) build(method, path string, stdin io.Reader) (httpdomain.RequestContext, error) {
	req := httpdomain.RequestContext{Method: method, Path: path, NoRetry: f.noRetry}

	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return req, fmt.Errorf("invalid header %q (want \"Name: value\")", h)
		}
		if req.Headers == nil {
			req.Headers = map[string]string{}
		}
		req.Headers[name] = strings.TrimSpace(value)
	}

	for _, q := range f.query {
		name, value, ok := strings.Cut(q, "=")
		if !ok || name == "" {
			return req, fmt.Errorf("invalid query parameter %q (want name=value)", q)
		}
		if req.Query == nil {
			req.Query = map[string]string{}
		}
		req.Query[name] = value
	}

	body, err := readData(f.data, stdin)
	if err != nil {
		return req, err
	}
	req.Body = body
	return req, nil
}

func readData(data string, stdin io.Reader) ([]byte, error) {
	switch {
	case data == "":
		return nil, nil
	case data == "@-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read body from stdin: %w", err)
		}
		return b, nil
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		return b, nil
	}
	return []byte(data), nil
}

func printResponse(w io.Writer, resp *httpdomain.Response, include bool) error {
	if include {
		fmt.Fprintf(w, "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if len(resp.Body) == 0 {
		return nil
	}
	if resp.IsJSON() {
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp.Body, "", "  "); err == nil {
			buf.WriteByte('\n')
			_, err = buf.WriteTo(w)
			return err
		}
	}
	text := resp.Text()
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}
