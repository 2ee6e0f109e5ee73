package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const defaultBatchConcurrency = 8

type batchResult struct {
	status int
	size   int
	err    error
}

// NewBatchCommand creates the batch command. All GETs share one session, so
// an expired access token is refreshed once for the whole batch.
func NewBatchCommand(container *CLIContainer) *cobra.Command {
	var (
		concurrency int
		failFast    bool
	)

	cmd := &cobra.Command{
		Use:     "batch <path>...",
		Short:   "GET several paths concurrently",
		Args:    cobra.MinimumNArgs(1),
		Example: `  adminctl batch /plans /jobs /auth/me --concurrency 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := container.Container.Session
			results := make([]batchResult, len(args))

			g, ctx := errgroup.WithContext(cmd.Context())
			if !failFast {
				g = &errgroup.Group{}
				ctx = cmd.Context()
			}
			if concurrency > 0 {
				g.SetLimit(concurrency)
			}

			for i, path := range args {
				g.Go(func() error {
					resp, err := session.Get(ctx, path)
					if err != nil {
						results[i] = batchResult{err: err}
						if failFast {
							return fmt.Errorf("%s: %w", path, err)
						}
						return nil
					}
					results[i] = batchResult{status: resp.StatusCode, size: len(resp.Body)}
					return nil
				})
			}
			waitErr := g.Wait()

			out := cmd.OutOrStdout()
			failed := 0
			for i, path := range args {
				r := results[i]
				switch {
				case r.err != nil:
					failed++
					fmt.Fprintf(out, "%s %s %s\n", badStyle.Render("FAIL"), path, dimStyle.Render(describeError(r.err)))
				case r.status == 0:
					fmt.Fprintf(out, "%s %s\n", dimStyle.Render("SKIP"), path)
				default:
					fmt.Fprintf(out, "%s  %s %s\n", okStyle.Render(fmt.Sprint(r.status)), path, dimStyle.Render(fmt.Sprintf("(%d bytes)", r.size)))
				}
			}

			if waitErr != nil {
				return waitErr
			}
			if failed > 0 {
				return firstError(results, failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", defaultBatchConcurrency, "Maximum requests in flight")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Cancel the remaining requests after the first failure")
	return cmd
}

// firstError keeps the type of the first failure so the exit code reflects it
func firstError(results []batchResult, failed, total int) error {
	for _, r := range results {
		if r.err != nil {
			return fmt.Errorf("%d of %d requests failed: %w", failed, total, r.err)
		}
	}
	return nil
}
