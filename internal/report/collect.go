package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/gantry/internal/ctxutil"
	"github.com/mrz1836/gantry/internal/domain"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// collectConcurrency bounds parallel report copies. Report sets are small;
// this mostly avoids an unbounded goroutine per declared glob match.
const collectConcurrency = 4

// Collector copies declared report artifacts out of a stage workdir and
// summarizes any junit XML among them.
type Collector struct {
	logger zerolog.Logger
}

// NewCollector creates a report collector.
func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{
		logger: logger.With().Str("component", "report").Logger(),
	}
}

// Collect copies the declared report files from workdir into destDir and
// returns the collected destination paths in declaration order, plus a junit
// summary when any collected file parses as one.
//
// Missing declared reports are logged and skipped: a stage that crashed
// before writing its junit file already failed for a better reason. Only
// filesystem-level copy errors surface as an error.
func (c *Collector) Collect(ctx context.Context, workdir, destDir string, declared []string) ([]string, *domain.ReportSummary, error) {
	if len(declared) == 0 {
		return nil, nil, nil
	}

	if err := os.MkdirAll(destDir, dirPerm); err != nil {
		return nil, nil, err
	}

	collected := make([]string, len(declared))
	summaries := make([]*domain.ReportSummary, len(declared))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(collectConcurrency)

	for i, rel := range declared {
		g.Go(func() error {
			if err := ctxutil.Canceled(ctx); err != nil {
				return err
			}

			src := filepath.Join(workdir, rel)
			data, err := os.ReadFile(src) //#nosec G304 -- rel is validated relative by the pipeline loader
			if os.IsNotExist(err) {
				c.logger.Warn().Str("report", rel).Msg("declared report not produced")
				return nil
			}
			if err != nil {
				return err
			}

			// Flatten the relative path so nested reports don't collide.
			dest := filepath.Join(destDir, flattenPath(rel))
			if err := os.WriteFile(dest, data, filePerm); err != nil {
				return err
			}

			var summary *domain.ReportSummary
			if isJUnitFile(data) {
				if parsed, perr := parseJUnit(data); perr == nil {
					summary = &parsed
				} else {
					c.logger.Warn().Err(perr).Str("report", rel).Msg("failed to parse junit report")
				}
			}

			mu.Lock()
			collected[i] = dest
			summaries[i] = summary
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Compact preserving declaration order; aggregate junit counts.
	paths := make([]string, 0, len(declared))
	var total domain.ReportSummary
	found := false
	for i := range declared {
		if collected[i] != "" {
			paths = append(paths, collected[i])
		}
		if summaries[i] != nil {
			total.Add(*summaries[i])
			found = true
		}
	}

	if !found {
		return paths, nil, nil
	}
	return paths, &total, nil
}

// flattenPath turns a relative report path into a single file name,
// replacing separators so "sub/dir/results.xml" becomes "sub_dir_results.xml".
func flattenPath(rel string) string {
	rel = filepath.ToSlash(rel)
	return strings.ReplaceAll(rel, "/", "_")
}
