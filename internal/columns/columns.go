// Package columns normalizes a project's status columns and provisions the
// default set when a project has none.
package columns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"boardsync/internal/models"
)

// ErrNoColumns is returned when a project still has no columns after
// provisioning.
var ErrNoColumns = errors.New("project has no columns")

// Defaults is the column set created for an empty project, in order.
var Defaults = []models.ColumnSpec{
	{Name: "To Do", Order: 1, Status: "todo"},
	{Name: "In Progress", Order: 2, Status: "inprogress"},
	{Name: "In Review", Order: 3, Status: "inreview"},
	{Name: "Done", Order: 4, Status: "done"},
}

var lower = cases.Lower(language.Und)

// StatusKey returns the grouping key of a column: its explicit status, or
// its name lowercased with all whitespace removed.
func StatusKey(c models.Column) string {
	if s := strings.TrimSpace(c.Status); s != "" {
		return s
	}
	return Slug(c.Name)
}

// Slug lowercases name and strips every whitespace rune.
func Slug(name string) string {
	folded := lower.String(norm.NFC.String(name))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}

// Dedupe sets every column's Status to its key, keeps the first column per
// key and returns them stably sorted by Order. Columns with an empty key are
// dropped.
func Dedupe(cols []models.Column) []models.Column {
	seen := make(map[string]struct{}, len(cols))
	out := make([]models.Column, 0, len(cols))
	for _, c := range cols {
		key := StatusKey(c)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		c.Status = key
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// API is the subset of the remote API used for provisioning.
type API interface {
	ListColumns(ctx context.Context, projectID int64) ([]models.Column, error)
	CreateColumn(ctx context.Context, projectID int64, spec models.ColumnSpec) (models.Column, error)
}

// Provisioner guarantees a project has a usable column set.
type Provisioner struct {
	// IsDuplicate reports whether a creation error means the column already
	// exists. Such errors are treated as success.
	IsDuplicate func(error) bool

	api    API
	logger *slog.Logger
}

// NewProvisioner creates a provisioner backed by api.
func NewProvisioner(api API, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{api: api, logger: logger}
}

// Ensure returns the deduplicated columns of the project, creating the
// default set first when the project has none. Running it again never
// creates a second column for the same status key.
func (p *Provisioner) Ensure(ctx context.Context, projectID int64) ([]models.Column, error) {
	cols, err := p.list(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		return cols, nil
	}

	if err := p.createDefaults(ctx, projectID); err != nil {
		return nil, err
	}

	cols, err = p.list(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("project %d: %w", projectID, ErrNoColumns)
	}
	return cols, nil
}

func (p *Provisioner) list(ctx context.Context, projectID int64) ([]models.Column, error) {
	cols, err := p.api.ListColumns(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	return Dedupe(cols), nil
}

// createDefaults re-reads the column set right before creating so a
// concurrent provisioner's columns are skipped, then creates the missing
// defaults one at a time in order.
func (p *Provisioner) createDefaults(ctx context.Context, projectID int64) error {
	existing, err := p.list(ctx, projectID)
	if err != nil {
		return err
	}
	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[c.Status] = struct{}{}
	}

	for _, spec := range Defaults {
		if _, ok := have[spec.Status]; ok {
			continue
		}
		if _, err := p.api.CreateColumn(ctx, projectID, spec); err != nil {
			if p.IsDuplicate != nil && p.IsDuplicate(err) {
				p.logger.Debug("default column already exists", slog.String("status", spec.Status))
				continue
			}
			return fmt.Errorf("create column %q: %w", spec.Status, err)
		}
		p.logger.Info("column provisioned", slog.Int64("project", projectID), slog.String("status", spec.Status))
	}
	return nil
}
