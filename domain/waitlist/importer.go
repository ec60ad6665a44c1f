package waitlist

import (
	"context"

	"github.com/akeren/launch-waitlist/internal/log"
	"github.com/akeren/launch-waitlist/internal/sheet"
	"github.com/akeren/launch-waitlist/pkg/utils"
	"github.com/go-playground/validator/v10"
)

// Header spellings accepted by the OG import, checked in order.
var (
	emailHeaders = []string{"Email", "email", "EMAIL"}
	nameHeaders  = []string{"Name", "name", "NAME", "First Name"}
	phoneHeaders = []string{"Phone", "phone", "PHONE"}
)

// ImportRow is one data row. Line counts the header as line 1 and ignores skipped blank rows.
type ImportRow struct {
	Line  int
	Email string
	Name  string
	Phone string
}

type ImportFailure struct {
	Line  int
	Email string
	Err   error
}

type ImportSummary struct {
	Imported int
	Updated  int
	Skipped  int
	Failed   int
	TotalOG  int64
	Failures []ImportFailure
}

// RowsFromTable maps header-keyed cells onto import rows.
func RowsFromTable(table *sheet.Table) []ImportRow {
	if table == nil {
		return nil
	}

	rows := make([]ImportRow, 0, len(table.Rows))
	for i, r := range table.Rows {
		rows = append(rows, ImportRow{
			Line:  i + 2,
			Email: r.First(emailHeaders...),
			Name:  r.First(nameHeaders...),
			Phone: r.First(phoneHeaders...),
		})
	}
	return rows
}

// Importer marks spreadsheet rows as verified OG members.
type Importer struct {
	repository WaitlistRepository
	logger     *log.Logger
	validate   *validator.Validate
}

func NewImporter(repository WaitlistRepository, logger *log.Logger) *Importer {
	return &Importer{repository: repository, logger: logger, validate: validator.New()}
}

// Import never aborts on a bad row: rows without an email are skipped, rows that
// fail are counted and reported. The error is reserved for the final OG count.
func (im *Importer) Import(ctx context.Context, rows []ImportRow) (*ImportSummary, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, im.logger)
	summary := &ImportSummary{}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		email := utils.NormalizeEmail(row.Email)
		if email == "" {
			summary.Skipped++
			logger.Debug("Skipping row without email", "line", row.Line)
			continue
		}

		if err := im.validate.Var(email, "email"); err != nil {
			im.fail(summary, row.Line, email, invalidEmail())
			continue
		}

		created, err := im.repository.UpsertOG(ctx, email, optionalText(row.Name), optionalText(row.Phone))
		if err != nil {
			im.fail(summary, row.Line, email, err)
			continue
		}

		if created {
			summary.Imported++
			logger.Info("Imported OG member", "line", row.Line, "email", email)
		} else {
			summary.Updated++
			logger.Info("Marked existing entry as OG", "line", row.Line, "email", email)
		}
	}

	total, err := im.repository.CountOG(ctx)
	if err != nil {
		return summary, err
	}
	summary.TotalOG = total

	return summary, nil
}

func (im *Importer) fail(summary *ImportSummary, line int, email string, err error) {
	summary.Failed++
	summary.Failures = append(summary.Failures, ImportFailure{Line: line, Email: email, Err: err})
	im.logger.Warn("Import row failed", "line", line, "email", email, "error", err)
}
