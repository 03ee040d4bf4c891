// Package catalog imports the static item catalog from an SDE invTypes CSV
// dump so reports can show item names instead of bare type ids.
package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"eve-trade-ledger/internal/models"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 500

// Importer downloads and imports the static item catalog.
type Importer struct {
	logger *zap.Logger
	db     *gorm.DB
	client *resty.Client
	url    string
}

// NewImporter creates a new catalog importer for the given invTypes CSV URL.
func NewImporter(logger *zap.Logger, db *gorm.DB, typesURL string) *Importer {
	return &Importer{
		logger: logger,
		db:     db,
		client: resty.New(),
		url:    typesURL,
	}
}

// Run downloads the CSV and upserts every row into item_types. Existing rows
// are updated in place, so reruns refresh names without duplicating.
func (i *Importer) Run(ctx context.Context) (int, error) {
	i.logger.Info("Downloading item catalog", zap.String("url", i.url))

	resp, err := i.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(i.url)
	if err != nil {
		return 0, fmt.Errorf("failed to download item catalog: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("failed to download item catalog: status %s", resp.Status())
	}

	imported, err := i.importCSV(body)
	if err != nil {
		return imported, err
	}

	i.logger.Info("Item catalog imported", zap.Int("items", imported))
	return imported, nil
}

func (i *Importer) importCSV(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // the dump carries trailing columns we ignore

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for idx, name := range header {
		cols[name] = idx
	}
	minFields := 0
	for _, required := range []string{"typeID", "typeName", "published"} {
		idx, ok := cols[required]
		if !ok {
			return 0, fmt.Errorf("catalog CSV missing column %q", required)
		}
		if idx >= minFields {
			minFields = idx + 1
		}
	}

	var batch []models.ItemType
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := i.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "published"}),
		}).Create(&batch).Error
		if err != nil {
			return fmt.Errorf("failed to upsert item types: %w", err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("failed to read catalog row: %w", err)
		}
		if len(record) < minFields {
			continue
		}

		typeID, err := strconv.ParseInt(record[cols["typeID"]], 10, 32)
		if err != nil {
			continue // malformed row, skip
		}

		batch = append(batch, models.ItemType{
			TypeID:    int32(typeID),
			Name:      record[cols["typeName"]],
			Published: record[cols["published"]] == "1",
		})

		if len(batch) >= upsertBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
