// Package clients resolves a client record (name and industry) from a
// tax number, backed either by a CSV export or by Postgres.
package clients

import (
	"fmt"
	"log"

	"github.com/Asul0/belg-agent/config"
	"github.com/Asul0/belg-agent/internal/clients/csvfile"
	"github.com/Asul0/belg-agent/internal/clients/postgres"
	"github.com/Asul0/belg-agent/models"
)

type Backend string

const (
	BackendCSV      Backend = "csv"
	BackendPostgres Backend = "postgres"
)

// Lookup finds a client record by INN. A missing record is reported
// with found=false, not an error.
type Lookup interface {
	FindByINN(inn string) (models.ClientRecord, bool, error)
}

func NewLookup(cfg config.ClientsConfig, logger *log.Logger) (Lookup, error) {
	switch Backend(cfg.Backend) {
	case BackendCSV:
		return csvfile.NewLookup(cfg.CSVPath, logger)
	case BackendPostgres:
		return postgres.NewLookup(cfg.PostgresURL, logger)
	default:
		return nil, fmt.Errorf("unknown clients backend: %s", cfg.Backend)
	}
}
