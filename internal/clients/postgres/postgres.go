package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	_ "github.com/lib/pq"

	"github.com/Asul0/belg-agent/models"
)

type Lookup struct {
	db     *sql.DB
	logger *log.Logger
}

func NewLookup(url string, logger *log.Logger) (*Lookup, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Lookup{db: db, logger: logger}, nil
}

func (l *Lookup) FindByINN(inn string) (models.ClientRecord, bool, error) {
	var rec models.ClientRecord
	err := l.db.QueryRow(
		`SELECT name, industry FROM clients WHERE inn = $1`,
		strings.TrimSpace(inn),
	).Scan(&rec.Name, &rec.Industry)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ClientRecord{}, false, nil
	}
	if err != nil {
		return models.ClientRecord{}, false, fmt.Errorf("query client by inn: %w", err)
	}
	return rec, true, nil
}

func (l *Lookup) Close() error { return l.db.Close() }
