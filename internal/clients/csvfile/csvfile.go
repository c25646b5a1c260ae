package csvfile

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Asul0/belg-agent/models"
)

// Lookup holds the whole client base in memory, loaded once at
// startup. The export is small (tens of thousands of rows at most).
type Lookup struct {
	byINN  map[string]models.ClientRecord
	logger *log.Logger
}

func NewLookup(path string, logger *log.Logger) (*Lookup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clients file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read clients file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("clients file %s is empty", path)
	}

	innCol, nameCol, industryCol := -1, -1, -1
	for i, h := range rows[0] {
		switch strings.TrimSpace(h) {
		case "ИНН":
			innCol = i
		case "Клиент":
			nameCol = i
		case "Отрасль_ОКК":
			industryCol = i
		}
	}
	if innCol < 0 || nameCol < 0 || industryCol < 0 {
		return nil, fmt.Errorf("clients file %s is missing required columns", path)
	}

	byINN := make(map[string]models.ClientRecord, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= innCol || len(row) <= nameCol || len(row) <= industryCol {
			continue
		}
		inn := strings.TrimSpace(row[innCol])
		if inn == "" {
			continue
		}
		byINN[inn] = models.ClientRecord{
			Name:     strings.TrimSpace(row[nameCol]),
			Industry: strings.TrimSpace(row[industryCol]),
		}
	}
	logger.Printf("loaded %d client records from %s", len(byINN), path)
	return &Lookup{byINN: byINN, logger: logger}, nil
}

func (l *Lookup) FindByINN(inn string) (models.ClientRecord, bool, error) {
	rec, ok := l.byINN[strings.TrimSpace(inn)]
	return rec, ok, nil
}
