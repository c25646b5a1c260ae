package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Asul0/belg-agent/internal/clients/postgres"
)

func TestFindByINNIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("belg"),
		tcPostgres.WithUsername("belg"),
		tcPostgres.WithPassword("belg"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://belg:belg@%s:%s/belg?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE clients (
			inn      TEXT PRIMARY KEY,
			name     TEXT NOT NULL,
			industry TEXT NOT NULL
		);
		INSERT INTO clients (inn, name, industry) VALUES
			('7707083893', 'ООО Ромашка', 'пищевая промышленность');
	`)
	if err != nil {
		t.Fatalf("seed clients: %v", err)
	}

	lookup, err := postgres.NewLookup(dsn, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewLookup: %v", err)
	}
	defer lookup.Close()

	rec, found, err := lookup.FindByINN("7707083893")
	if err != nil || !found {
		t.Fatalf("expected a record, found=%v err=%v", found, err)
	}
	if rec.Name != "ООО Ромашка" || rec.Industry != "пищевая промышленность" {
		t.Errorf("unexpected record: %+v", rec)
	}

	if _, found, err := lookup.FindByINN("0000000000"); err != nil || found {
		t.Errorf("unknown INN: found=%v err=%v", found, err)
	}
}
