package postgres

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var schemaSQL string

var schemaTemplate = template.Must(template.New("schema").Parse(schemaSQL))

// RenderSchema returns the DDL for an embedding column of the given width.
func RenderSchema(dimension int) (string, error) {
	if dimension <= 0 {
		return "", fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	var buf bytes.Buffer
	if err := schemaTemplate.Execute(&buf, struct{ Dimension int }{dimension}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Migrate creates the pgvector extension and the tables if missing.
// It uses its own connection because the pool registers the vector type on
// connect, which fails until the extension exists.
func Migrate(ctx context.Context, url string, dimension int) error {
	ddl, err := RenderSchema(dimension)
	if err != nil {
		return err
	}

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	// simple protocol allows several statements in one Exec
	if _, err := conn.Exec(ctx, ddl, pgx.QueryExecModeSimpleProtocol); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
