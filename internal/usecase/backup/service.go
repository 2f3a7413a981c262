package backup

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/eslsoft/studyplan/internal/infrastructure/database"
)

const (
	defaultBatchSize = 512
	formatVersion    = 1
)

var errNoTablesSelected = errors.New("backup: no tables selected")

type ProgressReporter interface {
	StartTable(table string, total int)
	Increment(table string, delta int)
	FinishTable(table string)
}

type noopProgress struct{}

func (noopProgress) StartTable(string, int) {}
func (noopProgress) Increment(string, int)  {}
func (noopProgress) FinishTable(string)     {}

// Service streams the engine tables to and from NDJSON. Row values keep their
// storage representation: timestamps stay epoch milliseconds and JSON columns
// stay encoded text, so a backup restores byte for byte.
type Service struct {
	db         *database.DB
	batchSize  int
	tables     []*schema.Table
	tableIndex map[string]*schema.Table
	schemaHash string
}

type Option func(*Service)

func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// NewService constructs a backup service bound to db.
func NewService(db *database.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, errors.New("backup: database is required")
	}
	tables, err := schema.CopyTables(database.Tables)
	if err != nil {
		return nil, fmt.Errorf("copy schema tables: %w", err)
	}
	svc := &Service{
		db:         db,
		batchSize:  defaultBatchSize,
		tables:     tables,
		tableIndex: lo.KeyBy(tables, func(t *schema.Table) string { return t.Name }),
		schemaHash: computeSchemaHash(tables),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

type ExportOption func(*exportConfig)

type exportConfig struct {
	tables   []string
	reporter ProgressReporter
}

// WithTables restricts export to the provided table names.
func WithTables(tables []string) ExportOption {
	return func(cfg *exportConfig) {
		if len(tables) == 0 {
			return
		}
		cfg.tables = append([]string{}, tables...)
	}
}

// WithProgressReporter registers a reporter that receives progress callbacks during export.
func WithProgressReporter(reporter ProgressReporter) ExportOption {
	return func(cfg *exportConfig) {
		cfg.reporter = reporter
	}
}

type ImportOption func(*importConfig)

type importConfig struct {
	tables []string
}

// WithImportTables restricts import to the provided table names.
func WithImportTables(tables []string) ImportOption {
	return func(cfg *importConfig) {
		if len(tables) == 0 {
			return
		}
		cfg.tables = append([]string{}, tables...)
	}
}

// Summary reports what an import wrote.
type Summary struct {
	Rows map[string]int
}

type record struct {
	Type       string         `json:"type"`
	Version    int            `json:"version,omitempty"`
	ExportedAt *time.Time     `json:"exported_at,omitempty"`
	SchemaHash string         `json:"schema_hash,omitempty"`
	Tables     []string       `json:"tables,omitempty"`
	RowCounts  map[string]int `json:"row_counts,omitempty"`
	Payload    any            `json:"payload,omitempty"`
}

type rawRecord struct {
	Type       string          `json:"type"`
	Version    int             `json:"version"`
	ExportedAt *time.Time      `json:"exported_at"`
	SchemaHash string          `json:"schema_hash"`
	Tables     []string        `json:"tables"`
	RowCounts  map[string]int  `json:"row_counts"`
	Payload    json.RawMessage `json:"payload"`
}

func (s *Service) Export(ctx context.Context, w io.Writer, opts ...ExportOption) error {
	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	tables, err := s.selectTables(cfg.tables)
	if err != nil {
		return err
	}
	reporter := cfg.reporter
	if reporter == nil {
		reporter = noopProgress{}
	}

	counts := make(map[string]int, len(tables))
	for _, tbl := range tables {
		count, err := s.countTableRows(ctx, tbl.Name)
		if err != nil {
			return fmt.Errorf("count table %s: %w", tbl.Name, err)
		}
		counts[tbl.Name] = count
	}

	writer := bufio.NewWriter(w)
	defer writer.Flush()

	now := time.Now().UTC()
	meta := record{
		Type:       "meta",
		Version:    formatVersion,
		ExportedAt: &now,
		SchemaHash: s.schemaHash,
		Tables:     tableNames(tables),
		RowCounts:  counts,
	}
	if err := writeRecord(writer, meta); err != nil {
		return err
	}

	for _, tbl := range tables {
		reporter.StartTable(tbl.Name, counts[tbl.Name])
		if err := s.exportTable(ctx, tbl, reporter, writer); err != nil {
			return err
		}
		reporter.FinishTable(tbl.Name)
	}
	return writer.Flush()
}

// Import upserts every row of the requested tables inside one transaction.
// Rows already present are overwritten by their primary key.
func (s *Service) Import(ctx context.Context, r io.Reader, opts ...ImportOption) (Summary, error) {
	cfg := importConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	tables, err := s.selectTables(cfg.tables)
	if err != nil {
		return Summary{}, err
	}
	tableFilter := lo.KeyBy(tables, func(t *schema.Table) string { return t.Name })

	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("begin transaction: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	br := bufio.NewReader(r)
	var (
		metaSeen bool
		meta     rawRecord
		summary  = Summary{Rows: make(map[string]int)}
	)

	for {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Summary{}, fmt.Errorf("read backup: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var rec rawRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return Summary{}, fmt.Errorf("decode record: %w", err)
			}

			switch rec.Type {
			case "meta":
				if rec.Version != formatVersion {
					return Summary{}, fmt.Errorf("backup: unsupported format version %d", rec.Version)
				}
				metaSeen = true
				meta = rec
			default:
				if !metaSeen {
					return Summary{}, errors.New("backup: meta record must come first")
				}
				tbl, ok := tableFilter[rec.Type]
				if !ok {
					// Skip records for tables not requested.
					break
				}
				if len(rec.Payload) == 0 {
					return Summary{}, fmt.Errorf("backup: missing payload for table %s", rec.Type)
				}
				if err := s.importRow(ctx, tx, tbl, rec.Payload); err != nil {
					return Summary{}, err
				}
				summary.Rows[tbl.Name]++
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	if !metaSeen {
		return Summary{}, errors.New("backup: missing meta record")
	}
	if meta.SchemaHash != "" && meta.SchemaHash != s.schemaHash {
		return Summary{}, fmt.Errorf("backup: schema hash %s does not match %s", meta.SchemaHash, s.schemaHash)
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("commit import: %w", err)
	}
	commit = true
	return summary, nil
}

func (s *Service) exportTable(ctx context.Context, table *schema.Table, reporter ProgressReporter, w io.Writer) error {
	columns := columnNames(table)
	if len(columns) == 0 {
		return nil
	}
	order := orderColumns(table)

	for offset := 0; ; offset += s.batchSize {
		query, args := s.db.Builder().
			Select(columns...).
			From(entsql.Table(table.Name)).
			OrderBy(order...).
			Limit(s.batchSize).
			Offset(offset).
			Query()
		rows, err := s.db.SQL.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query %s: %w", table.Name, err)
		}

		rowCount, err := s.writeRows(rows, table, columns, reporter, w)
		rows.Close()
		if err != nil {
			return err
		}
		if rowCount < s.batchSize {
			break
		}
	}
	return nil
}

func (s *Service) writeRows(rows *sql.Rows, table *schema.Table, columns []string, reporter ProgressReporter, w io.Writer) (int, error) {
	rowCount := 0
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range dest {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return rowCount, fmt.Errorf("scan %s: %w", table.Name, err)
		}
		rowMap, err := convertRow(table, columns, values)
		if err != nil {
			return rowCount, err
		}
		if err := writeRecord(w, record{Type: table.Name, Payload: rowMap}); err != nil {
			return rowCount, err
		}
		reporter.Increment(table.Name, 1)
		rowCount++
	}
	if err := rows.Err(); err != nil {
		return rowCount, fmt.Errorf("iterate %s: %w", table.Name, err)
	}
	return rowCount, nil
}

func (s *Service) importRow(ctx context.Context, tx *sql.Tx, table *schema.Table, payload json.RawMessage) error {
	values, err := decodePayload(table, payload)
	if err != nil {
		return fmt.Errorf("decode payload for %s: %w", table.Name, err)
	}
	if len(values) == 0 {
		return nil
	}

	cols := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, col := range table.Columns {
		val, ok := values[col.Name]
		if !ok {
			continue
		}
		if val == nil && !col.Nullable {
			def, ok := defaultValueForColumn(col)
			if !ok {
				return fmt.Errorf("backup: missing required value for %s.%s", table.Name, col.Name)
			}
			val = def
		}
		cols = append(cols, col.Name)
		args = append(args, val)
	}
	if len(cols) == 0 {
		return nil
	}

	insert := s.db.Builder().Insert(table.Name).Columns(cols...).Values(args...)
	if conflict := conflictColumns(table); len(conflict) > 0 {
		if len(lo.Without(cols, conflict...)) == 0 {
			insert.OnConflict(entsql.ConflictColumns(conflict...), entsql.DoNothing())
		} else {
			insert.OnConflict(entsql.ConflictColumns(conflict...), entsql.ResolveWithNewValues())
		}
	}
	query, qargs := insert.Query()
	if _, err := tx.ExecContext(ctx, query, qargs...); err != nil {
		return fmt.Errorf("insert into %s: %w", table.Name, err)
	}
	return nil
}

func (s *Service) selectTables(requested []string) ([]*schema.Table, error) {
	if len(requested) == 0 {
		// Return tables sorted by name for deterministic order.
		tbls := append([]*schema.Table(nil), s.tables...)
		sort.Slice(tbls, func(i, j int) bool { return tbls[i].Name < tbls[j].Name })
		return tbls, nil
	}
	set := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		n := strings.TrimSpace(strings.ToLower(name))
		if n == "" {
			continue
		}
		if _, ok := s.tableIndex[n]; !ok {
			return nil, fmt.Errorf("backup: unsupported table %q", name)
		}
		set[n] = struct{}{}
	}
	if len(set) == 0 {
		return nil, errNoTablesSelected
	}
	tbls := lo.Filter(s.tables, func(t *schema.Table, _ int) bool {
		_, ok := set[t.Name]
		return ok
	})
	sort.Slice(tbls, func(i, j int) bool { return tbls[i].Name < tbls[j].Name })
	return tbls, nil
}

func (s *Service) countTableRows(ctx context.Context, table string) (int, error) {
	query, args := s.db.Builder().Select(entsql.Count("*")).From(entsql.Table(table)).Query()
	var count int
	if err := s.db.SQL.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func convertRow(table *schema.Table, columns []string, values []any) (map[string]any, error) {
	result := make(map[string]any, len(columns))
	for idx, name := range columns {
		col := findColumn(table, name)
		if col == nil {
			return nil, fmt.Errorf("column %s not found in table %s", name, table.Name)
		}
		val, err := convertDBValue(col, values[idx])
		if err != nil {
			return nil, fmt.Errorf("convert %s.%s: %w", table.Name, name, err)
		}
		result[name] = val
	}
	return result, nil
}

func convertDBValue(col *schema.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if v, ok := value.([]byte); ok {
		// database/sql often returns []byte for text columns.
		value = string(v)
	}
	return convertValue(col, value)
}

func decodePayload(table *schema.Table, payload json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	result := make(map[string]any, len(raw))
	for key, val := range raw {
		col := findColumn(table, key)
		if col == nil {
			return nil, fmt.Errorf("column %s not found in table %s", key, table.Name)
		}
		if val == nil {
			result[key] = nil
			continue
		}
		converted, err := convertValue(col, val)
		if err != nil {
			return nil, fmt.Errorf("convert %s.%s: %w", table.Name, key, err)
		}
		result[key] = converted
	}
	return result, nil
}

func convertValue(col *schema.Column, value any) (any, error) {
	switch col.Type {
	case field.TypeBool:
		return cast.ToBoolE(value)
	case field.TypeInt, field.TypeInt64:
		return cast.ToInt64E(value)
	case field.TypeFloat64:
		return cast.ToFloat64E(value)
	case field.TypeString:
		return cast.ToStringE(value)
	default:
		return value, nil
	}
}

func conflictColumns(table *schema.Table) []string {
	if len(table.PrimaryKey) > 0 {
		return lo.Map(table.PrimaryKey, func(c *schema.Column, _ int) string { return c.Name })
	}
	for _, idx := range table.Indexes {
		if idx.Unique && len(idx.Columns) > 0 {
			return lo.Map(idx.Columns, func(c *schema.Column, _ int) string { return c.Name })
		}
	}
	return nil
}

func orderColumns(table *schema.Table) []string {
	if len(table.PrimaryKey) > 0 {
		return lo.Map(table.PrimaryKey, func(c *schema.Column, _ int) string { return c.Name })
	}
	return columnNames(table)
}

func columnNames(table *schema.Table) []string {
	return lo.Map(table.Columns, func(c *schema.Column, _ int) string { return c.Name })
}

func tableNames(tables []*schema.Table) []string {
	return lo.Map(tables, func(t *schema.Table, _ int) string { return t.Name })
}

func findColumn(table *schema.Table, name string) *schema.Column {
	col, _ := lo.Find(table.Columns, func(c *schema.Column) bool { return c.Name == name })
	return col
}

func computeSchemaHash(tables []*schema.Table) string {
	builder := &strings.Builder{}
	sortedTables := append([]*schema.Table(nil), tables...)
	sort.Slice(sortedTables, func(i, j int) bool { return sortedTables[i].Name < sortedTables[j].Name })

	for _, tbl := range sortedTables {
		builder.WriteString(tbl.Name)
		builder.WriteString("|cols:")
		sortedCols := append([]*schema.Column(nil), tbl.Columns...)
		sort.Slice(sortedCols, func(i, j int) bool { return sortedCols[i].Name < sortedCols[j].Name })
		for _, col := range sortedCols {
			fmt.Fprintf(builder, "%s:%d:%t;", col.Name, col.Type, col.Nullable)
		}
		builder.WriteString("|pk:")
		for _, pk := range tbl.PrimaryKey {
			builder.WriteString(pk.Name)
			builder.WriteByte(',')
		}
		builder.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(builder.String()))
	return fmt.Sprintf("%x", sum[:])
}

func writeRecord(w io.Writer, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		return err
	}
	return nil
}

func defaultValueForColumn(col *schema.Column) (any, bool) {
	switch col.Type {
	case field.TypeString:
		return "", true
	case field.TypeInt, field.TypeInt64, field.TypeFloat64:
		return 0, true
	case field.TypeBool:
		return false, true
	default:
		return nil, false
	}
}
