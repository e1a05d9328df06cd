package parts

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the parts catalog.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Part, int, error)
	Get(ctx context.Context, id int64) (Part, error)
	GetByNumber(ctx context.Context, number string) (Part, error)
	Create(ctx context.Context, part Part) (Part, error)
	Update(ctx context.Context, id int64, part Part) error
	Delete(ctx context.Context, id int64) error
	ListBelowReorder(ctx context.Context) ([]Part, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const partColumns = `id, number, name, part_type, stock, unit, reorder_level, created_at, updated_at`

func scanPart(row pgx.Row) (Part, error) {
	var p Part
	err := row.Scan(&p.ID, &p.Number, &p.Name, &p.Type, &p.Stock, &p.Unit, &p.ReorderLevel, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Part{}, ErrNotFound
	}
	return p, err
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Part, int, error) {
	query := `SELECT ` + partColumns + ` FROM parts WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM parts WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		cond := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR number ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Type != "" {
		argCount++
		cond := ` AND part_type = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, string(filters.Type))
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Part
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.Number, &p.Name, &p.Type, &p.Stock, &p.Unit, &p.ReorderLevel, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, p)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Part, error) {
	return scanPart(r.db.QueryRow(ctx, `SELECT `+partColumns+` FROM parts WHERE id = $1`, id))
}

func (r *repository) GetByNumber(ctx context.Context, number string) (Part, error) {
	return scanPart(r.db.QueryRow(ctx, `SELECT `+partColumns+` FROM parts WHERE number = $1`, number))
}

func (r *repository) Create(ctx context.Context, part Part) (Part, error) {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO parts (number, name, part_type, stock, unit, reorder_level, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7) RETURNING id`,
		part.Number, part.Name, string(part.Type), part.Stock, part.Unit, part.ReorderLevel, now).Scan(&part.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Part{}, ErrNumberTaken
		}
		return Part{}, err
	}
	part.CreatedAt = now
	part.UpdatedAt = now
	return part, nil
}

func (r *repository) Update(ctx context.Context, id int64, part Part) error {
	tag, err := r.db.Exec(ctx, `UPDATE parts SET number=$1, name=$2, part_type=$3, unit=$4, reorder_level=$5, updated_at=$6 WHERE id=$7`,
		part.Number, part.Name, string(part.Type), part.Unit, part.ReorderLevel, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNumberTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM parts WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ListBelowReorder(ctx context.Context) ([]Part, error) {
	rows, err := r.db.Query(ctx, `SELECT `+partColumns+` FROM parts WHERE reorder_level > 0 AND stock <= reorder_level ORDER BY number ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Part
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.Number, &p.Name, &p.Type, &p.Stock, &p.Unit, &p.ReorderLevel, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "number":
		return "number " + dir
	case "name":
		return "name " + dir
	case "stock":
		return "stock " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "number " + dir
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
