package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/cinestream/internal/domain"
)

const (
	// DefaultListLimit applies when callers do not ask for a page size.
	DefaultListLimit = 50
	// MaxListLimit is the largest page the catalog serves. The service
	// rejects larger requests before they reach the repository.
	MaxListLimit = 500
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    id::text,
    title,
    genre,
    year,
    description,
    poster,
    source_link,
    embed_id,
    duration,
    views,
    created_at,
    updated_at
`

// MovieCreateParams bundles the fields required to create a movie.
type MovieCreateParams struct {
	Title       string
	Genre       string
	Year        int
	Description string
	Poster      string
	SourceLink  string
	EmbedID     string
	Duration    string
}

// MovieListFilters encapsulates search and page size options.
type MovieListFilters struct {
	Search *string
	Genre  *string
	Limit  int
}

// MovieListResult returns one page plus the number of movies matching the filters.
type MovieListResult struct {
	Items []domain.Movie
	Total int64
}

// Create inserts a new movie row and returns the stored entity.
func (r *MoviesRepository) Create(ctx context.Context, params MovieCreateParams) (domain.Movie, error) {
	duration := params.Duration
	if duration == "" {
		duration = domain.DurationUnknown
	}

	query := fmt.Sprintf(`
        INSERT INTO movies (title, genre, year, description, poster, source_link, embed_id, duration)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING %s
    `, movieColumns)

	row := r.pool.QueryRow(ctx, query,
		params.Title, params.Genre, params.Year, params.Description,
		params.Poster, params.SourceLink, params.EmbedID, duration)
	return scanMovie(row)
}

// GetByID fetches a movie by its identifier without touching the view counter.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1`, movieColumns)
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// IncrementViews bumps the view counter in place and returns the updated row.
func (r *MoviesRepository) IncrementViews(ctx context.Context, id string) (domain.Movie, error) {
	query := fmt.Sprintf(`
        UPDATE movies
        SET views = views + 1
        WHERE id = $1
        RETURNING %s
    `, movieColumns)

	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return movie, nil
}

// Delete removes a movie. Deleting an absent id reports ErrNotFound.
func (r *MoviesRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the size of the whole catalog.
func (r *MoviesRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM movies`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return total, nil
}

// List returns movies that match the provided filters, newest first.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) (MovieListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = DefaultListLimit
	} else if filters.Limit > MaxListLimit {
		filters.Limit = MaxListLimit
	}

	where := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Search != nil && strings.TrimSpace(*filters.Search) != "" {
		p := arg("%" + escapeLike(strings.TrimSpace(*filters.Search)) + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	if filters.Genre != nil && *filters.Genre != "" && *filters.Genre != domain.GenreAll {
		where = append(where, fmt.Sprintf("genre = %s", arg(*filters.Genre)))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(movieColumns)
	queryBuilder.WriteString(", COUNT(*) OVER () FROM movies")
	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return MovieListResult{}, err
	}
	defer rows.Close()

	result := MovieListResult{Items: make([]domain.Movie, 0)}
	for rows.Next() {
		movie, total, err := scanMovieWithTotal(rows)
		if err != nil {
			return MovieListResult{}, err
		}
		result.Items = append(result.Items, movie)
		result.Total = total
	}
	if err := rows.Err(); err != nil {
		return MovieListResult{}, err
	}
	return result, nil
}

func movieScanTargets(movie *domain.Movie) []any {
	return []any{
		&movie.ID,
		&movie.Title,
		&movie.Genre,
		&movie.Year,
		&movie.Description,
		&movie.Poster,
		&movie.SourceLink,
		&movie.EmbedID,
		&movie.Duration,
		&movie.Views,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	}
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	if err := row.Scan(movieScanTargets(&movie)...); err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

func scanMovieWithTotal(row pgx.Row) (domain.Movie, int64, error) {
	var (
		movie domain.Movie
		total int64
	)
	if err := row.Scan(append(movieScanTargets(&movie), &total)...); err != nil {
		return domain.Movie{}, 0, err
	}
	return movie, total, nil
}

// escapeLike neutralises LIKE wildcards so search terms match literally.
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
