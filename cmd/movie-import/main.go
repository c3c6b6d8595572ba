package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/movies-api/internal/domain/movie"
	"github.com/xenking/movies-api/internal/storage/postgres"
)

const (
	bloomFPR         = 0.001
	defaultBatchSize = 500
	progressEvery    = 100_000
	maxLineBytes     = 1 << 20
)

type movieLine struct {
	Title         string          `json:"title"`
	Year          int             `json:"year"`
	Cover         string          `json:"cover"`
	Description   string          `json:"description"`
	Duration      int             `json:"duration"`
	ContentRating string          `json:"contentRating"`
	Source        string          `json:"source"`
	Tags          []string        `json:"tags"`
	Rating        decimal.Decimal `json:"rating"`
}

// fileMovies holds the valid movies of one dump and a filter of their keys.
type fileMovies struct {
	path    string
	movies  []movie.Movie
	filter  *bloom.BloomFilter
	skipped int
}

type upserter interface {
	Upsert(ctx context.Context, movies []movie.Movie) error
}

func main() {
	var (
		databaseURL string
		batchSize   int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", defaultBatchSize, "movies per upsert batch")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: movie-import [flags] dump1.jsonl.gz [dump2.jsonl.gz ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, flag.Args(), batchSize); err != nil {
		slog.Error("movie import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("movie import completed successfully")
}

func run(ctx context.Context, databaseURL string, paths []string, batchSize int) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return errors.Wrapf(err, "check file %s", p)
		}
	}

	slog.Info("reading dumps", slog.Int("files", len(paths)))

	files, err := readFiles(ctx, paths)
	if err != nil {
		return errors.Wrap(err, "read dumps")
	}

	movies, duplicates := dedupe(files)
	slog.Info("movies ready",
		slog.Int("count", len(movies)),
		slog.Int("cross_file_duplicates", duplicates),
	)
	if len(movies) == 0 {
		slog.Info("no movies to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writeMovies(ctx, postgres.NewMovieRepository(pool), movies, batchSize)
}

// readFiles parses every dump concurrently. Results keep the order of paths.
func readFiles(ctx context.Context, paths []string) ([]fileMovies, error) {
	files := make([]fileMovies, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			fm, err := readFile(ctx, p)
			if err != nil {
				return err
			}
			files[i] = fm
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// readFile parses one gzip-compressed JSON-lines dump. Lines that fail to
// decode or validate are logged and skipped.
func readFile(ctx context.Context, path string) (fileMovies, error) {
	fm := fileMovies{path: path}
	var lineNo int

	err := streamGzFile(ctx, path, func(line []byte) {
		lineNo++
		if len(strings.TrimSpace(string(line))) == 0 {
			return
		}

		m, err := parseLine(line)
		if err != nil {
			fm.skipped++
			slog.Warn("skipping line",
				slog.String("file", path),
				slog.Int("line", lineNo),
				slog.String("error", err.Error()),
			)
			return
		}
		fm.movies = append(fm.movies, m)

		if len(fm.movies)%progressEvery == 0 {
			slog.Info("read progress", slog.String("file", path), slog.Int("movies", len(fm.movies)))
		}
	})
	if err != nil {
		return fileMovies{}, errors.Wrapf(err, "read %s", path)
	}

	fm.filter = bloom.NewWithEstimates(uint(max(len(fm.movies), 1)), bloomFPR)
	for i := range fm.movies {
		fm.filter.AddString(movieKey(&fm.movies[i]))
	}

	slog.Info("read complete",
		slog.String("file", path),
		slog.Int("movies", len(fm.movies)),
		slog.Int("skipped", fm.skipped),
	)
	return fm, nil
}

func parseLine(line []byte) (movie.Movie, error) {
	var l movieLine
	if err := json.Unmarshal(line, &l); err != nil {
		return movie.Movie{}, errors.Wrap(err, "decode")
	}
	m := movie.Movie{
		ID:            uuid.New().String(),
		Title:         l.Title,
		Year:          l.Year,
		Cover:         l.Cover,
		Description:   l.Description,
		Duration:      l.Duration,
		ContentRating: l.ContentRating,
		Source:        l.Source,
		Tags:          l.Tags,
		Rating:        l.Rating,
	}
	if err := m.Validate(); err != nil {
		return movie.Movie{}, err
	}
	return m, nil
}

// movieKey identifies a movie the way the catalog's unique index does.
func movieKey(m *movie.Movie) string {
	return m.Title + "\x00" + strconv.Itoa(m.Year)
}

// dedupe merges the dumps so that a movie present in several files is
// imported once, from the last file that has it. Keys found in another
// file's filter are resolved exactly; the rest pass through untouched.
func dedupe(files []fileMovies) (out []movie.Movie, duplicates int) {
	lastFile := make(map[string]int)
	for i := range files {
		for k := range files[i].movies {
			key := movieKey(&files[i].movies[k])
			for j := range files {
				if j != i && files[j].filter.TestString(key) {
					lastFile[key] = max(lastFile[key], i)
					break
				}
			}
		}
	}

	for i := range files {
		for _, m := range files[i].movies {
			if last, ok := lastFile[movieKey(&m)]; ok && last != i {
				duplicates++
				continue
			}
			out = append(out, m)
		}
	}
	return out, duplicates
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Bytes())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// writeMovies upserts movies in batches of batchSize.
func writeMovies(ctx context.Context, repo upserter, movies []movie.Movie, batchSize int) error {
	slog.Info("writing movies to database", slog.Int("count", len(movies)))

	for start := 0; start < len(movies); start += batchSize {
		end := min(start+batchSize, len(movies))
		if err := repo.Upsert(ctx, movies[start:end]); err != nil {
			return errors.Wrapf(err, "upsert movies %d-%d", start, end)
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(movies)))
	}
	return nil
}
