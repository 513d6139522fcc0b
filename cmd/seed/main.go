// Command seed fills an empty database with demo authors and book copies.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync/atomic"

	"libraryapi/internal/author"
	"libraryapi/internal/authz"
	"libraryapi/internal/book"
	"libraryapi/internal/config"
	"libraryapi/internal/platform/postgres"

	"golang.org/x/sync/errgroup"
)

type authorCreator interface {
	Create(ctx context.Context, in author.CreateInput) (author.Author, error)
}

type bookCreator interface {
	Create(ctx context.Context, in book.CreateInput) (book.Book, error)
}

var words = []string{
	"Adventure", "Mystery", "Journey", "Discovery", "Secrets", "Dreams", "Hope",
	"Love", "War", "Peace", "Science", "Nature", "Technology", "History", "Future",
	"Past", "Present", "Reality", "Imagination", "Wisdom", "Life", "Death",
	"Light", "Darkness", "World", "Universe", "Time", "Space", "Mind", "Soul",
}

var nationalities = []string{"American", "British", "French", "German", "Japanese", "Polish", "Nigerian", "Brazilian"}

// titleSeed is one title and the number of copies to catalogue for it.
type titleSeed struct {
	book.CreateInput
	copies int
}

// plan builds a deterministic catalog for randSeed. Every title gets between one
// and maxCopies copies and, when authors exist, an author index.
func plan(randSeed uint64, titles, authors, maxCopies int) ([]author.CreateInput, []titleSeed) {
	r := rand.New(rand.NewPCG(randSeed, randSeed))
	pick := func(xs []string) string { return xs[r.IntN(len(xs))] }

	as := make([]author.CreateInput, authors)
	for i := range as {
		nationality := pick(nationalities)
		as[i] = author.CreateInput{
			Name:        fmt.Sprintf("%s %s", pick(words), pick(words)),
			Nationality: &nationality,
		}
	}

	ts := make([]titleSeed, titles)
	for i := range ts {
		isbn := fmt.Sprintf("978%010d", i+1)
		year := 1950 + r.IntN(75)
		desc := fmt.Sprintf("A book about %s.", pick(words))
		ts[i] = titleSeed{
			CreateInput: book.CreateInput{
				Title:         fmt.Sprintf("%s of %s", pick(words), pick(words)),
				ISBN:          &isbn,
				PublishedYear: &year,
				Description:   &desc,
			},
			copies: 1 + r.IntN(maxCopies),
		}
	}
	return as, ts
}

type seeder struct {
	authors     authorCreator
	books       bookCreator
	concurrency int
	logger      *slog.Logger
}

// run creates the authors, then the titles in parallel. Copies of one title
// are created in order by the same goroutine so they join the same group.
func (s *seeder) run(ctx context.Context, as []author.CreateInput, ts []titleSeed) (int64, error) {
	ctx = authz.WithPrincipal(ctx, authz.Operator)

	authorIDs := make([]int64, 0, len(as))
	for _, in := range as {
		a, err := s.authors.Create(ctx, in)
		if err != nil {
			return 0, fmt.Errorf("create author %q: %w", in.Name, err)
		}
		authorIDs = append(authorIDs, a.ID)
	}

	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, t := range ts {
		if len(authorIDs) > 0 {
			id := authorIDs[i%len(authorIDs)]
			t.AuthorID = &id
		}
		g.Go(func() error {
			for range t.copies {
				if _, err := s.books.Create(gctx, t.CreateInput); err != nil {
					return fmt.Errorf("create copy of %q: %w", t.Title, err)
				}
				created.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	s.logger.Info("seed finished",
		slog.Int("authors", len(authorIDs)),
		slog.Int("titles", len(ts)),
		slog.Int64("copies", created.Load()),
	)
	return created.Load(), err
}

func main() {
	var (
		titles      = flag.Int("titles", 200, "number of titles to create")
		authors     = flag.Int("authors", 25, "number of authors to create")
		maxCopies   = flag.Int("max-copies", 3, "maximum copies per title")
		concurrency = flag.Int("concurrency", 8, "parallel title inserts")
		randSeed    = flag.Uint64("seed", 1, "random seed")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := seed(logger, *titles, *authors, *maxCopies, *concurrency, *randSeed); err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func seed(logger *slog.Logger, titles, authors, maxCopies, concurrency int, randSeed uint64) error {
	if titles < 0 || authors < 0 || maxCopies < 1 || concurrency < 1 {
		return fmt.Errorf("titles and authors must be non-negative, max-copies and concurrency positive")
	}
	cfg, err := config.Read()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := postgres.Open(ctx, cfg.DB.DSN, postgres.Options{MaxConns: int32(concurrency) + 1})
	if err != nil {
		return err
	}
	defer pool.Close()

	s := &seeder{
		authors:     author.NewService(author.NewPostgresRepo(pool, cfg.DB.Timeout), logger),
		books:       book.NewService(book.NewPostgresRepo(pool, cfg.DB.Timeout), logger),
		concurrency: concurrency,
		logger:      logger,
	}
	as, ts := plan(randSeed, titles, authors, maxCopies)
	_, err = s.run(ctx, as, ts)
	return err
}
