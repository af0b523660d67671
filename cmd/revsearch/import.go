package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/hupe1980/revsearch"
	"github.com/hupe1980/revsearch/internal/service"
)

// Rating assigned to imported tweets, which carry none.
const tweetRating = 3

var (
	importCSVPath   string
	importBatchSize int
	importDelimiter string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk import a CSV export of tweets as reviews",
	Long: `Import a delimited CSV file with a header row containing at least the
columns id, user and text. Each row becomes a review titled "Tweet by <user>"
with the text as body, the tweet id as product id and a rating of 3.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		delim, size := utf8.DecodeRuneInString(importDelimiter)
		if size == 0 || size != len(importDelimiter) {
			return fmt.Errorf("delimiter must be a single character, got %q", importDelimiter)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		f, err := os.Open(importCSVPath)
		if err != nil {
			return err
		}
		defer f.Close()

		store, err := openStore(cfg, logger, revsearch.NoopMetricsCollector{})
		if err != nil {
			return err
		}
		defer store.Close()

		svc, err := newService(cfg, store, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		n, err := importTweets(cmd.Context(), svc, f, delim, importBatchSize, func(batch int) {
			fmt.Fprintf(out, "Inserted batch of %d tweets\n", batch)
		})
		fmt.Fprintf(out, "Completed processing %d tweets\n", n)
		return err
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "CSV file to import")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 4000, "reviews per insert batch")
	importCmd.Flags().StringVar(&importDelimiter, "delimiter", ";", "field delimiter")
	_ = importCmd.MarkFlagRequired("csv")
}

// tweetReader maps CSV rows to reviews by header name.
type tweetReader struct {
	r       *csv.Reader
	idCol   int
	userCol int
	textCol int
}

func newTweetReader(r io.Reader, delim rune) (*tweetReader, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv: missing header row")
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	tr := &tweetReader{r: cr}
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{"id", &tr.idCol},
		{"user", &tr.userCol},
		{"text", &tr.textCol},
	} {
		i, ok := cols[c.name]
		if !ok {
			return nil, fmt.Errorf("csv: missing column %q", c.name)
		}
		*c.dst = i
	}
	return tr, nil
}

// Next returns the next review or io.EOF.
func (t *tweetReader) Next() (revsearch.Review, error) {
	rec, err := t.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return revsearch.Review{}, io.EOF
		}
		return revsearch.Review{}, fmt.Errorf("csv: %w", err)
	}
	line, _ := t.r.FieldPos(0)
	field := func(i int) (string, error) {
		if i >= len(rec) {
			return "", fmt.Errorf("csv: line %d: expected at least %d fields, got %d", line, i+1, len(rec))
		}
		return rec[i], nil
	}

	id, err := field(t.idCol)
	if err != nil {
		return revsearch.Review{}, err
	}
	user, err := field(t.userCol)
	if err != nil {
		return revsearch.Review{}, err
	}
	text, err := field(t.textCol)
	if err != nil {
		return revsearch.Review{}, err
	}
	return revsearch.Review{
		Title:     "Tweet by " + user,
		Body:      text,
		ProductID: id,
		Rating:    tweetRating,
	}, nil
}

// importTweets inserts every row of r through svc in batches of batchSize and
// returns the number of rows inserted. progress is called after each batch.
func importTweets(ctx context.Context, svc *service.Service, r io.Reader, delim rune, batchSize int, progress func(batch int)) (int, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	tr, err := newTweetReader(r, delim)
	if err != nil {
		return 0, err
	}

	var (
		count int
		batch = make([]revsearch.Review, 0, batchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := svc.AddReviews(ctx, batch)
		count += len(inserted)
		if err != nil {
			return err
		}
		if progress != nil {
			progress(len(batch))
		}
		batch = batch[:0]
		return nil
	}

	for {
		review, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, err
		}
		batch = append(batch, review)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return count, err
			}
		}
	}
	return count, flush()
}
