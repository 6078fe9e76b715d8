// Package docstore is the read-only client for the document store the
// scanned code targets. It draws bounded random samples and converts driver
// values into neutral shapes before anything else sees them, so literal
// field values never travel past this package boundary in typed form
package docstore

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"datalens/internal/core/shape"
	perr "datalens/internal/platform/errors"
	"datalens/internal/platform/logger"
)

// Options configures the sampling client
type Options struct {
	URI      string
	Database string

	// OpTimeout bounds every per-collection operation
	OpTimeout time.Duration

	// SampleSize is the document count drawn per collection
	SampleSize int

	// ByteBudget caps the total raw bytes decoded per collection. At least
	// one document is always kept so tiny budgets still yield a shape
	ByteBudget int
}

// Store holds a read-only connection to one database
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	opts   Options
	log    logger.Logger
}

func (o Options) withDefaults() Options {
	if o.OpTimeout <= 0 {
		o.OpTimeout = 10 * time.Second
	}
	if o.SampleSize <= 0 {
		o.SampleSize = 20
	}
	if o.ByteBudget <= 0 {
		o.ByteBudget = 1 << 20
	}
	return o
}

// Open connects and verifies reachability. Reads prefer secondaries so
// sampling load stays off the primary
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.URI == "" || opts.Database == "" {
		return nil, perr.New(perr.ErrorCodeInvalidArgument, "docstore: uri and database are required")
	}
	opts = opts.withDefaults()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(opts.URI).
		SetAppName("datalens").
		SetReadPreference(readpref.SecondaryPreferred()))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "docstore connect")
	}
	pingCtx, cancel := context.WithTimeout(ctx, opts.OpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "docstore ping")
	}

	return &Store{
		client: client,
		db:     client.Database(opts.Database),
		opts:   opts,
		log:    *logger.Named("docstore"),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Collections lists collection names in the sampled database, sorted
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "docstore list collections")
	}
	sort.Strings(names)
	return names, nil
}

// Sample draws up to SampleSize random documents from the collection and
// returns them as neutral maps. Sampling an absent collection yields an
// empty slice without error
func (s *Store) Sample(ctx context.Context, collection string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: s.opts.SampleSize}}}},
	}
	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "docstore sample %s", collection)
	}
	defer cursor.Close(ctx)

	var (
		docs  []map[string]any
		total int
	)
	for cursor.Next(ctx) {
		size := len(cursor.Current)
		if len(docs) > 0 && total+size > s.opts.ByteBudget {
			s.log.Debug().Str("collection", collection).Int("docs", len(docs)).Msg("sample byte budget reached")
			break
		}
		var doc bson.D
		if err := bson.Unmarshal(cursor.Current, &doc); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "docstore decode %s", collection)
		}
		docs = append(docs, neutralDoc(doc))
		total += size
	}
	if err := cursor.Err(); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "docstore sample %s", collection)
	}
	return docs, nil
}

// neutralDoc rewrites a decoded document into plain maps, slices, and
// shape scalars. Driver-specific types must not escape this package
func neutralDoc(d bson.D) map[string]any {
	out := make(map[string]any, len(d))
	for _, e := range d {
		out[e.Key] = neutralValue(e.Value)
	}
	return out
}

func neutralValue(v any) any {
	switch t := v.(type) {
	case bson.D:
		return neutralDoc(t)
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = neutralValue(val)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = neutralValue(val)
		}
		return out
	case primitive.ObjectID:
		return shape.Scalar{Kind: "objectid", Size: 12}
	case primitive.DateTime:
		return shape.Scalar{Kind: "datetime", Size: -1}
	case primitive.Timestamp:
		return shape.Scalar{Kind: "timestamp", Size: -1}
	case primitive.Decimal128:
		return shape.Scalar{Kind: "decimal", Size: -1}
	case primitive.Binary:
		return shape.Scalar{Kind: "binary", Size: len(t.Data)}
	case primitive.Regex:
		return shape.Scalar{Kind: "regex", Size: -1}
	case primitive.JavaScript:
		return shape.Scalar{Kind: "code", Size: -1}
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}
