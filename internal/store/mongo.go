package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wipacrepo/pubs/internal/publication"
)

// CollectionName is the collection holding publication documents.
const CollectionName = "publications"

// namespaceNotFound is the server error code for a missing collection.
const namespaceNotFound = 26

// document is the stored shape of a publication.
type document struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Authors   []string           `bson:"authors"`
	Type      string             `bson:"type"`
	Citation  string             `bson:"citation"`
	Date      string             `bson:"date"`
	Abstract  string             `bson:"abstract,omitempty"`
	Downloads []string           `bson:"downloads"`
	Projects  []string           `bson:"projects"`
	Sites     []string           `bson:"sites"`
}

func toDocument(p *publication.Publication) document {
	q := p.WithDefaults()
	return document{
		Title:     q.Title,
		Authors:   q.Authors,
		Type:      q.Type,
		Citation:  q.Citation,
		Date:      q.Date,
		Abstract:  q.Abstract,
		Downloads: q.Downloads,
		Projects:  q.Projects,
		Sites:     q.Sites,
	}
}

func (d document) publication() publication.Publication {
	p := publication.Publication{
		Title:     d.Title,
		Authors:   d.Authors,
		Type:      d.Type,
		Citation:  d.Citation,
		Date:      d.Date,
		Abstract:  d.Abstract,
		Downloads: d.Downloads,
		Projects:  d.Projects,
		Sites:     d.Sites,
	}
	if !d.ID.IsZero() {
		p.ID = d.ID.Hex()
	}
	return p.WithDefaults()
}

// Mongo is a Store backed by a MongoDB collection.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to uri and uses the publications collection of dbName.
func OpenMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, classifyMongo(ctx, "connecting", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, classifyMongo(ctx, "pinging", err)
	}
	return NewMongo(client, dbName), nil
}

// NewMongo wraps an existing client.
func NewMongo(client *mongo.Client, dbName string) *Mongo {
	return &Mongo{
		client: client,
		coll:   client.Database(dbName).Collection(CollectionName),
	}
}

// MongoFilter renders f as a MongoDB query document.
func MongoFilter(f Filter) bson.D {
	q := bson.D{}
	if len(f.AllProjects) > 0 {
		q = append(q, bson.E{Key: "projects", Value: bson.D{{Key: "$all", Value: f.AllProjects}}})
	}
	if len(f.AllSites) > 0 {
		q = append(q, bson.E{Key: "sites", Value: bson.D{{Key: "$all", Value: f.AllSites}}})
	}

	dateRange := bson.D{}
	if f.DateFrom != "" {
		dateRange = append(dateRange, bson.E{Key: "$gte", Value: f.DateFrom})
	}
	if f.DateTo != "" {
		dateRange = append(dateRange, bson.E{Key: "$lte", Value: f.DateTo})
	}
	if len(dateRange) > 0 {
		q = append(q, bson.E{Key: "date", Value: dateRange})
	}

	if len(f.AnyType) > 0 {
		q = append(q, bson.E{Key: "type", Value: bson.D{{Key: "$in", Value: f.AnyType}}})
	}
	if f.Text != "" {
		q = append(q, bson.E{Key: "$text", Value: bson.D{{Key: "$search", Value: f.Text}}})
	}
	if len(f.AllAuthors) > 0 {
		q = append(q, bson.E{Key: "authors", Value: bson.D{{Key: "$all", Value: f.AllAuthors}}})
	}
	return q
}

// naturalKeyFilter matches the exact title, author list (order included)
// and date string.
func naturalKeyFilter(k publication.NaturalKey) bson.D {
	authors := k.Authors
	if authors == nil {
		authors = []string{}
	}
	return bson.D{
		{Key: "title", Value: k.Title},
		{Key: "authors", Value: authors},
		{Key: "date", Value: k.Date},
	}
}

// Insert stores p and returns the new ObjectID as hex.
func (m *Mongo) Insert(ctx context.Context, p *publication.Publication) (string, error) {
	res, err := m.coll.InsertOne(ctx, toDocument(p))
	if err != nil {
		return "", classifyMongo(ctx, "inserting publication", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("inserting publication: unexpected id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// Upsert replaces the record sharing p's natural key, or inserts p.
func (m *Mongo) Upsert(ctx context.Context, p *publication.Publication) (bool, error) {
	res, err := m.coll.ReplaceOne(ctx, naturalKeyFilter(p.Key()), toDocument(p),
		options.Replace().SetUpsert(true))
	if err != nil {
		return false, classifyMongo(ctx, "upserting publication", err)
	}
	return res.UpsertedCount > 0, nil
}

// Exists reports whether a record with key is stored.
func (m *Mongo) Exists(ctx context.Context, key publication.NaturalKey) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, naturalKeyFilter(key), options.Count().SetLimit(1))
	if err != nil {
		return false, classifyMongo(ctx, "looking up publication", err)
	}
	return n > 0, nil
}

// Update sets the supplied patch fields on the record with id.
func (m *Mongo) Update(ctx context.Context, id string, patch publication.Patch) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if patch.IsEmpty() {
		n, err := m.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}}, options.Count().SetLimit(1))
		if err != nil {
			return classifyMongo(ctx, "looking up publication", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil
	}

	set := bson.D{}
	for _, field := range patch.Fields() {
		set = append(set, bson.E{Key: field, Value: patch.Values()[field]})
	}

	res, err := m.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return classifyMongo(ctx, "updating publication", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Delete removes the record with id.
func (m *Mongo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	res, err := m.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return classifyMongo(ctx, "deleting publication", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get returns the record with id.
func (m *Mongo) Get(ctx context.Context, id string) (*publication.Publication, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var d document
	if err := m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, classifyMongo(ctx, "getting publication", err)
	}
	p := d.publication()
	return &p, nil
}

// Find streams matching records sorted by date descending, ties broken
// by ObjectID (insertion order).
func (m *Mongo) Find(ctx context.Context, f Filter) (Cursor, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := m.coll.Find(ctx, MongoFilter(f), opts)
	if err != nil {
		return nil, classifyMongo(ctx, "finding publications", err)
	}
	return &mongoCursor{cur: cur}, nil
}

// Count returns the number of records matching f.
func (m *Mongo) Count(ctx context.Context, f Filter) (int64, error) {
	n, err := m.coll.CountDocuments(ctx, MongoFilter(f))
	if err != nil {
		return 0, classifyMongo(ctx, "counting publications", err)
	}
	return n, nil
}

// DistinctAuthors unwinds every authors array and collects the set.
func (m *Mongo) DistinctAuthors(ctx context.Context) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$authors"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "authors", Value: bson.D{{Key: "$addToSet", Value: "$authors"}}},
		}}},
	}
	cur, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, classifyMongo(ctx, "aggregating authors", err)
	}
	defer cur.Close(ctx)

	authors := []string{}
	for cur.Next(ctx) {
		var row struct {
			Authors []string `bson:"authors"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("decoding authors: %w", err)
		}
		authors = row.Authors
	}
	if err := cur.Err(); err != nil {
		return nil, classifyMongo(ctx, "aggregating authors", err)
	}
	return authors, nil
}

// EnsureIndexes creates the projects, date and weighted text indexes when
// no index of the same name exists.
func (m *Mongo) EnsureIndexes(ctx context.Context) ([]string, error) {
	existing := make(map[string]bool)
	specs, err := m.coll.Indexes().ListSpecifications(ctx)
	if err != nil {
		var cmdErr mongo.CommandError
		if !errors.As(err, &cmdErr) || cmdErr.Code != namespaceNotFound {
			return nil, classifyMongo(ctx, "listing indexes", err)
		}
	}
	for _, spec := range specs {
		existing[spec.Name] = true
	}

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "projects", Value: 1}},
			Options: options.Index().SetName(ProjectsIndex),
		},
		{
			Keys:    bson.D{{Key: "date", Value: 1}},
			Options: options.Index().SetName(DateIndex),
		},
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "authors", Value: "text"},
				{Key: "citation", Value: "text"},
			},
			Options: options.Index().SetName(TextIndex).SetWeights(bson.D{
				{Key: "title", Value: TitleWeight},
				{Key: "authors", Value: AuthorsWeight},
				{Key: "citation", Value: CitationWeight},
			}),
		},
	}

	var created []string
	for _, model := range models {
		name := *model.Options.Name
		if existing[name] {
			continue
		}
		if _, err := m.coll.Indexes().CreateOne(ctx, model); err != nil {
			return created, classifyMongo(ctx, "creating "+name, err)
		}
		created = append(created, name)
	}
	return created, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type mongoCursor struct {
	cur *mongo.Cursor
	ctx context.Context
}

func (c *mongoCursor) Next(ctx context.Context) bool {
	c.ctx = ctx
	return c.cur.Next(ctx)
}

func (c *mongoCursor) Decode(p *publication.Publication) error {
	var d document
	if err := c.cur.Decode(&d); err != nil {
		return fmt.Errorf("decoding publication: %w", err)
	}
	*p = d.publication()
	return nil
}

func (c *mongoCursor) Err() error {
	err := c.cur.Err()
	if err == nil {
		return nil
	}
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return classifyMongo(ctx, "reading publications", err)
}

func (c *mongoCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

// classifyMongo maps driver errors onto the store error taxonomy.
func classifyMongo(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return cancelled(ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cancelled(err)
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
