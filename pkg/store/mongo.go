package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// DefaultMongoDatabase is used when no database name is configured.
const DefaultMongoDatabase = "flowmerge"

const mongoCollection = "workflows"

// mongoRecord is the stored shape. The graph travels as a JSON string so
// node payloads keep their exact JSON form; the counters serve List
// without decoding it.
type mongoRecord struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Version     int64     `bson:"version"`
	UpdatedAt   time.Time `bson:"updatedAt"`
	Nodes       int       `bson:"nodes"`
	Edges       int       `bson:"edges"`
	Drafts      int       `bson:"drafts"`
	Graph       string    `bson:"graph"`
}

// MongoStore keeps one record per document in the "workflows" collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
}

// ConnectMongo dials uri and verifies the connection.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "mongodb uri is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "connect mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "ping mongodb")
	}
	s := NewMongoStore(client, database)
	s.owned = true
	return s, nil
}

// NewMongoStore wraps an existing client. The caller keeps ownership.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	if database == "" {
		database = DefaultMongoDatabase
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(mongoCollection),
	}
}

func (s *MongoStore) Get(ctx context.Context, id string) (*workflow.Document, error) {
	var rec mongoRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storageErr(err, "mongodb get %q", id)
	}
	return restore([]byte(rec.Graph))
}

func (s *MongoStore) Save(ctx context.Context, doc *workflow.Document) error {
	if err := prepare(doc); err != nil {
		return err
	}
	out := doc.Clone()
	out.Version, out.UpdatedAt = next(doc)
	graph, err := snapshot(out)
	if err != nil {
		return storageErr(err, "encode workflow %q", doc.ID)
	}
	sum := Summarize(out)
	rec := mongoRecord{
		ID:          out.ID,
		Name:        out.Name,
		Description: out.Description,
		Version:     out.Version,
		UpdatedAt:   out.UpdatedAt,
		Nodes:       sum.Nodes,
		Edges:       sum.Edges,
		Drafts:      sum.Drafts,
		Graph:       string(graph),
	}

	if doc.Version == 0 {
		if _, err := s.coll.InsertOne(ctx, rec); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return s.conflict(ctx, doc)
			}
			return storageErr(err, "mongodb insert %q", doc.ID)
		}
	} else {
		res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": doc.Version}, rec)
		if err != nil {
			return storageErr(err, "mongodb replace %q", doc.ID)
		}
		if res.MatchedCount == 0 {
			return s.conflict(ctx, doc)
		}
	}
	doc.Version, doc.UpdatedAt = out.Version, out.UpdatedAt
	return nil
}

// conflict reads the stored version for the error message.
func (s *MongoStore) conflict(ctx context.Context, doc *workflow.Document) error {
	var rec struct {
		Version int64 `bson:"version"`
	}
	opts := options.FindOne().SetProjection(bson.M{"version": 1})
	if err := s.coll.FindOne(ctx, bson.M{"_id": doc.ID}, opts).Decode(&rec); err != nil {
		if err == mongo.ErrNoDocuments {
			return conflict(doc.ID, doc.Version, 0)
		}
		return raced(doc.ID)
	}
	return conflict(doc.ID, doc.Version, rec.Version)
}

func (s *MongoStore) SaveStructure(ctx context.Context, id string, st Structure) (*workflow.Document, error) {
	return saveStructure(ctx, s, id, st)
}

func (s *MongoStore) List(ctx context.Context) ([]Summary, error) {
	opts := options.Find().
		SetProjection(bson.M{"graph": 0}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storageErr(err, "mongodb list")
	}
	defer cur.Close(ctx)

	out := []Summary{}
	for cur.Next(ctx) {
		var rec mongoRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, storageErr(err, "mongodb decode summary")
		}
		out = append(out, Summary{
			ID:          rec.ID,
			Name:        rec.Name,
			Description: rec.Description,
			Nodes:       rec.Nodes,
			Edges:       rec.Edges,
			Drafts:      rec.Drafts,
			Version:     rec.Version,
			UpdatedAt:   rec.UpdatedAt.UTC(),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, storageErr(err, "mongodb list")
	}
	return out, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storageErr(err, "mongodb delete %q", id)
	}
	if res.DeletedCount == 0 {
		return notFound(id)
	}
	return nil
}

// Close disconnects the client if the store created it.
func (s *MongoStore) Close() error {
	if !s.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
