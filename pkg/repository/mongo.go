package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/shopfront/pkg/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditLog records an administrative change to an entity.
type AuditLog struct {
	ID        string    `bson:"_id,omitempty"`
	Service   string    `bson:"service"`
	Action    string    `bson:"action"`
	Entity    string    `bson:"entity"`
	EntityID  string    `bson:"entity_id"`
	Actor     string    `bson:"actor"`
	Data      bson.M    `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
}

type AuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *AuditLog) error
	// GetAuditLogs returns the newest entries for entityID first.
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error)
}

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	collection := m.database.Collection(m.config.Collection)
	log.CreatedAt = time.Now()
	_, err := collection.InsertOne(ctx, log)
	return err
}

func (m *MongoRepository) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	collection := m.database.Collection(m.config.Collection)

	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

// MemoryAudit keeps audit entries in process memory.
type MemoryAudit struct {
	mu   sync.Mutex
	logs []*AuditLog
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (m *MemoryAudit) CreateAuditLog(_ context.Context, log *AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.CreatedAt = time.Now()
	entry := *log
	m.logs = append(m.logs, &entry)
	return nil
}

func (m *MemoryAudit) GetAuditLogs(_ context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var logs []*AuditLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].EntityID == entityID {
			entry := *m.logs[i]
			logs = append(logs, &entry)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].CreatedAt.After(logs[j].CreatedAt) })
	if limit > 0 && int64(len(logs)) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
