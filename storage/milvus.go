package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"mediaIndex/core"
	"mediaIndex/inference"
)

// MilvusIndex mirrors each persisted embedding into a Milvus collection and
// answers search through its HNSW index instead of the linear scan. Selected
// with STORE=milvus; the record store stays authoritative either way.
type MilvusIndex struct {
	mc       client.Client
	coll     string
	dim      int
	embedder inference.Embedder
}

func NewMilvusIndex(ctx context.Context, embedder inference.Embedder) (*MilvusIndex, error) {
	addr := os.Getenv("MILVUS_ADDR")
	if addr == "" {
		addr = "localhost:19530"
	}
	coll := os.Getenv("MILVUS_COLLECTION")
	if coll == "" {
		coll = "media_vectors"
	}

	mc, err := client.NewClient(ctx, client.Config{
		Address:  addr,
		Username: os.Getenv("MILVUS_USERNAME"),
		Password: os.Getenv("MILVUS_PASSWORD"),
		APIKey:   os.Getenv("MILVUS_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	x := &MilvusIndex{mc: mc, coll: coll, dim: embedder.Dim(), embedder: embedder}
	if err := x.ensureSchemaAndIndex(ctx); err != nil {
		return nil, err
	}
	return x, nil
}

func (x *MilvusIndex) ensureSchemaAndIndex(ctx context.Context) error {
	has, err := x.mc.HasCollection(ctx, x.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema()
		schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("job_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("source_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("start").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("end").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(x.dim)))

		if err := x.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := x.mc.CreateIndex(ctx, x.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := x.mc.LoadCollection(ctx, x.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (x *MilvusIndex) Add(ctx context.Context, jobID string, vec *core.EmbeddingVector, start, end float64) error {
	_, err := x.mc.Insert(ctx, x.coll, "",
		entity.NewColumnVarChar("job_id", []string{jobID}),
		entity.NewColumnVarChar("source_id", []string{vec.SourceID}),
		entity.NewColumnDouble("start", []float64{start}),
		entity.NewColumnDouble("end", []float64{end}),
		entity.NewColumnVarChar("text", []string{vec.Text}),
		entity.NewColumnFloatVector("vector", x.dim, [][]float32{vec.Vector}),
	)
	if err != nil {
		return fmt.Errorf("milvus insert: %w", err)
	}
	return nil
}

func (x *MilvusIndex) Search(ctx context.Context, jobID, query string, topK int) ([]core.Hit, error) {
	queryVec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	filter := fmt.Sprintf("job_id == \"%s\"", strings.ReplaceAll(jobID, "\"", "\\\""))
	res, err := x.mc.Search(ctx, x.coll, []string{}, filter,
		[]string{"source_id", "start", "end", "text"},
		[]entity.Vector{entity.FloatVector(queryVec)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	hits := []core.Hit{}
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			var hit core.Hit
			if c, ok := cols["source_id"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					hit.SourceID = data[i]
				}
			}
			if c, ok := cols["start"].(*entity.ColumnDouble); ok {
				if data := c.Data(); i < len(data) {
					hit.StartTime = data[i]
				}
			}
			if c, ok := cols["end"].(*entity.ColumnDouble); ok {
				if data := c.Data(); i < len(data) {
					hit.EndTime = data[i]
				}
			}
			if c, ok := cols["text"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					hit.Text = data[i]
				}
			}
			hit.Score = float64(r.Scores[i])
			hits = append(hits, hit)
		}
	}
	return hits, nil
}
