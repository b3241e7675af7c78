package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ashwinyue/next-files/internal/config"
	"github.com/cloudwego/eino-ext/components/indexer/es8"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// IndexName 文件分块索引名
func IndexName(cfg *config.ElasticConfig) string {
	return cfg.IndexPrefix + "_file_chunks"
}

// NewES8Index 创建基于 ES8 Indexer 的向量索引，并确保索引存在
func NewES8Index(ctx context.Context, cfg *config.ElasticConfig, dimensions int, embedder embedding.Embedder) (*Index, error) {
	client, err := NewES8Client(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	indexName := IndexName(cfg)
	if err := ensureESIndex(ctx, client, indexName, dimensions); err != nil {
		return nil, err
	}

	idx, err := newES8Indexer(ctx, client, indexName, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES8 indexer: %w", err)
	}
	return &Index{
		Indexer: idx,
		Remove: func(ctx context.Context, fileID string) error {
			return DeleteByFile(ctx, client, indexName, fileID)
		},
	}, nil
}

func newES8Indexer(ctx context.Context, client *elasticsearch.Client, indexName string, embedder embedding.Embedder) (*es8.Indexer, error) {
	return es8.NewIndexer(ctx, &es8.IndexerConfig{
		Client:    client,
		Index:     indexName,
		BatchSize: 10,
		Embedding: embedder,
		DocumentToFields: func(ctx context.Context, doc *schema.Document) (map[string]es8.FieldValue, error) {
			return documentToESFields(doc), nil
		},
	})
}

// NewES8Client 创建 ES8 客户端
func NewES8Client(cfg *config.ElasticConfig) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Host},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
}

// documentToESFields 内容字段向量化，元数据原样存储
func documentToESFields(doc *schema.Document) map[string]es8.FieldValue {
	fields := map[string]es8.FieldValue{
		"content": {
			Value:    doc.Content,
			EmbedKey: "content_vector",
		},
	}
	for k, v := range doc.MetaData {
		fields[k] = es8.FieldValue{Value: v}
	}
	return fields
}

// indexMapping 分块索引的映射
func indexMapping(dimensions int) map[string]interface{} {
	if dimensions == 0 {
		dimensions = 1024 // text-embedding-v3 默认维度
	}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"content": map[string]interface{}{"type": "text"},
				"content_vector": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       dimensions,
					"index":      true,
					"similarity": "cosine",
				},
				"file_id":         map[string]interface{}{"type": "keyword"},
				"collection_name": map[string]interface{}{"type": "keyword"},
				"name":            map[string]interface{}{"type": "keyword"},
				"chunk_index":     map[string]interface{}{"type": "integer"},
			},
		},
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
	}
}

// ensureESIndex 索引不存在时创建
func ensureESIndex(ctx context.Context, client *elasticsearch.Client, indexName string, dimensions int) error {
	res, err := client.Indices.Exists([]string{indexName}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(indexMapping(dimensions))
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	req := esapi.IndicesCreateRequest{
		Index: indexName,
		Body:  bytes.NewReader(body),
	}
	res, err = req.Do(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to create index: %s", res.String())
	}

	log.Printf("Index %s created", indexName)
	return nil
}

// DeleteByFile 删除文件的全部分块
func DeleteByFile(ctx context.Context, client *elasticsearch.Client, indexName, fileID string) error {
	query, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"file_id": fileID},
		},
	})
	if err != nil {
		return err
	}

	res, err := client.DeleteByQuery([]string{indexName}, bytes.NewReader(query), client.DeleteByQuery.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("failed to delete chunks: %s", res.String())
	}
	return nil
}
