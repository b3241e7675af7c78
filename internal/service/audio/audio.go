// Package audio 语音文件转写
package audio

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ashwinyue/next-files/internal/config"
	"github.com/sashabaranov/go-openai"
)

// 需要先转写再处理的音频类型
var audioContentTypes = map[string]struct{}{
	"audio/mpeg":  {},
	"audio/wav":   {},
	"audio/ogg":   {},
	"audio/x-m4a": {},
}

// IsAudio 判断是否为需要转写的音频类型
func IsAudio(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	_, ok := audioContentTypes[strings.ToLower(strings.TrimSpace(mediaType))]
	return ok
}

// Transcription 转写结果
type Transcription struct {
	Text     string
	Language string
	Duration float64
}

// Transcriber 基于 OpenAI 兼容接口的转写服务
type Transcriber struct {
	client *openai.Client
	model  string
}

// NewTranscriber 创建转写服务，未配置 APIKey 时返回 nil
func NewTranscriber(cfg *config.AudioConfig, httpClient *http.Client) *Transcriber {
	if cfg.APIKey == "" {
		return nil
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// Transcribe 转写本地音频文件
func (t *Transcriber) Transcribe(ctx context.Context, localPath string) (*Transcription, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: localPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe %s: %w", localPath, err)
	}
	return &Transcription{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}
