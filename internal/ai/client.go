package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var codeBlockRegex = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// Client реализует вызовы OpenAI-совместимого chat/completions API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента.
func NewClient(baseURL, model, apiKey string) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Configured сообщает, задан ли адрес API.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// chatCompletionWithOptions выполняет запрос с настраиваемыми параметрами.
func (c *Client) chatCompletionWithOptions(ctx context.Context, messages []map[string]string, maxTokens int, temperature float64) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("ai: baseURL не задан")
	}

	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := c.baseURL
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	url += "chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return "", fmt.Errorf("ai: код ответа %d: %v", resp.StatusCode, errorBody)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("ai: пустой ответ")
	}

	return result.Choices[0].Message.Content, nil
}

// parseJSONFromText пытается извлечь JSON из текста, который может содержать markdown или другие символы
func parseJSONFromText(text string) map[string]interface{} {
	result := make(map[string]interface{})

	// Пытаемся найти JSON объект в тексте
	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart != -1 && jsonEnd != -1 && jsonEnd > jsonStart {
		if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), &result); err == nil {
			return result
		}
	}

	// Пытаемся найти JSON в markdown блоке
	if strings.Contains(text, "```") {
		if match := codeBlockRegex.FindStringSubmatch(text); len(match) > 1 {
			if err := json.Unmarshal([]byte(match[1]), &result); err == nil {
				return result
			}
		}
	}

	return result
}
