// Package ocr — клиент внешнего сервиса распознавания текста на картинках.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"
)

var ErrDisabled = errors.New("ocr is disabled")

type Client struct {
	http     *http.Client
	token    string
	endpoint string

	mu    sync.Mutex
	cache map[string]string // url -> text, одна и та же картинка не распознаётся дважды
	order []string
	max   int
}

type Conf struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

type request struct {
	URL string `json:"url"`
}

type response struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewClient возвращает клиента; при пустом Endpoint вернёт nil.
func NewClient(conf Conf) *Client {
	if conf.Endpoint == "" {
		return nil
	}
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		token:    conf.Token,
		endpoint: conf.Endpoint,
		cache:    make(map[string]string),
		max:      256,
	}
}

// Extract отправляет ссылку на картинку и возвращает распознанный текст.
func (c *Client) Extract(ctx context.Context, imageURL string) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}
	c.mu.Lock()
	if text, ok := c.cache[imageURL]; ok {
		c.mu.Unlock()
		return text, nil
	}
	c.mu.Unlock()

	body, _ := json.Marshal(request{URL: imageURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ocr: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("ocr: decode: %w", err)
	}
	if r.Error != "" {
		return "", fmt.Errorf("ocr: %s", r.Error)
	}

	c.remember(imageURL, r.Text)
	return r.Text, nil
}

func (c *Client) remember(url, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cache[url]; ok {
		return
	}
	if len(c.order) >= c.max {
		delete(c.cache, c.order[0])
		c.order = c.order[1:]
	}
	c.cache[url] = text
	c.order = append(c.order, url)
}

var imageExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true,
}

// IsImage решает по content-type, а если его нет — по расширению файла.
func IsImage(contentType, name string) bool {
	if contentType != "" {
		return strings.HasPrefix(strings.ToLower(contentType), "image/")
	}
	return imageExt[strings.ToLower(path.Ext(name))]
}
