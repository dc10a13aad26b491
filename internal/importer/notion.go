// Package importer はNotionの公開ページから課題（ステップ）を取り込みます
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/observer-pro/observer-back/internal/models"
)

const pageIDLen = 32

var ErrBadPageURL = errors.New("could not extract page id from url")

// Cache は取り込み結果のキャッシュです（repo.RedisImportCache）
type Cache interface {
	Get(ctx context.Context, pageID string) ([]models.Step, bool, error)
	Set(ctx context.Context, pageID string, steps []models.Step) error
}

// NotionClient はNotionの loadPageChunk API を呼び出します
type NotionClient struct {
	http   *http.Client
	cache  Cache
	log    *logrus.Entry
	Scheme string // テスト用。既定は https
}

// NewNotionClient は新しいNotionClientを作成します。cache は nil でも構いません
func NewNotionClient(timeout time.Duration, cache Cache, logger *logrus.Logger) *NotionClient {
	return &NotionClient{
		http:   &http.Client{Timeout: timeout},
		cache:  cache,
		log:    logger.WithField("component", "importer"),
		Scheme: "https",
	}
}

// ExtractPageID はページURLからドメインとハイフン区切りのページIDを取り出します
// ページIDはパス末尾の32文字です
func ExtractPageID(pageURL string) (domain, pageID string, err error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w: %s", ErrBadPageURL, pageURL)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if len(last) < pageIDLen {
		return "", "", fmt.Errorf("%w: %s, page id length is not %d symbols", ErrBadPageURL, pageURL, pageIDLen)
	}
	id := last[len(last)-pageIDLen:]
	return u.Host, id[:8] + "-" + id[8:12] + "-" + id[12:16] + "-" + id[16:20] + "-" + id[20:], nil
}

// Import はページを取り込み、区切り線ごとに1ステップとして返します
func (c *NotionClient) Import(ctx context.Context, pageURL string) ([]models.Step, error) {
	domain, pageID, err := ExtractPageID(pageURL)
	if err != nil {
		return nil, err
	}
	logger := c.log.WithField("page_id", pageID)

	if c.cache != nil {
		steps, found, err := c.cache.Get(ctx, pageID)
		if err != nil {
			logger.WithError(err).Warn("import cache read failed")
		} else if found {
			logger.Debug("import cache hit")
			return steps, nil
		}
	}

	body, err := c.loadPageChunk(ctx, domain, pageID)
	if err != nil {
		return nil, err
	}
	steps := toSteps(ParseTasks(body))

	if c.cache != nil && len(steps) > 0 {
		if err := c.cache.Set(ctx, pageID, steps); err != nil {
			logger.WithError(err).Warn("import cache write failed")
		}
	}
	return steps, nil
}

type chunkRequest struct {
	Page struct {
		ID string `json:"id"`
	} `json:"page"`
	Limit  int `json:"limit"`
	Cursor struct {
		Stack []any `json:"stack"`
	} `json:"cursor"`
	ChunkNumber     int  `json:"chunkNumber"`
	VerticalColumns bool `json:"verticalColumns"`
}

func (c *NotionClient) loadPageChunk(ctx context.Context, domain, pageID string) ([]byte, error) {
	var payload chunkRequest
	payload.Page.ID = pageID
	payload.Limit = 50
	payload.Cursor.Stack = []any{}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s://%s/api/v3/loadPageChunk", c.Scheme, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not connect to Notion to parse tasks with id %s: %w", pageID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not connect to Notion, status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ParseTasks は loadPageChunk のレスポンスをHTML断片のリストに変換します
// ブロックはレスポンス内の順序のまま処理し、divider で課題を区切ります
func ParseTasks(body []byte) []string {
	var tasks []string
	var task strings.Builder

	gjson.GetBytes(body, "recordMap.block").ForEach(func(_, block gjson.Result) bool {
		value := block.Get("value")
		kind := value.Get("type").String()
		props := value.Get("properties")
		if kind == "divider" {
			tasks = append(tasks, task.String())
			task.Reset()
			return true
		}
		if !props.Exists() || kind == "page" {
			return true
		}

		switch {
		case strings.Contains(kind, "header"):
			task.WriteString("<h3>" + html.EscapeString(props.Get("title.0.0").String()) + "</h3>")
		case strings.Contains(kind, "code"):
			task.WriteString(`<pre class="ql-syntax">` + html.EscapeString(props.Get("title.0.0").String()) + "</pre>")
		default:
			// title は ["text"] か ["text", [装飾]] の配列
			props.Get("title").ForEach(func(_, part gjson.Result) bool {
				if part.IsArray() {
					task.WriteString(html.EscapeString(part.Get("0").String()))
				} else {
					task.WriteString(html.EscapeString(part.String()))
				}
				return true
			})
			task.WriteString("<br>")
		}
		return true
	})

	return append(tasks, task.String())
}

// toSteps は空でない課題をステップに変換します。名前は課題の位置（1始まり）です
func toSteps(tasks []string) []models.Step {
	steps := []models.Step{}
	for i, content := range tasks {
		if content == "" {
			continue
		}
		steps = append(steps, models.Step{
			Name:     strconv.Itoa(i + 1),
			Content:  content,
			Language: "html",
			Type:     "exercise",
		})
	}
	return steps
}
