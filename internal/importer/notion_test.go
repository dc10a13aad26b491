package importer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/observer-pro/observer-back/internal/models"
)

const pageBody = `{
  "recordMap": {
    "block": {
      "zz-page": {"value": {"type": "page", "properties": {"title": [["Course"]]}}},
      "b2": {"value": {"type": "header", "properties": {"title": [["Task one"]]}}},
      "a1": {"value": {"type": "text", "properties": {"title": [["Print "], ["hello", [["b"]]]]}}},
      "c3": {"value": {"type": "code", "properties": {"title": [["print('<hi>')"]]}}},
      "d4": {"value": {"type": "divider"}},
      "e5": {"value": {"type": "divider"}},
      "f6": {"value": {"type": "sub_header", "properties": {"title": [["Task three"]]}}},
      "g7": {"value": {"type": "text"}}
    }
  }
}`

func TestExtractPageID(t *testing.T) {
	req := require.New(t)

	domain, id, err := ExtractPageID("https://www.notion.so/Python-tasks-0123456789abcdef0123456789abcdef?pvs=4")
	req.NoError(err)
	req.Equal("www.notion.so", domain)
	req.Equal("01234567-89ab-cdef-0123-456789abcdef", id)

	_, _, err = ExtractPageID("https://www.notion.so/short")
	req.ErrorIs(err, ErrBadPageURL)
	_, _, err = ExtractPageID("not a url")
	req.ErrorIs(err, ErrBadPageURL)
}

func TestParseTasks_KeepsBlockOrder(t *testing.T) {
	tasks := ParseTasks([]byte(pageBody))

	require.Equal(t, []string{
		`<h3>Task one</h3>Print hello<br><pre class="ql-syntax">print(&#39;&lt;hi&gt;&#39;)</pre>`,
		"",
		"<h3>Task three</h3>",
	}, tasks)
}

type memoryCache struct {
	data map[string][]models.Step
}

func (m *memoryCache) Get(_ context.Context, id string) ([]models.Step, bool, error) {
	s, ok := m.data[id]
	return s, ok, nil
}

func (m *memoryCache) Set(_ context.Context, id string, steps []models.Step) error {
	m.data[id] = steps
	return nil
}

func TestNotionClient_Import(t *testing.T) {
	req := require.New(t)
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		req.Equal("/api/v3/loadPageChunk", r.URL.Path)
		req.Equal(http.MethodPost, r.Method)
		var payload map[string]any
		body, _ := io.ReadAll(r.Body)
		req.NoError(json.Unmarshal(body, &payload))
		req.Equal("01234567-89ab-cdef-0123-456789abcdef", payload["page"].(map[string]any)["id"])
		req.EqualValues(50, payload["limit"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, pageBody)
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cache := &memoryCache{data: map[string][]models.Step{}}
	client := NewNotionClient(time.Second, cache, logger)
	client.Scheme = "http"
	pageURL := "http://" + strings.TrimPrefix(srv.URL, "http://") + "/Tasks-0123456789abcdef0123456789abcdef"

	steps, err := client.Import(context.Background(), pageURL)
	req.NoError(err)
	req.Len(steps, 2)
	req.Equal("1", steps[0].Name)
	req.Equal("3", steps[1].Name)
	req.Equal("html", steps[1].Language)
	req.Equal("exercise", steps[1].Type)

	// the second import is served from the cache
	again, err := client.Import(context.Background(), pageURL)
	req.NoError(err)
	req.Equal(steps, again)
	req.Equal(1, calls)
}

func TestNotionClient_ImportUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewNotionClient(time.Second, nil, logrus.New())
	client.Scheme = "http"

	_, err := client.Import(context.Background(), srv.URL+"/Tasks-0123456789abcdef0123456789abcdef")
	require.ErrorContains(t, err, "status: 502")
}
