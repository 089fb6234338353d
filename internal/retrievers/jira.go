package retrievers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pullsync/runtime/pkg/pull"
)

// jiraPageSize is the fixed JQL search page size.
const jiraPageSize = 20

// jiraTimeLayout is the timestamp format JQL accepts in quoted clauses.
const jiraTimeLayout = "2006-01-02 15:04"

// Jira pulls issues through the JQL search API, ordered by update time.
// Custom fields arrive as opaque customfield_NNNNN keys; the adapter
// renames them using the human-readable names map the API returns with
// expand=names.
type Jira struct {
	client    *Client
	baseURL   string
	source    string
	jql       string
	fields    []string
	maxItems  int
	pulled    int
	startAt   int
	exhausted bool
}

// NewJira creates an issue retriever from run parameters.
//
// Required credentials: username, api_token. Required params: base_url.
// Optional params: projects (list of project keys to restrict the search).
func NewJira(p Params) (Retriever, error) {
	baseURL, _ := p.Extra["base_url"].(string)
	if baseURL == "" {
		return nil, fmt.Errorf("jira: base_url is required")
	}
	username := p.Credentials["username"]
	token := p.Credentials["api_token"]
	if username == "" || token == "" {
		return nil, fmt.Errorf("jira: username and api_token credentials are required")
	}

	clauses := []string{
		fmt.Sprintf("updated >= %q", p.StartTime.UTC().Format(jiraTimeLayout)),
	}
	if projects := projectKeys(p.Extra["projects"]); len(projects) > 0 {
		clauses = append(clauses, fmt.Sprintf("project in (%s)", strings.Join(projects, ",")))
	}
	jql := strings.Join(clauses, " AND ") + " order by updated asc"

	return &Jira{
		client:   NewClient(username, token),
		baseURL:  strings.TrimRight(baseURL, "/"),
		source:   p.Source,
		jql:      jql,
		fields:   p.UpdateFields,
		maxItems: p.MaxItems,
	}, nil
}

// SupportsFieldUpdates reports that the search API can restrict the
// returned field set per request.
func (j *Jira) SupportsFieldUpdates() bool { return true }

// Next fetches one JQL search page and returns its issues.
func (j *Jira) Next(ctx context.Context) ([]pull.Record, error) {
	if j.exhausted {
		return nil, ErrExhausted
	}

	var page struct {
		Issues []map[string]interface{} `json:"issues"`
		Names  map[string]string        `json:"names"`
		Total  int                      `json:"total"`
	}
	searchURL := fmt.Sprintf("%s/rest/api/2/search?jql=%s&startAt=%d&maxResults=%d&expand=names",
		j.baseURL, url.QueryEscape(j.jql), j.startAt, jiraPageSize)
	if len(j.fields) > 0 {
		searchURL += "&fields=" + url.QueryEscape(strings.Join(j.fields, ","))
	}
	if err := j.client.GetJSON(ctx, searchURL, &page); err != nil {
		return nil, err
	}

	j.startAt += len(page.Issues)
	if len(page.Issues) < jiraPageSize || j.startAt >= page.Total {
		j.exhausted = true
	}

	records := make([]pull.Record, 0, len(page.Issues))
	for _, issue := range page.Issues {
		if j.maxItems > 0 && j.pulled >= j.maxItems {
			j.exhausted = true
			break
		}
		records = append(records, buildJiraRecord(issue, page.Names))
		j.pulled++
	}

	if len(records) == 0 && !j.exhausted {
		return nil, ErrExhausted
	}
	return records, nil
}

// buildJiraRecord flattens one issue: custom fields are renamed via the
// names map, and title/created_at are lifted from the field set.
func buildJiraRecord(issue map[string]interface{}, names map[string]string) pull.Record {
	rec := pull.Record{
		"id":  issue["id"],
		"key": issue["key"],
	}

	fields, _ := issue["fields"].(map[string]interface{})
	for key, value := range fields {
		name := key
		if strings.HasPrefix(key, "customfield_") {
			if mapped, ok := names[key]; ok && mapped != "" {
				name = mapped
			}
		}
		rec[name] = value
	}

	if title := firstString(rec, "Summary", "summary"); title != "" {
		rec["title"] = title
	}
	if created := firstString(rec, "Created", "created"); created != "" {
		rec["created_at"] = created
	}

	return rec
}

// firstString returns the first non-empty string value under the given keys.
func firstString(rec pull.Record, keys ...string) string {
	for _, key := range keys {
		if s, ok := rec[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// projectKeys converts the configured project list to strings.
func projectKeys(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Close releases adapter resources. No-op for HTTP adapters.
func (j *Jira) Close() error { return nil }
