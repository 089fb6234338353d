package retrievers

import (
	"context"
	"fmt"
	"time"

	"github.com/pullsync/runtime/internal/logger"
	"github.com/pullsync/runtime/pkg/pull"
)

// deletionScanStart is where the deletion-sync full scan begins. The
// incremental articles API only serves events after this date anyway.
var deletionScanStart = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

// ZendeskArticles pulls help center articles through the Zendesk
// incremental articles API and decorates each with its category/section
// breadcrumbs. The help center API never reports deletions, so the
// adapter also implements full-scan deletion sync.
type ZendeskArticles struct {
	client    *Client
	baseURL   string
	locale    string
	source    string
	maxItems  int
	pulled    int
	nextStart int64
	exhausted bool

	// breadcrumbs maps section id to "Category > Section", built lazily
	breadcrumbs map[int64]string
}

// NewZendeskArticles creates an article retriever from run parameters.
//
// Required credentials: email, api_token. Required params: subdomain.
// Optional params: locale (default "en-us").
func NewZendeskArticles(p Params) (Retriever, error) {
	subdomain, _ := p.Extra["subdomain"].(string)
	if subdomain == "" {
		return nil, fmt.Errorf("zendesk_articles: subdomain is required")
	}
	email := p.Credentials["email"]
	token := p.Credentials["api_token"]
	if email == "" || token == "" {
		return nil, fmt.Errorf("zendesk_articles: email and api_token credentials are required")
	}
	locale, _ := p.Extra["locale"].(string)
	if locale == "" {
		locale = "en-us"
	}

	return &ZendeskArticles{
		client:    NewClient(email+"/token", token),
		baseURL:   fmt.Sprintf("https://%s.zendesk.com", subdomain),
		locale:    locale,
		source:    p.Source,
		maxItems:  p.MaxItems,
		nextStart: p.StartTime.Unix(),
	}, nil
}

// articlePage is one incremental articles response.
type articlePage struct {
	Articles    []map[string]interface{} `json:"articles"`
	EndTime     int64                    `json:"end_time"`
	NextPage    string                   `json:"next_page"`
	EndOfStream bool                     `json:"end_of_stream"`
	Count       int                      `json:"count"`
}

// Next fetches one incremental page and returns its articles.
func (z *ZendeskArticles) Next(ctx context.Context) ([]pull.Record, error) {
	if z.exhausted {
		return nil, ErrExhausted
	}

	if z.breadcrumbs == nil {
		if err := z.loadBreadcrumbs(ctx); err != nil {
			return nil, err
		}
	}

	var page articlePage
	pageURL := fmt.Sprintf("%s/api/v2/help_center/incremental/articles.json?start_time=%d",
		z.baseURL, z.nextStart)
	if err := z.client.GetJSON(ctx, pageURL, &page); err != nil {
		return nil, err
	}

	if page.EndOfStream || page.Count < 1 || page.EndTime <= z.nextStart {
		z.exhausted = true
	}
	z.nextStart = page.EndTime

	records := make([]pull.Record, 0, len(page.Articles))
	for _, article := range page.Articles {
		if z.maxItems > 0 && z.pulled >= z.maxItems {
			z.exhausted = true
			break
		}
		records = append(records, z.buildRecord(article))
		z.pulled++
	}

	if len(records) == 0 && !z.exhausted {
		return z.Next(ctx)
	}
	return records, nil
}

// buildRecord decorates one raw article with breadcrumbs.
func (z *ZendeskArticles) buildRecord(article map[string]interface{}) pull.Record {
	rec := pull.Record(article)
	if sectionID, ok := numericID(article["section_id"]); ok {
		if crumbs, ok := z.breadcrumbs[sectionID]; ok {
			rec["breadcrumbs"] = crumbs
		}
	}
	return rec
}

// loadBreadcrumbs fetches all categories and sections once and joins
// them into "Category > Section" per section id.
func (z *ZendeskArticles) loadBreadcrumbs(ctx context.Context) error {
	categories := make(map[int64]string)
	next := fmt.Sprintf("%s/api/v2/help_center/%s/categories.json", z.baseURL, z.locale)
	for next != "" {
		var page struct {
			Categories []map[string]interface{} `json:"categories"`
			NextPage   string                   `json:"next_page"`
		}
		if err := z.client.GetJSON(ctx, next, &page); err != nil {
			return err
		}
		for _, cat := range page.Categories {
			if id, ok := numericID(cat["id"]); ok {
				name, _ := cat["name"].(string)
				categories[id] = name
			}
		}
		next = page.NextPage
	}

	z.breadcrumbs = make(map[int64]string)
	next = fmt.Sprintf("%s/api/v2/help_center/%s/sections.json", z.baseURL, z.locale)
	for next != "" {
		var page struct {
			Sections []map[string]interface{} `json:"sections"`
			NextPage string                   `json:"next_page"`
		}
		if err := z.client.GetJSON(ctx, next, &page); err != nil {
			return err
		}
		for _, section := range page.Sections {
			id, ok := numericID(section["id"])
			if !ok {
				continue
			}
			name, _ := section["name"].(string)
			if catID, ok := numericID(section["category_id"]); ok {
				if catName, ok := categories[catID]; ok {
					z.breadcrumbs[id] = catName + " > " + name
					continue
				}
			}
			z.breadcrumbs[id] = name
		}
		next = page.NextPage
	}

	logger.Logger.Debug("loaded article breadcrumbs",
		"source", z.source,
		"sections", len(z.breadcrumbs))
	return nil
}

// SyncDeletions reconciles the store against a full upstream scan. The
// incremental API never reports removed articles, so every published
// article id is collected from the epoch and everything else stored for
// this source is flagged deleted. Drafts are excluded from the keep set:
// an article pulled while published and since unpublished counts as gone.
func (z *ZendeskArticles) SyncDeletions(ctx context.Context, store DeletionStore) (int64, error) {
	keep := make([]string, 0, 256)
	start := deletionScanStart.Unix()

	for {
		var page articlePage
		pageURL := fmt.Sprintf("%s/api/v2/help_center/incremental/articles.json?start_time=%d",
			z.baseURL, start)
		if err := z.client.GetJSON(ctx, pageURL, &page); err != nil {
			return 0, err
		}
		for _, article := range page.Articles {
			if draft, _ := article["draft"].(bool); draft {
				continue
			}
			if id, ok := numericID(article["id"]); ok {
				keep = append(keep, fmt.Sprintf("%d", id))
			}
		}
		if page.EndOfStream || page.Count < 1 || page.EndTime <= start {
			break
		}
		start = page.EndTime
	}

	return store.MarkDeletedExcept(ctx, z.source, keep)
}

// Close releases adapter resources. No-op for HTTP adapters.
func (z *ZendeskArticles) Close() error { return nil }
