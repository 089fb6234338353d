package retrievers

import (
	"context"
	"fmt"

	"github.com/pullsync/runtime/internal/logger"
	"github.com/pullsync/runtime/pkg/pull"
)

// commentFields bounds which comment attributes are attached to a ticket.
// Comments carry audit metadata the store has no use for; everything else
// is dropped before the record leaves the adapter.
var commentFields = map[string]bool{
	"author_id":  true,
	"body":       true,
	"id":         true,
	"public":     true,
	"type":       true,
	"created_at": true,
}

// ZendeskTickets pulls tickets through the Zendesk incremental export API.
// Each page advances a server-supplied cursor timestamp; the adapter also
// attaches custom-field metadata and bounded comment threads per ticket.
type ZendeskTickets struct {
	client        *Client
	baseURL       string
	source        string
	maxItems      int
	pulled        int
	nextStart     int64
	exhausted     bool
	ignoreDeleted bool

	// fieldMeta maps custom field id to its descriptive metadata,
	// fetched lazily on the first page
	fieldMeta map[int64]map[string]interface{}
}

// NewZendeskTickets creates a ticket retriever from run parameters.
//
// Required credentials: email, api_token. Required params: subdomain.
// Zendesk API token auth uses basic auth with username "email/token".
func NewZendeskTickets(p Params) (Retriever, error) {
	subdomain, _ := p.Extra["subdomain"].(string)
	if subdomain == "" {
		return nil, fmt.Errorf("zendesk_tickets: subdomain is required")
	}
	email := p.Credentials["email"]
	token := p.Credentials["api_token"]
	if email == "" || token == "" {
		return nil, fmt.Errorf("zendesk_tickets: email and api_token credentials are required")
	}

	return &ZendeskTickets{
		client:        NewClient(email+"/token", token),
		baseURL:       fmt.Sprintf("https://%s.zendesk.com", subdomain),
		source:        p.Source,
		maxItems:      p.MaxItems,
		nextStart:     p.StartTime.Unix(),
		ignoreDeleted: p.IgnoreDeleted,
	}, nil
}

// Next fetches one incremental export page and returns its tickets.
func (z *ZendeskTickets) Next(ctx context.Context) ([]pull.Record, error) {
	if z.exhausted {
		return nil, ErrExhausted
	}

	if z.fieldMeta == nil {
		if err := z.loadFieldMeta(ctx); err != nil {
			return nil, err
		}
	}

	var page struct {
		Tickets     []map[string]interface{} `json:"tickets"`
		EndTime     int64                    `json:"end_time"`
		EndOfStream bool                     `json:"end_of_stream"`
		Count       int                      `json:"count"`
	}
	pageURL := fmt.Sprintf("%s/api/v2/incremental/tickets.json?start_time=%d", z.baseURL, z.nextStart)
	if err := z.client.GetJSON(ctx, pageURL, &page); err != nil {
		return nil, err
	}

	if page.EndOfStream || page.Count < 1 || page.EndTime <= z.nextStart {
		z.exhausted = true
	}
	z.nextStart = page.EndTime

	records := make([]pull.Record, 0, len(page.Tickets))
	for _, ticket := range page.Tickets {
		if z.maxItems > 0 && z.pulled >= z.maxItems {
			z.exhausted = true
			break
		}
		if status, _ := ticket["status"].(string); z.ignoreDeleted && status == "deleted" {
			continue
		}
		rec, err := z.buildRecord(ctx, ticket)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
		z.pulled++
	}

	if len(records) == 0 && !z.exhausted {
		return z.Next(ctx)
	}
	return records, nil
}

// buildRecord enriches one raw ticket with field metadata, comments, and
// the deletion flag.
func (z *ZendeskTickets) buildRecord(ctx context.Context, ticket map[string]interface{}) (pull.Record, error) {
	rec := pull.Record(ticket)

	status, _ := ticket["status"].(string)
	rec["deleted"] = status == "deleted"

	z.attachFieldMeta(rec)

	// Deleted tickets have no readable comment thread
	if !rec["deleted"].(bool) {
		if id, ok := numericID(ticket["id"]); ok {
			comments, err := z.fetchComments(ctx, id)
			if err != nil {
				return nil, err
			}
			rec["comments"] = comments
		}
	}

	return rec, nil
}

// attachFieldMeta decorates each custom_fields entry with the field's
// title, description, required flag, and type under the "xdata" key.
func (z *ZendeskTickets) attachFieldMeta(rec pull.Record) {
	custom, ok := rec["custom_fields"].([]interface{})
	if !ok {
		return
	}
	for _, raw := range custom {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		id, ok := numericID(entry["id"])
		if !ok {
			continue
		}
		if meta, ok := z.fieldMeta[id]; ok {
			entry["xdata"] = meta
		}
	}
}

// loadFieldMeta fetches the account's ticket field definitions once.
func (z *ZendeskTickets) loadFieldMeta(ctx context.Context) error {
	var resp struct {
		TicketFields []map[string]interface{} `json:"ticket_fields"`
	}
	if err := z.client.GetJSON(ctx, z.baseURL+"/api/v2/ticket_fields.json", &resp); err != nil {
		return err
	}

	z.fieldMeta = make(map[int64]map[string]interface{}, len(resp.TicketFields))
	for _, field := range resp.TicketFields {
		id, ok := numericID(field["id"])
		if !ok {
			continue
		}
		z.fieldMeta[id] = map[string]interface{}{
			"title":       field["title"],
			"description": field["description"],
			"required":    field["required"],
			"type":        field["type"],
		}
	}
	logger.Logger.Debug("loaded ticket field metadata",
		"source", z.source,
		"fields", len(z.fieldMeta))
	return nil
}

// fetchComments pulls the full comment thread for a ticket, bounded to
// the attributes in commentFields.
func (z *ZendeskTickets) fetchComments(ctx context.Context, ticketID int64) ([]interface{}, error) {
	comments := make([]interface{}, 0, 8)
	next := fmt.Sprintf("%s/api/v2/tickets/%d/comments.json", z.baseURL, ticketID)

	for next != "" {
		var page struct {
			Comments []map[string]interface{} `json:"comments"`
			NextPage string                   `json:"next_page"`
		}
		if err := z.client.GetJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, comment := range page.Comments {
			bounded := make(map[string]interface{}, len(commentFields))
			for key, value := range comment {
				if commentFields[key] {
					bounded[key] = value
				}
			}
			comments = append(comments, bounded)
		}
		next = page.NextPage
	}
	return comments, nil
}

// Close releases adapter resources. No-op for HTTP adapters.
func (z *ZendeskTickets) Close() error { return nil }

// numericID converts a JSON-decoded id (float64 or string) to int64.
func numericID(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
