package registry

import (
	"github.com/pullsync/runtime/internal/retrievers"
)

// Built-in adapter registration.
func init() {
	Register("zendesk_tickets", retrievers.NewZendeskTickets)
	Register("zendesk_articles", retrievers.NewZendeskArticles)
	Register("jira", retrievers.NewJira)
}
