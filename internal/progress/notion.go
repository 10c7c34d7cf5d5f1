package progress

import (
	"context"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NotionSink appends terminal progress events as rows to a Notion database,
// giving operators a lightweight run log. Intermediate events are skipped to
// stay inside Notion's rate limit; delivery failures are logged and dropped.
type NotionSink struct {
	client  *notionapi.Client
	dbID    string
	limiter *rate.Limiter
}

// NewNotionSink creates a sink writing to the given Notion database.
func NewNotionSink(token, dbID string) *NotionSink {
	return &NotionSink{
		client:  notionapi.NewClient(notionapi.Token(token)),
		dbID:    dbID,
		limiter: rate.NewLimiter(3, 1), // Notion's documented limit
	}
}

func (s *NotionSink) Notify(ctx context.Context, ev Event) {
	if ev.Status != StatusCompleted && ev.Status != StatusFailed {
		return
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	_, err := s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(s.dbID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: []notionapi.RichText{
					{Text: &notionapi.Text{Content: ev.Message}},
				},
			},
			"Status": notionapi.SelectProperty{
				Select: notionapi.Option{Name: string(ev.Status)},
			},
		},
	})
	if err != nil {
		zap.L().Warn("progress: notion notify failed", zap.Error(err))
	}
}
