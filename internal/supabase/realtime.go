package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"reimagine-studio/internal/models"
)

const (
	EventProjectSaved   = "project_saved"
	EventProjectDeleted = "project_deleted"

	eventsTable = "project_events"
)

// RealtimeClient publishes project events by inserting into project_events.
// Supabase Realtime broadcasts the inserts to the user's other sessions.
type RealtimeClient struct {
	client *supabase.Client
	now    func() time.Time
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
		now:    time.Now,
	}
}

type eventRow struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	Event     string `json:"event"`
	Payload   string `json:"payload"`
	CreatedAt int64  `json:"created_at"`
}

func (r *RealtimeClient) PublishProjectEvent(ctx context.Context, userID, projectID, event string, payload map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	row := eventRow{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Event:     event,
		Payload:   string(payloadJSON),
		CreatedAt: r.now().UnixMilli(),
	}

	if _, _, err := r.client.From(eventsTable).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event, err)
	}
	return nil
}

// Event payloads
func ProjectSavedPayload(p models.Project) map[string]interface{} {
	return map[string]interface{}{
		"project_id":      p.ID,
		"name":            p.Name,
		"mode":            string(p.Mode),
		"image_count":     p.ImageCount,
		"generated_count": len(p.GeneratedImages),
		"updated_at":      p.UpdatedAt,
	}
}

func ProjectDeletedPayload(projectID string) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID,
		"status":     "deleted",
	}
}
