package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"trivia-achievement-system/services"
)

// NotifyWorker drains the unlock-event channel and delivers each event to the
// external notification service. Delivery failures are logged and dropped;
// nothing here ever propagates back into achievement evaluation.
type NotifyWorker struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Events     <-chan services.UnlockEvent
}

func NewNotifyWorker(events <-chan services.UnlockEvent) *NotifyWorker {
	return &NotifyWorker{
		BaseURL: os.Getenv("NOTIFY_SERVICE_URL"),
		Token:   os.Getenv("SERVICE_TOKEN"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Events: events,
	}
}

func (w *NotifyWorker) Start(ctx context.Context) {
	if w.BaseURL == "" {
		log.Println("⚠️ NOTIFY_SERVICE_URL not set — unlock events will be logged only")
	}
	go w.run(ctx)
}

func (w *NotifyWorker) run(ctx context.Context) {
	for {
		select {
		case event := <-w.Events:
			if err := w.deliver(ctx, event); err != nil {
				log.Printf("⚠️ Unlock delivery failed for user %d (%s): %v", event.UserID, event.Type, err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Notify worker stopped")
			return
		}
	}
}

func (w *NotifyWorker) deliver(ctx context.Context, event services.UnlockEvent) error {
	log.Printf("🎖️ Achievement unlocked: user=%d type=%s score=%d", event.UserID, event.Type, event.Score)
	if w.BaseURL == "" {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.BaseURL+"/api/v1/notifications/achievements", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.Token)

	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification service returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
