package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

// Submitter sends one score to the backend. id is the enqueue-time id
// of the pending record; it rides along as the idempotency key so the
// backend can collapse duplicate submissions of the same score.
type Submitter interface {
	SubmitScore(ctx context.Context, id, gameID string, score int) error
}

type SyncResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// Reconciler drains the score queue when connectivity returns. At most
// one pass runs at a time process-wide; a trigger arriving while a pass
// is in flight is dropped, not queued — the next online or visibility
// event will trigger another pass anyway.
type Reconciler struct {
	queue   *ScoreQueue
	backend Submitter
	syncing atomic.Bool
}

func NewReconciler(queue *ScoreQueue, backend Submitter) *Reconciler {
	return &Reconciler{queue: queue, backend: backend}
}

// Sync submits every unsynced score oldest-first. Failures leave the
// record unsynced for the next pass; there is no backoff, retries ride
// on event-driven retriggering. Synced rows are purged only after at
// least one success in this pass.
func (r *Reconciler) Sync(ctx context.Context) SyncResult {
	var result SyncResult
	if !r.syncing.CompareAndSwap(false, true) {
		return result
	}
	defer r.syncing.Store(false)

	pending, err := r.queue.ListUnsynced()
	if err != nil {
		log.Printf("sync: failed to list pending scores: %v", err)
		return result
	}

	for _, p := range pending {
		if err := r.backend.SubmitScore(ctx, p.ID, p.GameID, p.Score); err != nil {
			result.Failed++
			log.Printf("sync: failed to submit score %s: %v", p.ID, err)
			continue
		}
		if err := r.queue.MarkSynced(p.ID); err != nil {
			log.Printf("sync: failed to mark score %s synced: %v", p.ID, err)
		}
		result.Synced++
	}

	if result.Synced > 0 {
		if err := r.queue.DeleteSynced(); err != nil {
			log.Printf("sync: cleanup of synced scores failed: %v", err)
		}
	}
	return result
}

// HandleOnline reacts to a network-online transition.
func (r *Reconciler) HandleOnline() {
	go r.Sync(context.Background())
}

// HandleVisible reacts to the app becoming visible.
func (r *Reconciler) HandleVisible(online bool) {
	if online {
		go r.Sync(context.Background())
	}
}

// Start performs the initial sync if the app loads already online.
func (r *Reconciler) Start(online bool) {
	if online {
		go r.Sync(context.Background())
	}
}

// HTTPSubmitter posts scores to the backend scores endpoint.
type HTTPSubmitter struct {
	BaseURL  string
	Nickname string
	Client   *http.Client
}

func NewHTTPSubmitter(baseURL, nickname string) *HTTPSubmitter {
	return &HTTPSubmitter{
		BaseURL:  baseURL,
		Nickname: nickname,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSubmitter) SubmitScore(ctx context.Context, id, gameID string, score int) error {
	body, err := json.Marshal(map[string]any{
		"client_id": id,
		"game_id":   gameID,
		"nickname":  s.Nickname,
		"score":     score,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/scores", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("submit score: HTTP %d: %s", resp.StatusCode, text)
	}
	return nil
}
