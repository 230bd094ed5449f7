package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/znehraks/mini-game-heaven/models"
	"github.com/znehraks/mini-game-heaven/utils"

	"gorm.io/gorm"
)

const defaultBatchLimit = 100

// ErrVAPIDNotConfigured means the engine has no signing identity and
// must not attempt any delivery.
var ErrVAPIDNotConfigured = errors.New("VAPID keys not configured")

var errSubscriptionExpired = errors.New("subscription expired")

type PushService struct {
	db     *gorm.DB
	vapid  *utils.VAPIDKeys
	client *http.Client
}

// NewPushService wires the delivery engine. keys may be nil; every
// batch then fails fast with ErrVAPIDNotConfigured.
func NewPushService(db *gorm.DB, keys *utils.VAPIDKeys) *PushService {
	return &PushService{
		db:     db,
		vapid:  keys,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type BatchResult struct {
	Processed            int `json:"processed"`
	Sent                 int `json:"sent"`
	Failed               int `json:"failed"`
	ExpiredSubscriptions int `json:"expired_subscriptions"`
}

// ProcessBatch drains up to limit pending notifications oldest-first,
// or the single item named by notificationID regardless of status
// (that is the manual-reprocess path). Each selected item is claimed
// with a conditional update so concurrent batch invocations never
// double-deliver the same item.
func (p *PushService) ProcessBatch(limit int, notificationID string) (*BatchResult, error) {
	if p.vapid == nil {
		return nil, ErrVAPIDNotConfigured
	}
	if limit <= 0 {
		limit = defaultBatchLimit
	}

	var items []models.QueuedNotification
	var err error
	if notificationID != "" {
		err = p.db.Where("id = ?", notificationID).Find(&items).Error
	} else {
		err = p.db.
			Where("status = ?", models.NotificationPending).
			Order("created_at ASC").
			Limit(limit).
			Find(&items).Error
	}
	if err != nil {
		return nil, fmt.Errorf("query notification queue: %w", err)
	}

	result := &BatchResult{}
	for i := range items {
		p.processItem(&items[i], result)
	}
	return result, nil
}

// processItem claims one work item and fans delivery out to every
// subscription of the target user. One success anywhere marks the item
// sent; otherwise it fails with the per-endpoint errors concatenated.
func (p *PushService) processItem(item *models.QueuedNotification, result *BatchResult) {
	claim := p.db.Model(&models.QueuedNotification{}).
		Where("id = ? AND status = ?", item.ID, item.Status).
		Update("status", models.NotificationProcessing)
	if claim.Error != nil {
		log.Printf("push: claim failed for notification %s: %v", item.ID, claim.Error)
		return
	}
	if claim.RowsAffected == 0 {
		// Claimed by a concurrent invocation.
		return
	}
	result.Processed++

	var subs []models.PushSubscription
	if item.UserID != nil {
		if err := p.db.Where("user_id = ?", *item.UserID).Find(&subs).Error; err != nil {
			p.finish(item, models.NotificationFailed, err.Error())
			result.Failed++
			return
		}
	}
	if len(subs) == 0 {
		p.finish(item, models.NotificationFailed, "No push subscriptions found")
		result.Failed++
		return
	}

	var (
		mu       sync.Mutex
		anySent  bool
		failures []string
		wg       sync.WaitGroup
	)
	for _, sub := range subs {
		wg.Add(1)
		go func(sub models.PushSubscription) {
			defer wg.Done()
			err := p.deliver(sub, item)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				anySent = true
			case errors.Is(err, errSubscriptionExpired):
				// 404/410: the endpoint is permanently gone. Drop the
				// row so we stop wasting attempts on it.
				if derr := p.db.Delete(&models.PushSubscription{}, "id = ?", sub.ID).Error; derr != nil {
					log.Printf("push: failed to delete expired subscription %s: %v", sub.ID, derr)
				}
				result.ExpiredSubscriptions++
				failures = append(failures, "expired")
			default:
				log.Printf("push: delivery to %s failed: %v", sub.Endpoint, err)
				failures = append(failures, err.Error())
			}
		}(sub)
	}
	wg.Wait()

	if anySent {
		p.finish(item, models.NotificationSent, "")
		result.Sent++
	} else {
		p.finish(item, models.NotificationFailed, "All subscriptions failed: "+strings.Join(failures, ", "))
		result.Failed++
	}
}

// deliver builds and transmits one encrypted envelope to one endpoint.
func (p *PushService) deliver(sub models.PushSubscription, item *models.QueuedNotification) error {
	payload, err := json.Marshal(map[string]any{
		"title":     item.Title,
		"body":      item.Body,
		"data":      item.Data,
		"timestamp": time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	body, err := utils.EncryptWebPushPayload(payload, sub.P256dh, sub.Auth)
	if err != nil {
		return fmt.Errorf("encrypt payload: %w", err)
	}
	vapidHeaders, err := p.vapid.AuthorizationHeaders(sub.Endpoint)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Encoding", "aes128gcm")
	req.Header.Set("TTL", "86400")
	req.Header.Set("Urgency", "normal")
	for k, v := range vapidHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return errSubscriptionExpired
	}
	text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
}

func (p *PushService) finish(item *models.QueuedNotification, status, errMsg string) {
	now := time.Now()
	// error_message is always written: a reprocessed item that succeeds
	// must not keep the failure text from an earlier attempt.
	updates := map[string]any{
		"status":        status,
		"processed_at":  &now,
		"error_message": errMsg,
	}
	if err := p.db.Model(&models.QueuedNotification{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
		log.Printf("push: failed to update notification %s: %v", item.ID, err)
	}
}
