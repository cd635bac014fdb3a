package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
)

// NotificationClient sends assignment notifications to the notifications
// service through a circuit breaker. Failures are the caller's problem to
// tolerate; this client only reports them.
type NotificationClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewNotificationClient(baseURL string, client *http.Client, breaker *gobreaker.CircuitBreaker) *NotificationClient {
	return &NotificationClient{
		baseURL: baseURL,
		client:  client,
		breaker: breaker,
	}
}

// TaskAssigned posts a "new task assigned" notification for the given user.
func (c *NotificationClient) TaskAssigned(userID, username, taskName string) error {
	payload, err := json.Marshal(map[string]string{
		"userId":   userID,
		"username": username,
		"message":  fmt.Sprintf("You have been assigned a new task: %s", taskName),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %v", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.Post(c.baseURL+"/api/notifications/add", "application/json", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return nil, fmt.Errorf("notifications service returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
