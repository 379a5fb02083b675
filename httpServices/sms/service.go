package sms

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"edulens-auth/logger"
)

// Client sends SMS through the Twilio REST API.
type Client struct {
	httpClient *http.Client
	accountSID string
	authToken  string
	fromNumber string
	enabled    bool
}

type twilioResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    any    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewClient creates a Twilio client. Missing credentials leave the client
// disabled; Send then fails and the OTP service's development path takes
// over.
func NewClient(accountSID, authToken, fromNumber string) *Client {
	enabled := accountSID != "" && authToken != "" && fromNumber != ""
	if !enabled {
		logger.Warning("Twilio SMS client initialized but disabled (missing credentials)")
	}

	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		enabled:    enabled,
	}
}

// Enabled reports whether credentials are configured.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Send dispatches one message to a +E.164 destination.
func (c *Client) Send(phone, message string) error {
	if !c.enabled {
		return errors.New("SMS client is not configured")
	}
	if !strings.HasPrefix(phone, "+") {
		return errors.New("phone number must include country code")
	}

	apiURL := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", c.accountSID)

	data := url.Values{}
	data.Set("To", phone)
	data.Set("From", c.fromNumber)
	data.Set("Body", message)

	req, err := http.NewRequest(http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var twResp twilioResponse
	if err := json.NewDecoder(resp.Body).Decode(&twResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		errMsg := fmt.Sprintf("Twilio API error (status %d)", resp.StatusCode)
		if twResp.ErrorMessage != "" {
			errMsg += ": " + twResp.ErrorMessage
		}
		return errors.New(errMsg)
	}

	logger.Info(fmt.Sprintf("SMS sent to %s. SID: %s, Status: %s", phone, twResp.SID, twResp.Status))
	return nil
}
