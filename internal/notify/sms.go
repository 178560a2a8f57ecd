package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-intake/internal/redact"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// SMSSender sends a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

const twilioBaseURL = "https://api.twilio.com"

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
	logger     *logging.Logger
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken, from string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryDelay: 250 * time.Millisecond,
		logger:     logger,
	}
}

// SendSMS dispatches a single SMS, retrying transient failures.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("notify: twilio credentials missing")
	}
	if s.from == "" {
		return errors.New("notify: twilio from number missing")
	}
	to = NormalizePhone(to)
	if to == "" {
		return ErrInvalidPhone
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("notify: sms body required")
	}

	ctx, span := tracer.Start(ctx, "notify.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.to", to))

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", s.from)
	payload.Set("Body", body)
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				s.logger.Info("twilio sms sent", "to", redact.Fingerprint(to), "sid", messageSID(respBody))
				return nil
			}
			lastErr = fmt.Errorf("notify: twilio send failed: %s", formatTwilioError(resp.StatusCode, respBody))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
		}

		if attempt < 3 {
			select {
			case <-ctx.Done():
				span.RecordError(ctx.Err())
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}

	span.RecordError(lastErr)
	return lastErr
}

func messageSID(body []byte) string {
	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.SID
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}

// ErrInvalidPhone is returned when a number cannot be put in E.164 form.
var ErrInvalidPhone = errors.New("notify: invalid phone number")

// NormalizePhone returns an E.164 number, assuming +1 for ten-digit input, or
// "" when the input is not a usable number.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && strings.HasPrefix(d, "1"):
		return "+" + d
	case len(d) > 11:
		return "+" + d
	default:
		return ""
	}
}

// StubSMSSender logs instead of sending.
type StubSMSSender struct {
	logger *logging.Logger
}

func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

func (s *StubSMSSender) SendSMS(_ context.Context, to, body string) error {
	if NormalizePhone(to) == "" {
		return ErrInvalidPhone
	}
	s.logger.Info("stub SMS sender: would send", "to", redact.Fingerprint(to), "body_preview", redact.Preview(body, 50))
	return nil
}

var _ SMSSender = (*TwilioSender)(nil)
var _ SMSSender = (*StubSMSSender)(nil)
