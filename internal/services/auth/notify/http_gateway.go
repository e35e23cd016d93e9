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

	"github.com/cenkalti/backoff/v5"
	"github.com/louisbranch/shopkeeper/internal/platform/timeouts"
	"go.uber.org/zap"
)

const defaultMessageTemplate = "Your verification code is: %s"

// HTTPGateway sends codes through a Twilio-compatible Messages API.
type HTTPGateway struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	template   string
	maxTries   uint
	httpClient *http.Client
	logger     *zap.Logger
}

// HTTPGatewayConfig configures HTTPGateway.
type HTTPGatewayConfig struct {
	BaseURL         string
	AccountSID      string
	AuthToken       string
	From            string
	MessageTemplate string
	MaxTries        uint
}

type messageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    int    `json:"code,omitempty"`
	ErrorMessage string `json:"message,omitempty"`
}

// NewHTTPGateway validates cfg and builds a gateway.
func NewHTTPGateway(cfg HTTPGatewayConfig, httpClient *http.Client, logger *zap.Logger) (*HTTPGateway, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, fmt.Errorf("sms account sid and auth token are required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("sms sender number is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("sms base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse sms base url: %w", err)
	}
	template := cfg.MessageTemplate
	if strings.Count(template, "%s") != 1 {
		template = defaultMessageTemplate
	}
	maxTries := cfg.MaxTries
	if maxTries == 0 {
		maxTries = 1
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.Notification}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPGateway{
		baseURL:    baseURL,
		accountSID: strings.TrimSpace(cfg.AccountSID),
		authToken:  cfg.AuthToken,
		from:       strings.TrimSpace(cfg.From),
		template:   template,
		maxTries:   maxTries,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Send posts the message. Transport errors and 5xx responses are retried up
// to the configured number of tries; any other non-201 answer fails at once.
func (g *HTTPGateway) Send(ctx context.Context, phone, code string) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Notification)
	defer cancel()

	form := url.Values{}
	form.Set("To", "+"+strings.TrimPrefix(phone, "+"))
	form.Set("From", g.from)
	form.Set("Body", fmt.Sprintf(g.template, code))
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", g.baseURL, url.PathEscape(g.accountSID))

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	resp, err := backoff.Retry(ctx, func() (messageResponse, error) {
		return g.post(ctx, endpoint, form)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(g.maxTries))
	if err != nil {
		return deliveryFailed("send code", err)
	}

	g.logger.Info("verification code sent",
		zap.String("phone", MaskPhone(phone)),
		zap.String("sid", resp.SID),
		zap.String("status", resp.Status),
	)
	return nil
}

func (g *HTTPGateway) post(ctx context.Context, endpoint string, form url.Values) (messageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return messageResponse{}, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(g.accountSID, g.authToken)

	res, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return messageResponse{}, backoff.Permanent(err)
		}
		return messageResponse{}, fmt.Errorf("post message: %w", err)
	}
	defer res.Body.Close()

	var body messageResponse
	if decodeErr := json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&body); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		body = messageResponse{}
	}

	switch {
	case res.StatusCode == http.StatusCreated:
		return body, nil
	case res.StatusCode >= http.StatusInternalServerError:
		return messageResponse{}, fmt.Errorf("sms provider status %d", res.StatusCode)
	default:
		err := fmt.Errorf("sms provider status %d", res.StatusCode)
		if body.ErrorMessage != "" {
			err = fmt.Errorf("sms provider status %d: %s", res.StatusCode, body.ErrorMessage)
		}
		return messageResponse{}, backoff.Permanent(err)
	}
}
