package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"datebox-be/internal/logger"

	"go.uber.org/zap"
)

const (
	stripeAPIBase = "https://api.stripe.com/v1"

	// signatureTolerance rejects webhook payloads whose timestamp is too far
	// from now, limiting the replay window.
	signatureTolerance = 5 * time.Minute
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrBadSignature     = errors.New("webhook signature mismatch")
	ErrStaleSignature   = errors.New("webhook signature timestamp outside tolerance")
)

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type stripeGateway struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	client        *http.Client
	now           func() time.Time
}

// NewStripeGateway builds the production gateway. The provider's API is form
// encoded over HTTPS with bearer auth.
func NewStripeGateway(secretKey, webhookSecret string) Gateway {
	return &stripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       stripeAPIBase,
		client:        &http.Client{Timeout: 15 * time.Second},
		now:           time.Now,
	}
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, params SessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if params.CustomerEmail != "" {
		form.Set("customer_email", params.CustomerEmail)
	}
	if params.ClientReferenceID != "" {
		form.Set("client_reference_id", params.ClientReferenceID)
	}
	for key, value := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}
	for i, item := range params.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
		form.Set(prefix+"[price_data][currency]", "usd")
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		if item.ImageURL != "" {
			form.Set(prefix+"[price_data][product_data][images][0]", item.ImageURL)
		}
	}

	var resp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := g.post(ctx, "/checkout/sessions", form, &resp); err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: resp.ID, URL: resp.URL}, nil
}

func (g *stripeGateway) CreateRefund(ctx context.Context, paymentIntentID string, amountCents int64) (*Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)
	if amountCents > 0 {
		form.Set("amount", strconv.FormatInt(amountCents, 10))
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.post(ctx, "/refunds", form, &resp); err != nil {
		return nil, err
	}
	return &Refund{ID: resp.ID, Status: resp.Status}, nil
}

func (g *stripeGateway) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	var resp struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		LatestCharge *struct {
			ID             string `json:"id"`
			Amount         int64  `json:"amount"`
			AmountRefunded int64  `json:"amount_refunded"`
		} `json:"latest_charge"`
	}
	path := "/payment_intents/" + url.PathEscape(paymentIntentID) + "?expand[]=latest_charge"
	if err := g.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	intent := &PaymentIntent{ID: resp.ID, Status: resp.Status}
	if resp.LatestCharge != nil {
		intent.LatestCharge = &Charge{
			ID:             resp.LatestCharge.ID,
			Amount:         resp.LatestCharge.Amount,
			AmountRefunded: resp.LatestCharge.AmountRefunded,
		}
	}
	return intent, nil
}

// VerifyWebhookSignature validates the provider's "t=...,v1=..." signature
// header: HMAC-SHA256 over "<timestamp>.<payload>" with the endpoint secret.
func (g *stripeGateway) VerifyWebhookSignature(payload []byte, sigHeader string) error {
	if sigHeader == "" {
		return ErrMissingSignature
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrMissingSignature
	}

	sent, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrMissingSignature
	}
	age := g.now().Sub(time.Unix(sent, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrStaleSignature
	}

	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrBadSignature
}

func (g *stripeGateway) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return g.do(req, out)
}

func (g *stripeGateway) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}
	return g.do(req, out)
}

func (g *stripeGateway) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err != nil {
			logger.L().Warn("unparseable stripe error body",
				zap.Int("status", resp.StatusCode))
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       errResp.Error.Code,
			Message:    errResp.Error.Message,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode stripe response: %w", err)
	}
	return nil
}
