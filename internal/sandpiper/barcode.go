package sandpiper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"labelagent/internal/httpx"
	"labelagent/internal/logger"
)

var hundred = decimal.NewFromInt(100)

type createItemRequest struct {
	ID              string `json:"id"`
	InventoryNumber string `json:"inventoryNumber"`
	Description     string `json:"description"`
	Acquired        int64  `json:"acquired"`
	OriginalCost    int64  `json:"originalCost"`
	TotalCost       int64  `json:"totalCost"`
	AskingPrice     int64  `json:"askingPrice"`
}

type generateRequest struct {
	Template    string   `json:"template"`
	Skip        int      `json:"skip"`
	IDs         []string `json:"ids"`
	BoothNumber string   `json:"boothNumber"`
	Currency    string   `json:"currency"`
	PrintAll    bool     `json:"printAll"`
	AccountID   string   `json:"accountId"`
}

// Cents converts dollars to whole cents, halves rounding up.
func Cents(price decimal.Decimal) int64 {
	return price.Mul(hundred).Round(0).IntPart()
}

func (c *Client) login(ctx context.Context) (string, time.Duration, error) {
	var out struct {
		JWTToken string `json:"jwtToken"`
	}
	body := map[string]string{"username": c.account.Username, "password": c.account.Password}
	if err := c.do(ctx, http.MethodPost, "/api/login/do-login", "", body, &out); err != nil {
		return "", 0, fmt.Errorf("login: %w", err)
	}
	if out.JWTToken == "" {
		return "", 0, fmt.Errorf("login: no token in response")
	}
	logger.GetLogger().WithComponent("sandpiper").Info("login succeeded")
	return out.JWTToken, tokenTTL, nil
}

// CreateItemAndBarcode creates one inventory item and returns its numeric
// barcode, or NoBarcode when Sandpiper produced none.
func (c *Client) CreateItemAndBarcode(ctx context.Context, invNum, description string, price decimal.Decimal) (string, error) {
	if c.account.Username == "" || c.account.Password == "" || c.account.AccountID == "" {
		return NoBarcode, ErrNotConfigured
	}
	log := logger.GetLogger().WithComponent("sandpiper").WithFields(logger.Fields{"inventory": invNum})

	token, err := c.tokens.Get(ctx, c.login)
	if err != nil {
		return NoBarcode, err
	}

	var ids []string
	create := createItemRequest{
		InventoryNumber: invNum,
		Description:     truncateRunes(description, 80),
		Acquired:        c.now().Unix(),
		AskingPrice:     Cents(price),
	}
	path := "/api/items/v2/" + url.PathEscape(c.account.AccountID) + "/create?quantity=1"
	if err := c.do(ctx, http.MethodPost, path, token, create, &ids); err != nil {
		if httpx.IsStatus(err, http.StatusUnauthorized) {
			c.tokens.Invalidate()
		}
		return NoBarcode, fmt.Errorf("create item: %w", err)
	}
	if len(ids) == 0 {
		return NoBarcode, fmt.Errorf("create item: empty id list")
	}
	log.WithFields(logger.Fields{"item_id": ids[0]}).Info("item created")

	var requestID json.RawMessage
	gen := generateRequest{
		Template:    "30up",
		IDs:         ids[:1],
		BoothNumber: c.account.Booth,
		Currency:    "USD",
		AccountID:   c.account.AccountID,
	}
	if err := c.do(ctx, http.MethodPost, "/api/barcodes/generate-ids-text", token, gen, &requestID); err != nil {
		return NoBarcode, fmt.Errorf("generate barcode: %w", err)
	}
	reqID := strings.Trim(strings.TrimSpace(string(requestID)), `"`)

	lines, err := c.retrieve(ctx, token, reqID)
	if err != nil {
		return NoBarcode, err
	}
	if len(lines) == 0 {
		log.Info("barcode text empty, retrying")
		if err := c.sleep(ctx, c.retryDelay); err != nil {
			return NoBarcode, err
		}
		if lines, err = c.retrieve(ctx, token, reqID); err != nil {
			return NoBarcode, err
		}
	}
	code := ParseBarcode(lines)
	log.WithFields(logger.Fields{"barcode": code}).Info("barcode minted")
	return code, nil
}

func (c *Client) retrieve(ctx context.Context, token, reqID string) ([]string, error) {
	var text json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/barcodes/retrieve-text?id="+url.QueryEscape(reqID), token, nil, &text); err != nil {
		return nil, fmt.Errorf("retrieve barcode: %w", err)
	}
	var lines []string
	for _, ln := range strings.Split(string(text), "\n") {
		if strings.HasPrefix(ln, "#") {
			continue
		}
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines, nil
}

// ParseBarcode reads the first field of the first line, e.g.
// "18017172\t718-5492\t718\tItem desc\t$5.00" yields "18017172".
func ParseBarcode(lines []string) string {
	if len(lines) == 0 {
		return NoBarcode
	}
	fields := strings.Fields(lines[0])
	if len(fields) == 0 || strings.IndexFunc(fields[0], func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return NoBarcode
	}
	return fields[0]
}

// do sends body as JSON and stores the reply in out. A *json.RawMessage out
// receives the raw body.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()
	if err := httpx.CheckStatus(res); err != nil {
		return err
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if rm, ok := out.(*json.RawMessage); ok {
		*rm = raw
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
