package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// WebsyncClient fetches clicker web registrations over HTTP. The remote
// answers with tab-separated rows followed by a blank-line separator and
// an HTML blob; only the rows matter.
type WebsyncClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewWebsyncClient builds a client with its own timeout so a slow remote
// can never stall a student lookup indefinitely.
func NewWebsyncClient(baseURL string, timeout time.Duration, logger *zap.Logger) *WebsyncClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebsyncClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Registrations implements ClickerWebsync.
func (c *WebsyncClient) Registrations(ctx context.Context, clickerID string) ([]WebsyncRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?c="+normalizeClickerID(clickerID), nil)
	if err != nil {
		return nil, fmt.Errorf("build websync request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websync request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("websync request: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read websync response: %w", err)
	}
	return parseWebsyncResponse(string(body)), nil
}

// parseWebsyncResponse extracts the registration rows. Row layout:
// seq, clicker ID, first name, last name, student number, timestamp.
// Rows whose number column is not numeric are skipped; students type
// strange things in there.
func parseWebsyncResponse(text string) []WebsyncRecord {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	rows, _, found := strings.Cut(text, "\n\n\n")
	if !found {
		return nil
	}
	var records []WebsyncRecord
	for _, line := range strings.Split(rows, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			continue
		}
		number, err := strconv.Atoi(strings.TrimSpace(fields[4]))
		if err != nil {
			continue
		}
		records = append(records, WebsyncRecord{
			ClickerID:     strings.TrimSpace(fields[1]),
			StudentNumber: number,
		})
	}
	return records
}
