package validator

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NewHTTPRoster returns a RosterFunc that fetches a CSV contributor roster
// from the given URL and extracts the "Github" column. The roster is fetched
// on every call; the HTTP transport's cache layer handles conditional
// requests.
func NewHTTPRoster(url string) RosterFunc {
	client := &http.Client{Timeout: 15 * time.Second}

	return func(ctx context.Context) ([]string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching contributor roster: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("contributor roster returned status %d", resp.StatusCode)
		}

		return parseRosterCSV(csv.NewReader(resp.Body))
	}
}

// parseRosterCSV extracts the "Github" column from a CSV roster. The header
// row names the columns; rows with an empty login are skipped.
func parseRosterCSV(reader *csv.Reader) ([]string, error) {
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing contributor roster CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("contributor roster CSV is empty")
	}

	loginCol := -1
	for i, name := range records[0] {
		if strings.EqualFold(strings.TrimSpace(name), "Github") {
			loginCol = i
			break
		}
	}
	if loginCol == -1 {
		return nil, fmt.Errorf("contributor roster CSV has no Github column")
	}

	var logins []string
	for _, record := range records[1:] {
		if loginCol >= len(record) {
			continue
		}
		if login := strings.TrimSpace(record[loginCol]); login != "" {
			logins = append(logins, login)
		}
	}

	return logins, nil
}
