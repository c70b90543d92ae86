package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stagesync/stagesync/internal/livestate"
	"github.com/stagesync/stagesync/internal/models"
)

// PlatformClient talks to the event platform's REST API for the entities this
// engine consumes but does not own: teams, stages, and jury rosters. It
// implements the live package's collaborator interfaces.
type PlatformClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewPlatformClient(baseURL string) *PlatformClient {
	return &PlatformClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers: make(map[string]string),
	}
}

// SetHeader adds a header to every request (e.g. a service token).
func (c *PlatformClient) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetTimeout bounds every collaborator call so a slow platform cannot stall
// the engine.
func (c *PlatformClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// GetTeam fetches a team by id.
func (c *PlatformClient) GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	var team models.Team
	if err := c.getJSON(ctx, fmt.Sprintf("/api/teams/%s", teamID), &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// TeamsByRound fetches all teams assigned to a round of an event.
func (c *PlatformClient) TeamsByRound(ctx context.Context, eventID uuid.UUID, round int) ([]models.Team, error) {
	var teams []models.Team
	endpoint := fmt.Sprintf("/api/events/%s/teams?round=%d", eventID, round)
	if err := c.getJSON(ctx, endpoint, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// UpdateTeamStatus marks a team presenting or completed.
func (c *PlatformClient) UpdateTeamStatus(ctx context.Context, teamID uuid.UUID, status models.TeamStatus) error {
	body := fmt.Sprintf(`{"status":%q}`, status)
	_, err := c.makeRequest(ctx, http.MethodPatch, fmt.Sprintf("/api/teams/%s/status", teamID), strings.NewReader(body))
	return err
}

// GetStage fetches a stage by id.
func (c *PlatformClient) GetStage(ctx context.Context, stageID uuid.UUID) (*models.Stage, error) {
	var stage models.Stage
	if err := c.getJSON(ctx, fmt.Sprintf("/api/stages/%s", stageID), &stage); err != nil {
		return nil, err
	}
	return &stage, nil
}

// JuryHeadcount returns how many jury members an event has, used to seed the
// jury reveal animation.
func (c *PlatformClient) JuryHeadcount(ctx context.Context, eventID uuid.UUID) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/events/%s/jury/count", eventID), &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *PlatformClient) getJSON(ctx context.Context, endpoint string, dest any) error {
	body, err := c.makeRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to unmarshal response from %s: %w", endpoint, err)
	}
	return nil
}

func (c *PlatformClient) makeRequest(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, livestate.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("platform API returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return responseBody, nil
}
