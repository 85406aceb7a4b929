// Package planscape is the REST client for the remote scenario API.
package planscape

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"planscape-scenarios/internal/common/config"
	"planscape-scenarios/internal/common/errors"
	httpclient "planscape-scenarios/internal/common/http"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/models"
)

const (
	pathCreateScenario = "/planning/create_scenario/"
	pathGetScenario    = "/planning/get_scenario_by_id/"
	pathDownloadCSV    = "/planning/download_csv/"
	pathTreatmentGoals = "/planning/treatment_goals_config/"
	pathConditions     = "/conditions/config/"

	serviceName = "planscape"
)

// Client talks to the Planscape planning and conditions endpoints.
type Client struct {
	http   *httpclient.Client
	logger logger.Logger
}

func NewClient(cfg config.PlanscapeConfig, log logger.Logger) *Client {
	return &Client{
		http: httpclient.NewClientWithConfig(&httpclient.ClientConfig{
			BaseURL:  cfg.BaseURL,
			APIToken: cfg.APIToken,
			Timeout:  config.GetDuration(cfg.Timeout),
			RetryConfig: &httpclient.RetryConfig{
				MaxRetries: cfg.MaxRetries,
				BaseDelay:  config.GetDuration(cfg.RetryDelay),
				MaxDelay:   10 * time.Second,
			},
		}),
		logger: logger.ForComponent(log, "planscape-client"),
	}
}

// CreateScenario submits a scenario and returns the server-assigned id.
// Creation is not idempotent, so it is attempted exactly once.
func (c *Client) CreateScenario(ctx context.Context, scenario *models.Scenario) (models.ID, error) {
	var resp models.CreateScenarioResponse
	if err := c.http.PostJSON(ctx, pathCreateScenario, scenario, &resp); err != nil {
		retryable := httpclient.IsRetryable(err)
		msg := ""
		if statusErr, ok := asStatusError(err); ok {
			msg = serverMessage(statusErr.Body)
		}
		c.logger.Warn("Scenario creation rejected", map[string]interface{}{
			"name":         scenario.Name,
			"planningArea": scenario.PlanningAreaID,
			"status":       httpclient.StatusCode(err),
			"error":        err.Error(),
		})
		return "", errors.NewScenarioCreateFailedError(msg, retryable, err)
	}
	if resp.ID == "" {
		return "", errors.NewScenarioCreateFailedError("", false, fmt.Errorf("create_scenario returned no id"))
	}

	c.logger.Info("Scenario created", map[string]interface{}{
		"scenarioId":   resp.ID.String(),
		"planningArea": scenario.PlanningAreaID,
	})
	return resp.ID, nil
}

// GetScenario fetches a scenario including its result, if any. The caller
// decides whether to retry; polling retries on the next tick.
func (c *Client) GetScenario(ctx context.Context, id string) (*models.Scenario, error) {
	var scenario models.Scenario
	err := c.http.GetJSON(ctx, pathGetScenario, url.Values{"id": {id}}, &scenario)
	if err != nil {
		return nil, mapFetchError(id, err)
	}
	return &scenario, nil
}

// DownloadCSV returns the zipped CSV export for a scenario.
func (c *Client) DownloadCSV(ctx context.Context, id string) ([]byte, error) {
	var payload []byte
	err := c.http.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		body, err := c.http.GetBytes(ctx, pathDownloadCSV, url.Values{"id": {id}})
		if err != nil {
			return err
		}
		payload = body
		return nil
	}, "download_csv")
	if err != nil {
		if httpclient.StatusCode(err) == http.StatusNotFound {
			return nil, errors.NewScenarioNotFoundError(id)
		}
		return nil, errors.NewExportFailedError(id, err)
	}
	return payload, nil
}

// TreatmentGoals fetches the treatment-goal catalog.
func (c *Client) TreatmentGoals(ctx context.Context) ([]models.TreatmentGoalConfig, error) {
	var goals []models.TreatmentGoalConfig
	err := c.http.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		return c.http.GetJSON(ctx, pathTreatmentGoals, nil, &goals)
	}, "treatment_goals_config")
	if err != nil {
		return nil, errors.NewCatalogUnavailableError("treatment_goals", err)
	}
	return goals, nil
}

// ConditionsConfig fetches the conditions tree used for metric metadata.
func (c *Client) ConditionsConfig(ctx context.Context) (*models.ConditionsConfig, error) {
	var cfg models.ConditionsConfig
	err := c.http.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		return c.http.GetJSON(ctx, pathConditions, nil, &cfg)
	}, "conditions_config")
	if err != nil {
		return nil, errors.NewCatalogUnavailableError("conditions", err)
	}
	return &cfg, nil
}

func mapFetchError(id string, err error) error {
	switch {
	case httpclient.StatusCode(err) == http.StatusNotFound:
		return errors.NewScenarioNotFoundError(id)
	case httpclient.IsTimeout(err):
		return errors.NewTimeoutError(serviceName, err)
	case httpclient.StatusCode(err) == http.StatusUnauthorized || httpclient.StatusCode(err) == http.StatusForbidden:
		return errors.NewAuthenticationError(err.Error())
	default:
		return errors.NewScenarioFetchFailedError(id, err)
	}
}

func asStatusError(err error) (*httpclient.StatusError, bool) {
	var statusErr *httpclient.StatusError
	if stderrors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}

// serverMessage extracts the user-facing text from an error response. The
// API answers either with plain text or with a JSON object.
func serverMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"error", "message", "detail"} {
			if s, ok := obj[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return text
}
