package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/talkbox/internal/cache"
	openai "github.com/sashabaranov/go-openai"
)

const weatherToolName = "get_weather"

var weatherTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        weatherToolName,
		Description: "Get current weather for a given location",
		Strict:      true,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "City name or location, e.g. Paris, London, Casablanca",
				},
			},
			"required":             []string{"location"},
			"additionalProperties": false,
		},
	},
}

// Weather looks up current conditions on wttr.in.
type Weather struct {
	BaseURL string
	Client  *http.Client
	// Cache holds recent reports by location. Nil disables caching.
	Cache *cache.Cache
}

const (
	weatherCacheSize = 64 << 10
	weatherCacheAge  = 15 * time.Minute
)

// NewWeather returns a Weather client for wttr.in.
func NewWeather() *Weather {
	return &Weather{
		BaseURL: "https://wttr.in",
		Client:  &http.Client{Timeout: 10 * time.Second},
		Cache:   cache.New(weatherCacheSize, weatherCacheAge),
	}
}

type wttrResponse struct {
	CurrentCondition []struct {
		TempC       string `json:"temp_C"`
		WeatherDesc []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
}

// Report returns a one-line weather summary for location. Failures are
// reported in the text itself since the result is fed back to the model.
func (w *Weather) Report(ctx context.Context, location string) string {
	key := strings.ToLower(strings.TrimSpace(location))
	if w.Cache != nil {
		if b, ok := w.Cache.Get(key); ok {
			log.Debug("weather cache hit", "location", location)
			return string(b)
		}
	}

	r, err := w.fetch(ctx, location)
	if err != nil {
		log.Warn("weather fetch failed", "location", location, "error", err)
		return fmt.Sprintf("Unable to fetch weather for %s", location)
	}
	if w.Cache != nil {
		if err := w.Cache.Put(key, []byte(r)); err != nil {
			log.Debug("not caching weather report", "location", location, "error", err)
		}
	}
	return r
}

func (w *Weather) fetch(ctx context.Context, location string) (string, error) {
	u := strings.TrimRight(w.BaseURL, "/") + "/" + url.PathEscape(location) + "?format=j1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("unable to build request: %w", err)
	}

	resp, err := w.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("unable to get weather: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP status %d", resp.StatusCode)
	}

	var data wttrResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("unable to decode weather: %w", err)
	}
	if len(data.CurrentCondition) == 0 || len(data.CurrentCondition[0].WeatherDesc) == 0 {
		return "", fmt.Errorf("no current conditions for %s", location)
	}

	current := data.CurrentCondition[0]
	return fmt.Sprintf("%s: %s, %s°C", location, current.WeatherDesc[0].Value, current.TempC), nil
}
