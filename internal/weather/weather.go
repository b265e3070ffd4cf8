package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const dailyFields = "temperature_2m_max,temperature_2m_min,weathercode,windspeed_10m_max,precipitation_probability_max"

// Forecast 某一天的天气。Humidity 实际是降水概率（%）
type Forecast struct {
	Date        string  `json:"date"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

type Config struct {
	BaseURL   string
	Latitude  float64
	Longitude float64
	Timezone  string
}

// Client 固定地点的 open-meteo 日预报，任何失败都返回 (nil, false)
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger.Named("weather")}
}

type dailyResponse struct {
	Daily struct {
		TempMax       []float64 `json:"temperature_2m_max"`
		TempMin       []float64 `json:"temperature_2m_min"`
		WeatherCode   []int     `json:"weathercode"`
		WindSpeed     []float64 `json:"windspeed_10m_max"`
		Precipitation []float64 `json:"precipitation_probability_max"`
	} `json:"daily"`
}

func (c *Client) forecastURL(date string) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.cfg.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.cfg.Longitude, 'f', -1, 64))
	q.Set("daily", dailyFields)
	q.Set("timezone", c.cfg.Timezone)
	q.Set("start_date", date)
	q.Set("end_date", date)
	return c.cfg.BaseURL + "/v1/forecast?" + q.Encode()
}

// Forecast 查询 date 当天的预报
func (c *Client) Forecast(ctx context.Context, date time.Time) (*Forecast, bool) {
	day := date.Format("2006-01-02")
	f, err := c.fetch(ctx, day)
	if err != nil {
		c.logger.Warn("weather forecast unavailable", zap.String("date", day), zap.Error(err))
		return nil, false
	}
	return f, true
}

func (c *Client) fetch(ctx context.Context, day string) (*Forecast, error) {
	u := c.forecastURL(day)
	c.logger.Debug("fetching weather forecast", zap.String("date", day), zap.String("url", u))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("weather api returned %d: %s", resp.StatusCode, body)
	}

	var dr dailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}
	d := dr.Daily
	if len(d.TempMax) == 0 || len(d.TempMin) == 0 || len(d.WeatherCode) == 0 ||
		len(d.WindSpeed) == 0 || len(d.Precipitation) == 0 {
		return nil, fmt.Errorf("weather response missing daily values")
	}

	code := d.WeatherCode[0]
	cond := Lookup(code)
	return &Forecast{
		Date:        day,
		Temperature: (d.TempMax[0] + d.TempMin[0]) / 2,
		Description: cond.Description,
		Icon:        cond.Icon,
		Humidity:    d.Precipitation[0],
		WindSpeed:   d.WindSpeed[0],
	}, nil
}
