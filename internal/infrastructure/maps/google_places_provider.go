package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/time/rate"

	"GeoDine-Crawler/internal/domain/model"
)

const (
	geocodeBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"
	nearbyBaseURL  = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"

	// next_page_tokenが有効になるまでAPI側で数秒かかる
	pageTokenDelay = 2 * time.Second

	// OVER_QUERY_LIMIT時の固定バックオフ
	overQuotaDelay = 5 * time.Second
)

// GooglePlacesProvider Google Geocoding / Places Nearby Search APIを使った実装
type GooglePlacesProvider struct {
	apiKey       string
	locationType string
	maxPages     int
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger

	geocodeURL string
	nearbyURL  string
	quotaDelay time.Duration
	tokenDelay time.Duration
}

// NewGooglePlacesProvider 新しいプロバイダを生成する
// requestsPerSecondは外向きAPIコールのペース制限（並列化ではない）
func NewGooglePlacesProvider(apiKey, locationType string, maxPages int, requestsPerSecond float64, logger *slog.Logger) *GooglePlacesProvider {
	return &GooglePlacesProvider{
		apiKey:       apiKey,
		locationType: locationType,
		maxPages:     maxPages,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:       logger,
		geocodeURL:   geocodeBaseURL,
		nearbyURL:    nearbyBaseURL,
		quotaDelay:   overQuotaDelay,
		tokenDelay:   pageTokenDelay,
	}
}

// Geocode 都市名をジオコーディングして中心座標とビューポートを取得する
func (g *GooglePlacesProvider) Geocode(ctx context.Context, city string) (model.LatLng, orb.Bound, error) {
	searchID := shortID()

	g.logger.Info("geocoding city center",
		slog.String("operation", "geocode"),
		slog.String("search_id", searchID),
		slog.String("city", city),
	)

	params := url.Values{}
	params.Set("address", city)
	params.Set("key", g.apiKey)

	var apiResp geocodeResponse
	if err := g.getJSON(ctx, g.geocodeURL, params, &apiResp); err != nil {
		return model.LatLng{}, orb.Bound{}, fmt.Errorf("ジオコーディングのリクエストに失敗: %w", err)
	}

	if apiResp.Status == "ZERO_RESULTS" || len(apiResp.Results) == 0 {
		g.logger.Error("city not found",
			slog.String("operation", "geocode"),
			slog.String("search_id", searchID),
			slog.String("city", city),
			slog.String("api_status", apiResp.Status),
		)
		return model.LatLng{}, orb.Bound{}, fmt.Errorf("%s: %w", city, model.ErrCityNotFound)
	}

	geometry := apiResp.Results[0].Geometry
	center := model.LatLng{Lat: geometry.Location.Lat, Lng: geometry.Location.Lng}
	viewport := orb.Bound{
		Min: orb.Point{geometry.Viewport.Southwest.Lng, geometry.Viewport.Southwest.Lat},
		Max: orb.Point{geometry.Viewport.Northeast.Lng, geometry.Viewport.Northeast.Lat},
	}

	g.logger.Info("geocoded city",
		slog.String("operation", "geocode"),
		slog.String("search_id", searchID),
		slog.String("city", city),
		slog.Float64("lat", center.Lat),
		slog.Float64("lng", center.Lng),
	)

	return center, viewport, nil
}

// SearchNearby 周辺の店舗を最大maxPagesページ分取得する
// OVER_QUERY_LIMITは固定バックオフ後に同じリクエストをリトライする。
// place_idを持たないエントリは個別にスキップし、タイル全体は中断しない
func (g *GooglePlacesProvider) SearchNearby(ctx context.Context, lat, lng, radiusMeters float64) ([]model.Place, int, int, error) {
	searchID := shortID()
	startedAt := time.Now()

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("radius", strconv.Itoa(int(radiusMeters)))
	params.Set("type", g.locationType)
	params.Set("key", g.apiKey)

	var places []model.Place
	resultCount := 0
	pageCount := 0

	for pageCount < g.maxPages {
		var apiResp nearbyResponse
		if err := g.getJSON(ctx, g.nearbyURL, params, &apiResp); err != nil {
			return nil, 0, 0, fmt.Errorf("周辺検索のリクエストに失敗: %w", err)
		}

		if apiResp.Status == "OVER_QUERY_LIMIT" {
			g.logger.Error("api quota exceeded, backing off",
				slog.String("operation", "nearby_search"),
				slog.String("search_id", searchID),
				slog.Duration("backoff", g.quotaDelay),
			)
			if err := sleepCtx(ctx, g.quotaDelay); err != nil {
				return nil, 0, 0, err
			}
			continue
		}

		if apiResp.Status != "OK" {
			if apiResp.Status != "ZERO_RESULTS" {
				g.logger.Warn("api returned non-OK status",
					slog.String("operation", "nearby_search"),
					slog.String("search_id", searchID),
					slog.String("api_status", apiResp.Status),
					slog.String("error_message", apiResp.ErrorMessage),
				)
			}
			break
		}

		resultCount += len(apiResp.Results)
		pageCount++

		for _, r := range apiResp.Results {
			if r.PlaceID == "" {
				g.logger.Warn("skipping result without place_id",
					slog.String("operation", "nearby_search"),
					slog.String("search_id", searchID),
					slog.String("name", r.Name),
				)
				continue
			}
			places = append(places, r.toPlace())
		}

		g.logger.Debug("fetched page",
			slog.String("operation", "nearby_search"),
			slog.String("search_id", searchID),
			slog.Int("page", pageCount),
			slog.Int("results", len(apiResp.Results)),
		)

		if apiResp.NextPageToken == "" {
			break
		}
		if err := sleepCtx(ctx, g.tokenDelay); err != nil {
			return nil, 0, 0, err
		}
		params = url.Values{}
		params.Set("pagetoken", apiResp.NextPageToken)
		params.Set("key", g.apiKey)
	}

	g.logger.Info("completed nearby search",
		slog.String("operation", "nearby_search"),
		slog.String("search_id", searchID),
		slog.Float64("lat", lat),
		slog.Float64("lng", lng),
		slog.Float64("radius_m", radiusMeters),
		slog.Int("pages", pageCount),
		slog.Int("result_count", resultCount),
		slog.Duration("duration", time.Since(startedAt)),
	)

	return places, resultCount, pageCount, nil
}

func (g *GooglePlacesProvider) getJSON(ctx context.Context, baseURL string, params url.Values, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s?%s", baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("APIリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("APIからエラーステータスが返されました: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("JSONのパースに失敗: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func shortID() string {
	return uuid.New().String()[:8]
}

// --- Google Maps APIのレスポンスをパースするための構造体 ---

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			Viewport struct {
				Northeast struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"northeast"`
				Southwest struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"southwest"`
			} `json:"viewport"`
		} `json:"geometry"`
	} `json:"results"`
}

type nearbyResponse struct {
	Status        string         `json:"status"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Results       []nearbyResult `json:"results"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type nearbyResult struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Vicinity string `json:"vicinity"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	Types            []string `json:"types"`
	BusinessStatus   string   `json:"business_status"`
}

func (r nearbyResult) toPlace() model.Place {
	return model.Place{
		PlaceID:          r.PlaceID,
		Name:             r.Name,
		Vicinity:         r.Vicinity,
		Lat:              r.Geometry.Location.Lat,
		Lng:              r.Geometry.Location.Lng,
		Rating:           r.Rating,
		UserRatingsTotal: r.UserRatingsTotal,
		Types:            r.Types,
		BusinessStatus:   r.BusinessStatus,
	}
}
