package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"navkeeper/internal/models"
)

// fundEstimatePayload is the body of the JSONP-wrapped estimate feed:
// jsonpgz({"fundcode":"...","name":"...","gsz":"...","gszzl":"...","gztime":"..."});
type fundEstimatePayload struct {
	FundCode       string `json:"fundcode"`
	Name           string `json:"name"`
	Estimate       string `json:"gsz"`
	EstimateChange string `json:"gszzl"`
	Time           string `json:"gztime"`
}

func (s *Service) fetchFundEstimate(ctx context.Context, code string) (models.Quote, error) {
	url := fmt.Sprintf("%s/%s.js", s.fundEstimateURL, code)
	body, err := s.get(ctx, url, nil)
	if err != nil {
		return models.Quote{}, err
	}

	payload, err := unwrapJSONP(body)
	if err != nil {
		return models.Quote{}, err
	}

	var p fundEstimatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.Quote{}, fmt.Errorf("decode estimate payload: %w", err)
	}
	if p.FundCode == "" || p.Estimate == "" {
		return models.Quote{}, fmt.Errorf("estimate payload missing fields")
	}

	cls := Classify(code)
	return models.Quote{
		Code:           p.FundCode,
		Name:           p.Name,
		Estimate:       p.Estimate,
		EstimateChange: p.EstimateChange,
		Time:           p.Time,
		Type:           cls.Type,
		Sector:         cls.Sector,
	}, nil
}

// unwrapJSONP strips the jsonpgz(...) callback wrapper around the feed body.
func unwrapJSONP(body []byte) ([]byte, error) {
	text := strings.TrimSpace(string(body))
	start := strings.Index(text, "(")
	end := strings.LastIndex(text, ")")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("malformed jsonp body")
	}
	return []byte(text[start+1 : end]), nil
}

// get performs one bounded-timeout request. There are no retries: a single
// failure hands control to the synthesizer.
func (s *Service) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d from %s", models.ErrUpstreamUnavailable, resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}
