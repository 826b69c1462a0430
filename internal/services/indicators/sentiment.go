package indicators

import (
	"context"
	"fmt"
	"strconv"
	"time"

	xhttp "SignalPilot/pkg/http"
)

const DefaultSentimentURL = "https://api.alternative.me/fng/?limit=1"

// fearGreedResponse is the alternative.me payload.
type fearGreedResponse struct {
	Name string `json:"name"`
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

// SentimentClient reads the crypto fear & greed index.
type SentimentClient struct {
	url    string
	client *xhttp.Client
}

func NewSentimentClient(url string, timeout time.Duration) *SentimentClient {
	if url == "" {
		url = DefaultSentimentURL
	}
	return &SentimentClient{url: url, client: xhttp.NewClient(xhttp.WithTimeout(timeout))}
}

// Fetch returns the latest index value in [0, 100].
func (s *SentimentClient) Fetch(ctx context.Context) (float64, error) {
	var resp fearGreedResponse
	err := s.client.SendAndParseWithRetry(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    s.url,
	}, &resp, 2)
	if err != nil {
		return 0, fmt.Errorf("fetch fear greed: %w", err)
	}
	if len(resp.Data) == 0 {
		return 0, fmt.Errorf("fear greed: empty data")
	}
	v, err := strconv.ParseFloat(resp.Data[0].Value, 64)
	if err != nil {
		return 0, fmt.Errorf("fear greed value %q: %w", resp.Data[0].Value, err)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("fear greed value %v out of range", v)
	}
	return v, nil
}
