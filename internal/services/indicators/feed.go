package indicators

import "context"

// Source returns one 0-100 reading.
type Source interface {
	Fetch(ctx context.Context) (float64, error)
}

// Feed joins the sentiment and breadth sources into an IndicatorFeed.
type Feed struct {
	sentiment Source
	breadth   Source
}

func NewFeed(sentiment, breadth Source) *Feed {
	return &Feed{sentiment: sentiment, breadth: breadth}
}

func (f *Feed) FetchSentiment(ctx context.Context) (float64, error) {
	return f.sentiment.Fetch(ctx)
}

func (f *Feed) FetchBreadth(ctx context.Context) (float64, error) {
	return f.breadth.Fetch(ctx)
}
