package web_fetch

import (
	"context"
	"time"

	"github.com/Asul0/belg-agent/tools/web_fetch/chromedp"
	"github.com/Asul0/belg-agent/tools/web_fetch/models"
)

const (
	DefaultTimeoutMS = 45000
	MaxCharsDefault  = 20000
)

// WebFetcher renders a page and returns its visible text with
// navigation, scripts and other non-content markup stripped.
type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	ChromedpFetcherType FetcherType = "chromedp"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

func NewWebFetcher(fetcherType FetcherType, timeoutMS time.Duration, maxChars int) (WebFetcher, error) {
	if timeoutMS <= 0 {
		timeoutMS = DefaultTimeoutMS
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case ChromedpFetcherType:
		return &chromedp.Fetch{TimeoutMS: timeoutMS, MaxChars: maxChars}, nil
	default:
		return nil, &Error{"unsupported fetcher type"}
	}
}
