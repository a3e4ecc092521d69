package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"
	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/config"
)

// MinPostingChars is the shortest scraped page treated as a real posting.
const MinPostingChars = 50

const defaultScrapeType = "job"

const scraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type ScraperService interface {
	Scrape(ctx context.Context, url, scrapeType string) (string, error)
}

type scraperService struct {
	url     string
	timeout time.Duration
}

// NewScraperService calls the scraping sidecar when its URL is set and
// collects the page with colly otherwise.
func NewScraperService(cfg config.ServicesConfig) ScraperService {
	return &scraperService{
		url:     strings.TrimSpace(cfg.ScraperURL),
		timeout: cfg.Timeout,
	}
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		RawText string `json:"raw_text"`
	} `json:"data"`
	Error string `json:"error"`
}

// Scrape implements ScraperService.
func (s *scraperService) Scrape(ctx context.Context, url, scrapeType string) (string, error) {
	if scrapeType == "" {
		scrapeType = defaultScrapeType
	}

	var text string
	var err error
	if s.url == "" {
		log.Printf("🌐 Scraping %s locally", url)
		text, err = s.collect(ctx, url)
	} else {
		log.Printf("🌐 Scraping %s via %s", url, s.url)
		text, err = s.remote(ctx, url, scrapeType)
	}
	if err != nil {
		return "", apperr.External(apperr.ReasonScrapeFailed, "job page scrape failed", err)
	}

	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < MinPostingChars {
		return "", apperr.External(apperr.ReasonScrapeFailed,
			fmt.Sprintf("scraped text too short: %d characters", n), nil)
	}

	return text, nil
}

func (s *scraperService) remote(ctx context.Context, url, scrapeType string) (string, error) {
	var resp scrapeResponse
	agent := fiber.Post(s.url).JSON(fiber.Map{"url": url, "scrape_type": scrapeType})
	if err := doJSON(ctx, agent, s.timeout, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("scraping service error: %s", resp.Error)
	}
	return resp.Data.RawText, nil
}

func (s *scraperService) collect(ctx context.Context, url string) (string, error) {
	timeout, err := callTimeout(ctx, s.timeout)
	if err != nil {
		return "", err
	}

	c := colly.NewCollector(colly.UserAgent(scraperUserAgent))
	c.Context = ctx
	c.SetRequestTimeout(timeout)

	var text string
	var visitErr error

	c.OnHTML("body", func(e *colly.HTMLElement) {
		e.DOM.Find("script, style, noscript, svg").Remove()
		text = strings.Join(strings.Fields(e.DOM.Text()), " ")
	})

	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(url); err != nil {
		return "", fmt.Errorf("failed to visit %s: %w", url, err)
	}
	if visitErr != nil {
		return "", visitErr
	}

	return text, nil
}
