package nara

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/erazemk/jaego/internal/model"
)

// browserLauncher starts a browser process and tears it down.
type browserLauncher interface {
	Launch() (string, error)
	Kill()
	Cleanup()
}

// Korail scrapes the railway corporation's bid board, which has no API.
type Korail struct {
	boardURL string
	launch   func(ctx context.Context, headless bool) browserLauncher
}

// NewKorail returns a searcher for the bid board at boardURL.
func NewKorail(boardURL string) *Korail {
	return &Korail{boardURL: boardURL, launch: chromeLauncher}
}

func chromeLauncher(ctx context.Context, headless bool) browserLauncher {
	return launcher.New().Headless(headless).Leakless(false).Context(ctx)
}

func (k *Korail) Source() string { return model.SourceKorail }

func (k *Korail) Search(ctx context.Context, q Query) ([]model.BidItem, error) {
	// Leakless is off, so the browser process is killed here on every path.
	l := k.launch(ctx, q.Headless)
	defer l.Cleanup()
	defer l.Kill()

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	defer browser.Close()

	target := k.boardURL + "?" + url.Values{"searchKeyword": {q.Keyword}}.Encode()
	page, err := browser.Page(proto.TargetCreateTarget{URL: target})
	if err != nil {
		return nil, fmt.Errorf("opening bid board: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("loading bid board: %w", err)
	}

	rows, err := page.Elements("table tbody tr")
	if err != nil {
		return nil, fmt.Errorf("finding bid rows: %w", err)
	}

	now := time.Now().In(seoul)
	var bids []model.BidItem
	for _, row := range rows {
		cells, err := row.Elements("td")
		if err != nil {
			continue
		}
		texts := make([]string, 0, len(cells))
		for _, c := range cells {
			t, err := c.Text()
			if err != nil {
				t = ""
			}
			texts = append(texts, t)
		}

		var href string
		if link, err := row.Element("a"); err == nil {
			if v, err := link.Attribute("href"); err == nil && v != nil {
				href = *v
			}
		}

		if bid, ok := parseKorailRow(texts, href, k.boardURL, now); ok {
			bid.Keyword = q.Keyword
			bids = append(bids, bid)
		}
	}
	return bids, nil
}

// parseKorailRow maps a board row (number, title, company, price, deadline)
// to a bid. Header and "no results" rows are rejected.
func parseKorailRow(cells []string, href, base string, now time.Time) (model.BidItem, bool) {
	if len(cells) < 5 {
		return model.BidItem{}, false
	}
	for i := range cells {
		cells[i] = strings.Join(strings.Fields(cells[i]), " ")
	}
	number, title := cells[0], cells[1]
	if number == "" || title == "" {
		return model.BidItem{}, false
	}

	link := href
	if ref, err := url.Parse(href); err == nil && href != "" {
		if b, err := url.Parse(base); err == nil {
			link = b.ResolveReference(ref).String()
		}
	}

	return model.BidItem{
		Source:     model.SourceKorail,
		ExternalID: number,
		Title:      title,
		Company:    cells[2],
		Price:      cells[3],
		Deadline:   cells[4],
		Status:     bidStatus(cells[4], now),
		URL:        link,
		Category:   "철도",
	}, true
}
