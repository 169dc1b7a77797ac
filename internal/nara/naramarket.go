package nara

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/jaego/internal/model"
)

var seoul = time.FixedZone("KST", 9*60*60)

// NaraMarket queries the public procurement open API.
type NaraMarket struct {
	baseURL    string
	serviceKey string
	client     *http.Client
	now        func() time.Time
}

func NewNaraMarket(baseURL, serviceKey string, client *http.Client) *NaraMarket {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &NaraMarket{baseURL: baseURL, serviceKey: serviceKey, client: client, now: time.Now}
}

func (n *NaraMarket) Source() string { return model.SourceNaraMarket }

type naraResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items      []naraItem `json:"items"`
			TotalCount int        `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
}

type naraItem struct {
	BidNo       string `json:"bidNtceNo"`
	BidOrd      string `json:"bidNtceOrd"`
	Title       string `json:"bidNtceNm"`
	Institution string `json:"ntceInsttNm"`
	Demand      string `json:"dminsttNm"`
	Price       string `json:"presmptPrce"`
	Closes      string `json:"bidClseDt"`
	DetailURL   string `json:"bidNtceDtlUrl"`
	Kind        string `json:"ntceKindNm"`
	Region      string `json:"prtcptPsblRgnNm"`
}

func (n *NaraMarket) Search(ctx context.Context, q Query) ([]model.BidItem, error) {
	now := n.now().In(seoul)
	params := url.Values{}
	params.Set("serviceKey", n.serviceKey)
	params.Set("pageNo", "1")
	params.Set("numOfRows", "100")
	params.Set("inqryDiv", "1")
	params.Set("inqryBgnDt", q.Since.In(seoul).Format("200601021504"))
	params.Set("inqryEndDt", now.Format("200601021504"))
	params.Set("bidNtceNm", q.Keyword)
	params.Set("type", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling bid api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bid api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out naraResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding bid api response: %w", err)
	}
	if code := out.Response.Header.ResultCode; code != "" && code != "00" {
		return nil, fmt.Errorf("bid api error %s: %s", code, out.Response.Header.ResultMsg)
	}

	bids := make([]model.BidItem, 0, len(out.Response.Body.Items))
	for _, it := range out.Response.Body.Items {
		if it.BidNo == "" {
			continue
		}
		externalID := it.BidNo
		if it.BidOrd != "" {
			externalID += "-" + it.BidOrd
		}
		company := it.Institution
		if company == "" {
			company = it.Demand
		}
		bids = append(bids, model.BidItem{
			Source:      model.SourceNaraMarket,
			ExternalID:  externalID,
			Title:       it.Title,
			Company:     company,
			Price:       formatWon(it.Price),
			Deadline:    it.Closes,
			Status:      bidStatus(it.Closes, now),
			URL:         it.DetailURL,
			Description: it.Kind,
			Location:    it.Region,
			Keyword:     q.Keyword,
		})
	}
	return bids, nil
}

// bidStatus is closed once the deadline has passed. Unparseable deadlines
// count as active.
func bidStatus(deadline string, now time.Time) string {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006/01/02 15:04", "2006-01-02", "2006/01/02"} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(deadline), seoul); err == nil {
			if t.Before(now) {
				return model.BidClosed
			}
			return model.BidActive
		}
	}
	return model.BidActive
}

// formatWon renders a numeric amount as "15,000,000원".
func formatWon(amount string) string {
	amount = strings.TrimSpace(amount)
	n, err := strconv.ParseInt(strings.SplitN(amount, ".", 2)[0], 10, 64)
	if err != nil || n <= 0 {
		return amount
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + "원"
}
