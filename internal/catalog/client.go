package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// CourseInfo is the catalog's canonical description of a product.
type CourseInfo struct {
	Title      string `json:"title"`
	Instructor string `json:"instructorName"`
	Price      int64  `json:"price"`
}

// Discount is the result of reserving an active discount for a product.
// Rate is a percentage (e.g. 10 means 10% off).
type Discount struct {
	Applied bool            `json:"applied"`
	Rate    decimal.Decimal `json:"discountRate"`
}

type Client interface {
	// Info never fails hard: when the catalog is unreachable the caller
	// gets a placeholder so purchase listings still render.
	Info(ctx context.Context, productID uint64) (*CourseInfo, error)
	ReserveDiscount(ctx context.Context, productID uint64) (*Discount, error)
}

var placeholder = CourseInfo{Title: "unknown", Instructor: "unknown", Price: 0}

type httpClient struct {
	http    *http.Client
	baseURL string
}

func NewClient(baseURL string, timeout time.Duration) Client {
	return &httpClient{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (c *httpClient) Info(ctx context.Context, productID uint64) (*CourseInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/lectures/%d", c.baseURL, productID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("catalog: info lookup failed productId=%d err=%v", productID, err)
		info := placeholder
		return &info, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("catalog: info lookup returned %d productId=%d", resp.StatusCode, productID)
		info := placeholder
		return &info, nil
	}

	var info CourseInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		log.Printf("catalog: decoding info failed productId=%d err=%v", productID, err)
		info = placeholder
	}
	return &info, nil
}

func (c *httpClient) ReserveDiscount(ctx context.Context, productID uint64) (*Discount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/lecture-discounts/%d/reserve", c.baseURL, productID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reserve discount: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("reserve discount: catalog returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		// No active discount, or outside the discount window.
		return &Discount{Applied: false}, nil
	}

	var d Discount
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode discount: %w", err)
	}
	return &d, nil
}
