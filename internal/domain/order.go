package domain

import (
	"strings"
	"time"
)

// PaymentMethod enumerates the accepted payment instruments. Card payments
// are routed through the PayPal surface as well, so both values resolve to
// the same provider.
type PaymentMethod string

const (
	PaymentMethodPayPal PaymentMethod = "paypal"
	PaymentMethodCard   PaymentMethod = "card"
)

// Valid reports whether the method is one of the closed set.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodPayPal || m == PaymentMethodCard
}

// CartItem is a single poster line in the cart. PriceCents is denominated in
// euro cents; the cart recomputes it from the size table when it is missing
// or non-positive.
type CartItem struct {
	ID          string    `json:"id" firestore:"id"`
	Title       string    `json:"title" firestore:"title"`
	Prompt      string    `json:"prompt,omitempty" firestore:"prompt,omitempty"`
	ImageURL    string    `json:"imageUrl" firestore:"imageUrl"`
	Size        PrintSize `json:"size" firestore:"size"`
	PriceCents  int64     `json:"price" firestore:"price"`
	ProductID   string    `json:"productId,omitempty" firestore:"productId,omitempty"`
	ImageID     string    `json:"imageId,omitempty" firestore:"imageId,omitempty"`
	ProductName string    `json:"productName,omitempty" firestore:"productName,omitempty"`
}

// DisplayName returns the line's product name, falling back to the title and
// finally to the generic poster name used in emails.
func (i CartItem) DisplayName() string {
	if name := strings.TrimSpace(i.ProductName); name != "" {
		return name
	}
	if title := strings.TrimSpace(i.Title); title != "" {
		return title
	}
	return "KI-generiertes Poster"
}

// Customer carries the checkout form fields. Derived accessors compose the
// combined fields the order document and emails use.
type Customer struct {
	FirstName   string `json:"firstName" firestore:"firstName"`
	LastName    string `json:"lastName" firestore:"lastName"`
	Email       string `json:"email" firestore:"email"`
	Phone       string `json:"phone,omitempty" firestore:"phone,omitempty"`
	Street      string `json:"street" firestore:"street"`
	HouseNumber string `json:"houseNumber" firestore:"houseNumber"`
	ZIP         string `json:"zip" firestore:"zip"`
	City        string `json:"city" firestore:"city"`
	Country     string `json:"country,omitempty" firestore:"country,omitempty"`
}

// Name joins first and last name with a single space.
func (c Customer) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Address joins street and house number.
func (c Customer) Address() string {
	return strings.TrimSpace(c.Street + " " + c.HouseNumber)
}

// FullAddress renders "street number, zip city".
func (c Customer) FullAddress() string {
	return c.Address() + ", " + strings.TrimSpace(c.ZIP+" "+c.City)
}

// CountryOrDefault falls back to Deutschland, the only shipping region.
func (c Customer) CountryOrDefault() string {
	if country := strings.TrimSpace(c.Country); country != "" {
		return country
	}
	return "Deutschland"
}

// OrderStatusPaid is written when the order is persisted after a successful
// capture.
const OrderStatusPaid = "bezahlt"

// Order is the persisted order document. ImageURLs starts empty and is filled
// by a best-effort update once uploads finish.
type Order struct {
	ID             string          `json:"id" firestore:"-"`
	Customer       Customer        `json:"customer" firestore:"customer"`
	Items          []CartItem      `json:"items" firestore:"items"`
	TotalCents     int64           `json:"total" firestore:"total"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod" firestore:"paymentMethod"`
	PaymentDetails map[string]any  `json:"paymentDetails,omitempty" firestore:"paymentDetails,omitempty"`
	Status         string          `json:"status" firestore:"status"`
	ImageURLs      []string        `json:"imageUrls" firestore:"imageUrls"`
	ImageDetails   []UploadedImage `json:"imageDetails,omitempty" firestore:"imageDetails,omitempty"`
	PosterSizes    []string        `json:"posterSizes,omitempty" firestore:"posterSizes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt" firestore:"timestamp"`
	LastUpdated    time.Time       `json:"lastUpdated,omitempty" firestore:"lastUpdated,omitempty"`
}

// UploadedImage records one poster image that was copied into object storage
// for an order.
type UploadedImage struct {
	URL         string    `json:"url" firestore:"url"`
	Path        string    `json:"path" firestore:"path"`
	Size        PrintSize `json:"size,omitempty" firestore:"size,omitempty"`
	ProductName string    `json:"productName,omitempty" firestore:"productName,omitempty"`
	Prompt      string    `json:"prompt,omitempty" firestore:"prompt,omitempty"`
	ProductID   string    `json:"productId,omitempty" firestore:"productId,omitempty"`
	ImageID     string    `json:"imageId,omitempty" firestore:"imageId,omitempty"`
	Timestamp   time.Time `json:"timestamp" firestore:"timestamp"`
}
