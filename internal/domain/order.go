package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled
}

// Cancellable reports whether a customer can still back out. Once the parcel
// is on its way the dispute path is the only exit.
func (s OrderStatus) Cancellable() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing:
		return true
	}
	return false
}

// OrderProduct is a frozen cart line. VendorID stays on every line so order
// views can later be sharded per vendor.
type OrderProduct struct {
	ProductID int64    `json:"product_id"`
	VendorID  int64    `json:"vendor_id"`
	Name      string   `json:"name"`
	ImageURL  string   `json:"image_url"`
	UnitPrice float64  `json:"unit_price"`
	SalePrice *float64 `json:"sale_price,omitempty"`
	Quantity  int      `json:"quantity"`
	Subtotal  float64  `json:"subtotal"`
}

// Address is copied by value at order creation; later edits to the customer's
// address book never touch a placed order.
type Address struct {
	Recipient  string `json:"recipient"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

func (a Address) Empty() bool {
	return a.Recipient == "" && a.Line1 == "" && a.City == ""
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentApproved PaymentStatus = "APPROVED"
	PaymentRejected PaymentStatus = "REJECTED"
)

// PaymentIntent is an opaque reference into the payment authority. The core
// records it and never interprets it beyond the status enum.
type PaymentIntent struct {
	Ref    string        `json:"ref"`
	Status PaymentStatus `json:"status"`
}

// Shipment metadata can only attach during the processing -> shipped
// transition.
type Shipment struct {
	TrackingNumber string    `json:"tracking_number"`
	Carrier        string    `json:"carrier"`
	ShippedAt      time.Time `json:"shipped_at"`
}

type Problem struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Receipt is the customer's one-time delivery attestation.
type Receipt struct {
	Confirmed  bool      `json:"confirmed"`
	Rating     int       `json:"rating,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	Problems   []Problem `json:"problems,omitempty"`
	AttestedAt time.Time `json:"attested_at"`
}

// StatusChange is one append-only audit trail entry. Entries are never edited
// or removed.
type StatusChange struct {
	Status  OrderStatus `json:"status"`
	Comment string      `json:"comment,omitempty"`
	At      time.Time   `json:"at"`
}

// Order is the immutable-at-creation snapshot of a cart plus a mutable
// lifecycle record. Totals, items, coupons and address are frozen copies;
// nothing here ever re-derives money from live catalog prices.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	UserID         string          `json:"user_id"`
	Items          []OrderProduct  `json:"items"`
	Totals         Totals          `json:"totals"`
	Coupons        []AppliedCoupon `json:"coupons"`
	Address        Address         `json:"address"`
	Payment        PaymentIntent   `json:"payment"`
	Status         OrderStatus     `json:"status"`
	Shipment       *Shipment       `json:"shipment,omitempty"`
	Delivery       *Receipt        `json:"delivery,omitempty"`
	ReviewEligible bool            `json:"review_eligible"`
	History        []StatusChange  `json:"history"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (o *Order) appendHistory(status OrderStatus, comment string, at time.Time) {
	o.History = append(o.History, StatusChange{Status: status, Comment: comment, At: at})
}

// Confirm moves a pending order into the vendor's queue.
func (o *Order) Confirm(comment string) error {
	if o.Status != OrderStatusPending {
		return ErrIllegalTransition
	}
	o.Status = OrderStatusConfirmed
	o.appendHistory(o.Status, comment, time.Now())
	return nil
}

// StartProcessing marks the vendor as preparing the order.
func (o *Order) StartProcessing(comment string) error {
	if o.Status != OrderStatusConfirmed {
		return ErrIllegalTransition
	}
	o.Status = OrderStatusProcessing
	o.appendHistory(o.Status, comment, time.Now())
	return nil
}

// Ship attaches shipment metadata atomically with the transition. An order
// cannot become shipped without a tracking number and carrier.
func (o *Order) Ship(trackingNumber, carrier, comment string) error {
	if o.Status != OrderStatusProcessing {
		return ErrIllegalTransition
	}
	if trackingNumber == "" || carrier == "" {
		return ErrShipmentDataRequired
	}
	now := time.Now()
	o.Status = OrderStatusShipped
	o.Shipment = &Shipment{TrackingNumber: trackingNumber, Carrier: carrier, ShippedAt: now}
	o.appendHistory(o.Status, comment, now)
	return nil
}

// MarkDelivered records that the parcel arrived. The customer has not attested
// yet; review eligibility stays off until they confirm.
func (o *Order) MarkDelivered(comment string) error {
	if o.Status != OrderStatusShipped {
		return ErrIllegalTransition
	}
	o.Status = OrderStatusDelivered
	o.appendHistory(o.Status, comment, time.Now())
	return nil
}

// ConfirmDelivery is the customer's one-time positive attestation. It flips
// review eligibility for every product on the order.
func (o *Order) ConfirmDelivery(rating int, comment string) error {
	if o.Status != OrderStatusDelivered {
		return ErrIllegalTransition
	}
	if o.Delivery != nil {
		return ErrDeliveryAlreadyAttested
	}
	if rating < 0 || rating > 5 {
		return ErrInvalidInput
	}
	now := time.Now()
	o.Delivery = &Receipt{Confirmed: true, Rating: rating, Comment: comment, AttestedAt: now}
	o.ReviewEligible = true
	o.appendHistory(o.Status, comment, now)
	return nil
}

// DisputeDelivery is the customer's one-time negative attestation. It requires
// a comment and at least one structured problem, and does not grant review
// eligibility.
func (o *Order) DisputeDelivery(comment string, problems []Problem) error {
	if o.Status != OrderStatusDelivered {
		return ErrIllegalTransition
	}
	if o.Delivery != nil {
		return ErrDeliveryAlreadyAttested
	}
	if comment == "" || len(problems) == 0 {
		return ErrDisputeDataRequired
	}
	for _, p := range problems {
		if p.Type == "" || p.Description == "" {
			return ErrDisputeDataRequired
		}
	}
	now := time.Now()
	o.Delivery = &Receipt{Confirmed: false, Comment: comment, Problems: problems, AttestedAt: now}
	o.appendHistory(o.Status, comment, now)
	return nil
}

// Cancel is reachable from any state that is not yet shipped.
func (o *Order) Cancel(comment string) error {
	if !o.Status.Cancellable() {
		return ErrIllegalTransition
	}
	o.Status = OrderStatusCancelled
	o.appendHistory(o.Status, comment, time.Now())
	return nil
}
