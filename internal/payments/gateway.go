package payments

import "context"

// Address is a US postal address passed to the processor.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
}

// IsZero reports whether none of the identifying fields are set.
func (a Address) IsZero() bool {
	return a.Line1 == "" && a.City == "" && a.State == "" && a.PostalCode == ""
}

// CustomerDetails describes the customer to create for a local user.
type CustomerDetails struct {
	UserID  string
	Email   string
	Name    string
	Phone   string
	Address Address
}

// SessionLine is one priced line of a hosted checkout session.
type SessionLine struct {
	PriceRef string
	Quantity int64
}

// SessionRequest is everything needed to open a hosted checkout session.
type SessionRequest struct {
	CustomerRef string
	Lines       []SessionLine
	Metadata    map[string]string
	SuccessURL  string
	CancelURL   string
}

// Session is the created hosted checkout session.
type Session struct {
	ID  string
	URL string
}

// Gateway is the payment processor as seen by checkout.
type Gateway interface {
	CreateCustomer(ctx context.Context, details CustomerDetails) (string, error)
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
}
