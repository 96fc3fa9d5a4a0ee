package payment

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultQREndpoint renders a QR image for the data query parameter.
	DefaultQREndpoint = "https://api.qrserver.com/v1/create-qr-code/"
	defaultQRSize     = 250
	currencyINR       = "INR"
)

// ErrMissingPayee indicates a hub without a payment identifier.
var ErrMissingPayee = errors.New("payee identifier required")

// Instructions is what the client shows to settle a booking out of band.
type Instructions struct {
	Link      string `json:"link"`
	QRCodeURL string `json:"qrCodeUrl"`
}

// UPILink builds a upi://pay deep link. Parameters keep the order UPI apps expect.
func UPILink(payee, payeeName string, amount int, note string) (string, error) {
	payee = strings.TrimSpace(payee)
	if payee == "" {
		return "", ErrMissingPayee
	}
	params := []string{"pa=" + escape(payee)}
	if name := strings.TrimSpace(payeeName); name != "" {
		params = append(params, "pn="+escape(name))
	}
	params = append(params, "am="+strconv.Itoa(amount), "cu="+currencyINR)
	if note = strings.TrimSpace(note); note != "" {
		params = append(params, "tn="+escape(note))
	}
	return "upi://pay?" + strings.Join(params, "&"), nil
}

// QRCodeURL points a public QR renderer at link.
func QRCodeURL(endpoint, link string, size int) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultQREndpoint
	}
	if size <= 0 {
		size = defaultQRSize
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%ssize=%dx%d&data=%s", endpoint, sep, size, size, url.QueryEscape(link))
}

// Build returns the deep link and its QR image URL.
func Build(endpoint, payee, payeeName string, amount int, note string) (Instructions, error) {
	link, err := UPILink(payee, payeeName, amount, note)
	if err != nil {
		return Instructions{}, err
	}
	return Instructions{Link: link, QRCodeURL: QRCodeURL(endpoint, link, 0)}, nil
}

func escape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
