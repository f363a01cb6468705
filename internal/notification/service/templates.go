package service

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	templateOrderConfirmed = "order_confirmed.html"
	templatePaymentFailed  = "payment_failed.html"
	templateNewSale        = "new_sale.html"
	templateContact        = "contact.html"
)

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type itemView struct {
	Name  string
	Price string
}

type orderView struct {
	BaseURL    string
	Name       string
	Email      string
	DisplayID  string
	Items      []itemView
	Total      string
	AccountURL string
}

type failureView struct {
	BaseURL string
	Name    string
	Amount  string
	Reason  string
	CartURL string
}

type contactView struct {
	BaseURL string
	Name    string
	Email   string
	Subject string
	Message string
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
