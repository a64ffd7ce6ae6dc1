package whatsapp

import (
	"bytes"
	"fmt"
	"text/template"

	"cafe-pos/internal/store"
)

// Message types understood by the Cloud API
const (
	TypeText     = "text"
	TypeTemplate = "template"
)

// Message is the request body of POST /{phoneNumberId}/messages
type Message struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             *Text     `json:"text,omitempty"`
	Template         *Template `json:"template,omitempty"`
}

type Text struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type Template struct {
	Name       string      `json:"name"`
	Language   Language    `json:"language"`
	Components []Component `json:"components,omitempty"`
}

type Language struct {
	Code string `json:"code"`
}

type Component struct {
	Type       string      `json:"type"`
	Parameters []Parameter `json:"parameters"`
}

type Parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextMessage builds a plain text message
func NewTextMessage(to, body string) Message {
	return Message{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             TypeText,
		Text:             &Text{Body: body},
	}
}

// NewTemplateMessage builds a template message with body parameters
func NewTemplateMessage(to, name, language string, params ...string) Message {
	tpl := &Template{Name: name, Language: Language{Code: language}}
	if len(params) > 0 {
		body := Component{Type: "body"}
		for _, p := range params {
			body.Parameters = append(body.Parameters, Parameter{Type: "text", Text: p})
		}
		tpl.Components = []Component{body}
	}

	return Message{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             TypeTemplate,
		Template:         tpl,
	}
}

var (
	newOrderText = template.Must(template.New("new-order").Parse(
		`New order {{.OrderNumber}}{{if .Table}} at table {{.Table}}{{end}}
Customer: {{if .Customer}}{{.Customer}}{{else}}-{{end}}
Total: {{.Total}}{{if .Notes}}
Notes: {{.Notes}}{{end}}`))

	statusText = template.Must(template.New("order-status").Parse(
		`Hi {{if .Customer}}{{.Customer}}{{else}}there{{end}}, your order {{.OrderNumber}} is now {{.Status}}.`))
)

// orderView is the data passed to the message templates
type orderView struct {
	OrderNumber string
	Customer    string
	Table       string
	Total       string
	Status      string
	Notes       string
}

func newOrderView(order store.Record, currency string) orderView {
	number := order.String("orderNumber")
	if number == "" {
		if id, ok := order.Int64("id"); ok {
			number = fmt.Sprintf("#%d", id)
		}
	}

	table := ""
	if id, ok := order.Int64("tableId"); ok {
		table = fmt.Sprintf("%d", id)
	}

	return orderView{
		OrderNumber: number,
		Customer:    order.String("customerName"),
		Table:       table,
		Total:       formatAmount(order.Float64("total"), currency),
		Status:      order.String("status"),
		Notes:       order.String("notes"),
	}
}

func formatAmount(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%s %.2f", currency, amount)
}

func render(t *template.Template, view orderView) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render %s message: %w", t.Name(), err)
	}
	return buf.String(), nil
}
