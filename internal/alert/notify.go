package alert

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/levinOo/go-monitoring-core/internal/models"
)

// Channel определяет сток оповещений. Каналы подключаются к движку
// списком при старте; движок перебирает их по принципу best-effort.
// Реализации не должны блокироваться дольше собственного таймаута:
// движок вызывает их синхронно.
type Channel interface {
	Send(a models.Alert) error
}

const webhookTimeout = 10 * time.Second

// severityColors задаёт цвет вложения в формате входящих веб-хуков чатов.
var severityColors = map[string]string{
	models.SeverityLow:      "good",
	models.SeverityMedium:   "warning",
	models.SeverityHigh:     "danger",
	models.SeverityCritical: "danger",
}

type webhookAttachment struct {
	Color  string         `json:"color"`
	Fields []webhookField `json:"fields"`
}

type webhookField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type webhookPayload struct {
	Text        string              `json:"text"`
	Attachments []webhookAttachment `json:"attachments"`
}

// WebhookChannel отправляет оповещения на входящий веб-хук чата.
type WebhookChannel struct {
	url    string
	client *resty.Client
}

// NewWebhookChannel создаёт канал для заданного URL веб-хука.
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		client: resty.New().SetTimeout(webhookTimeout),
	}
}

func (c *WebhookChannel) Send(a models.Alert) error {
	payload := webhookPayload{
		Text: fmt.Sprintf("*Alert*\n\n*Type:* %s\n*Severity:* %s\n*Message:* %s\n*Value:* %.2f\n*Threshold:* %.2f\n*Time:* %s",
			titleCase(a.Type), strings.ToUpper(a.Severity), a.Message, a.Value, a.Threshold,
			a.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC")),
		Attachments: []webhookAttachment{
			{
				Color: severityColors[a.Severity],
				Fields: []webhookField{
					{Title: "Alert Type", Value: titleCase(a.Type), Short: true},
					{Title: "Severity", Value: strings.ToUpper(a.Severity), Short: true},
				},
			},
		},
	}

	resp, err := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("failed to send webhook alert: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// EmailChannel отправляет оповещения письмом на адрес администратора.
type EmailChannel struct {
	addr string
	from string
	to   string
}

// NewEmailChannel создаёт канал для SMTP-сервера addr (host:port).
func NewEmailChannel(addr, from, to string) *EmailChannel {
	return &EmailChannel{addr: addr, from: from, to: to}
}

func (c *EmailChannel) Send(a models.Alert) error {
	subject := fmt.Sprintf("Alert: %s", titleCase(a.Type))
	body := fmt.Sprintf(
		"System Alert\r\n\r\nType: %s\r\nSeverity: %s\r\nMessage: %s\r\nValue: %.2f\r\nThreshold: %.2f\r\nTime: %s\r\n\r\nPlease check the monitoring dashboard for details.\r\n",
		titleCase(a.Type), strings.ToUpper(a.Severity), a.Message, a.Value, a.Threshold,
		a.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", c.from, c.to, subject, body))

	if err := smtp.SendMail(c.addr, nil, c.from, []string{c.to}, msg); err != nil {
		return fmt.Errorf("failed to send email alert: %w", err)
	}
	return nil
}

// FileChannel дописывает оповещения в JSON-файл. Используется как
// локальный журнал доставки для окружений без внешних каналов.
type FileChannel struct {
	mu   sync.Mutex
	path string
}

// NewFileChannel создаёт канал записи в файл по заданному пути.
func NewFileChannel(path string) *FileChannel {
	return &FileChannel{path: path}
}

func (c *FileChannel) Send(a models.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var alerts []models.Alert

	data, err := os.ReadFile(c.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read alert file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &alerts); err != nil {
			return fmt.Errorf("failed to unmarshal alert file: %w", err)
		}
	}

	alerts = append(alerts, a)

	out, err := json.MarshalIndent(alerts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	if err := os.WriteFile(c.path, out, 0644); err != nil {
		return fmt.Errorf("failed to write alert file: %w", err)
	}
	return nil
}

// titleCase превращает тип оповещения в читаемый заголовок:
// "system_cpu_percent" -> "System Cpu Percent".
func titleCase(typ string) string {
	words := strings.Split(strings.ReplaceAll(typ, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
