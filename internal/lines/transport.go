package lines

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// Transport sends messages from one line number
type Transport interface {
	SendText(ctx context.Context, to, text string) error
	SendImage(ctx context.Context, to, path, caption string) error
}

// TwilioTransport sends WhatsApp messages through the Twilio REST API
type TwilioTransport struct {
	client       *twilio.RestClient
	from         string
	mediaBaseURL string
	logger       *zap.Logger
}

// TwilioFactory opens Twilio transports for every line with shared credentials.
// Images are served by this service under mediaBaseURL + "/media/".
func TwilioFactory(accountSid, authToken, mediaBaseURL string, logger *zap.Logger) TransportFactory {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})
	return func(lineID, number string) (Transport, error) {
		if accountSid == "" || authToken == "" {
			return nil, fmt.Errorf("missing Twilio credentials")
		}
		return &TwilioTransport{
			client:       client,
			from:         whatsappAddress(number),
			mediaBaseURL: strings.TrimRight(mediaBaseURL, "/"),
			logger:       logger.With(zap.String("line_id", lineID)),
		}, nil
	}
}

func (t *TwilioTransport) SendText(ctx context.Context, to, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsappAddress(to))
	params.SetBody(text)
	return t.create(params)
}

func (t *TwilioTransport) SendImage(ctx context.Context, to, path, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.mediaBaseURL == "" {
		return fmt.Errorf("public base url not configured, cannot send %s", filepath.Base(path))
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsappAddress(to))
	params.SetMediaUrl([]string{t.mediaBaseURL + "/media/" + filepath.Base(path)})
	if caption != "" {
		params.SetBody(caption)
	}
	return t.create(params)
}

func (t *TwilioTransport) create(params *twilioApi.CreateMessageParams) error {
	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}
	if resp.Sid != nil {
		t.logger.Debug("twilio message accepted", zap.String("sid", *resp.Sid))
	}
	return nil
}

// LogTransport only logs outbound messages. Used when Twilio is not configured.
type LogTransport struct {
	logger *zap.Logger
}

// LogFactory opens LogTransports
func LogFactory(logger *zap.Logger) TransportFactory {
	return func(lineID, number string) (Transport, error) {
		return &LogTransport{logger: logger.With(zap.String("line_id", lineID))}, nil
	}
}

func (l *LogTransport) SendText(ctx context.Context, to, text string) error {
	l.logger.Info("📤 message (not sent - Twilio not configured)", zap.String("to", to), zap.String("text", text))
	return nil
}

func (l *LogTransport) SendImage(ctx context.Context, to, path, caption string) error {
	l.logger.Info("📤 image (not sent - Twilio not configured)", zap.String("to", to), zap.String("path", path), zap.String("caption", caption))
	return nil
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
