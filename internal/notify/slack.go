package notify

import (
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"

	"github.com/openlews/openlews/internal/database"
)

// SlackNotifier posts alert events to a Slack channel
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier creates a Slack notifier from stored settings
func NewSlackNotifier(settings *database.SlackSettings) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(settings.BotToken),
		channel: settings.AlertsChannel,
	}
}

var levelEmoji = map[database.RiskLevel]string{
	database.RiskLevelYellow: ":large_yellow_circle:",
	database.RiskLevelOrange: ":large_orange_circle:",
	database.RiskLevelRed:    ":red_circle:",
}

var levelColor = map[database.RiskLevel]string{
	database.RiskLevelYellow: "#f2c744",
	database.RiskLevelOrange: "#e8822c",
	database.RiskLevelRed:    "#d63031",
}

// Notify implements Notifier
func (s *SlackNotifier) Notify(event Event, alert *database.Alert) {
	header := fmt.Sprintf("%s *%s landslide alert* (%s)",
		levelEmoji[alert.RiskLevel], alert.RiskLevel, event)

	var b strings.Builder
	fmt.Fprintf(&b, "*Alert:* `%s`\n", alert.UID)
	fmt.Fprintf(&b, "*Location:* %.4f, %.4f\n", alert.Latitude, alert.Longitude)
	fmt.Fprintf(&b, "*Confidence:* %.0f%%\n", alert.Confidence*100)
	if alert.DetectionType == database.DetectionTypeCluster {
		fmt.Fprintf(&b, "*Cluster:* %d sensors around %s\n", alert.ClusterSize, alert.CenterSensorID)
	}
	if alert.TimeToFailure != "" {
		fmt.Fprintf(&b, "*Time to failure:* %s\n", alert.TimeToFailure)
	}
	if alert.RecommendedAction != "" {
		fmt.Fprintf(&b, "*Action:* %s\n", alert.RecommendedAction)
	}
	if alert.Narrative != "" {
		fmt.Fprintf(&b, "\n%s\n", alert.Narrative)
	}

	attachment := slack.Attachment{
		Color: levelColor[alert.RiskLevel],
		Text:  b.String(),
	}

	_, _, err := s.client.PostMessage(s.channel,
		slack.MsgOptionText(header, false),
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		log.Printf("Warning: failed to post alert %s to Slack: %v", alert.UID, err)
	}
}
