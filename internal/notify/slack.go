package notify

// SlackMessage is an incoming-webhook message with one attachment per event.
type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []SlackAttachment `json:"attachments"`
}

type SlackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []SlackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

var slackColors = map[Level]string{
	LevelGood: "good",
	LevelWarn: "warning",
	LevelFail: "danger",
}

// NewSlackNotifier posts attachments to a Slack incoming webhook. An empty
// channel uses the webhook's default.
func NewSlackNotifier(url, channel, username string) *HookNotifier {
	if username == "" {
		username = "gitsvc"
	}
	return NewHookNotifier("slack", url, nil, func(event Event) any {
		return SlackMessage{
			Channel:     channel,
			Username:    username,
			IconEmoji:   ":git:",
			Attachments: []SlackAttachment{slackAttachment(event)},
		}
	})
}

func slackAttachment(event Event) SlackAttachment {
	a := SlackAttachment{
		Color:  slackColors[LevelOf(event)],
		Title:  GetEventTitle(event),
		Text:   FormatMessage(event),
		Footer: "gitsvc",
		Ts:     event.Timestamp.Unix(),
	}
	for _, f := range fields(event) {
		a.Fields = append(a.Fields, SlackField{Title: f.name, Value: f.value, Short: true})
	}
	return a
}
