package notify

import "time"

// DiscordMessage is a Discord webhook execution body.
type DiscordMessage struct {
	Username string         `json:"username,omitempty"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
}

type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

var discordColors = map[Level]int{
	LevelInfo: 0x3498DB,
	LevelGood: 0x2ECC71,
	LevelWarn: 0xF1C40F,
	LevelFail: 0xE74C3C,
}

// NewDiscordNotifier posts embeds to a Discord webhook.
func NewDiscordNotifier(url, username string) *HookNotifier {
	if username == "" {
		username = "gitsvc"
	}
	return NewHookNotifier("discord", url, nil, func(event Event) any {
		return DiscordMessage{
			Username: username,
			Embeds:   []DiscordEmbed{discordEmbed(event)},
		}
	})
}

func discordEmbed(event Event) DiscordEmbed {
	e := DiscordEmbed{
		Title:       GetEventTitle(event),
		Description: FormatMessage(event),
		Color:       discordColors[LevelOf(event)],
		Timestamp:   event.Timestamp.Format(time.RFC3339),
		Footer:      &DiscordEmbedFooter{Text: "gitsvc"},
	}
	for _, f := range fields(event) {
		e.Fields = append(e.Fields, DiscordEmbedField{Name: f.name, Value: f.value, Inline: true})
	}
	return e
}
