package views

import (
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

const (
	// MaxTextLength is the longest text Slack accepts in a section block.
	MaxTextLength = 3000
	// MaxHeaderLength is the longest text Slack accepts in a header block.
	MaxHeaderLength = 150
	// MaxMessageBlocks is the most blocks Slack accepts in one message.
	MaxMessageBlocks = 50
)

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

const ellipsis = "…"

// truncate cuts text to at most limit bytes without splitting a rune.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + ellipsis
}

func header(text string) *slack.HeaderBlock {
	return slack.NewHeaderBlock(plain(truncate(text, MaxHeaderLength)))
}

func markdownSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(mrkdwn(text), nil, nil)
}

// contextIf returns a single context line, or nothing when text is empty.
func contextIf(text string) []slack.Block {
	if text == "" {
		return nil
	}
	return []slack.Block{slack.NewContextBlock("", plain(truncate(text, MaxTextLength)))}
}

// plainSectionIf returns a plain text section, or nothing when text is empty.
func plainSectionIf(prefix, text string) []slack.Block {
	if text == "" {
		return nil
	}
	return []slack.Block{slack.NewSectionBlock(plain(truncate(prefix+text, MaxTextLength)), nil, nil)}
}

func linkButtonIf(actionID, value, url string) []slack.BlockElement {
	if url == "" {
		return nil
	}
	button := slack.NewButtonBlockElement(actionID, value, plain("Open in Jira"))
	button.URL = url
	return []slack.BlockElement{button}
}

func option(value string) *slack.OptionBlockObject {
	return slack.NewOptionBlockObject(value, plain(value), nil)
}

// markdownSections renders text as mrkdwn sections, splitting on line
// boundaries so no section exceeds MaxTextLength. A single overlong line is cut.
func markdownSections(text string) []slack.Block {
	if text == "" {
		return nil
	}

	var (
		blocks  []slack.Block
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			blocks = append(blocks, markdownSection(current.String()))
			current.Reset()
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = truncate(line, MaxTextLength)
		extra := len(line)
		if current.Len() > 0 {
			extra++
		}
		if current.Len()+extra > MaxTextLength {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()
	return blocks
}
