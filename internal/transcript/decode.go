package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Entry kinds. Unknown event types decode to KindUnknown rather than being
// dropped, so new transcript event types degrade gracefully.
const (
	KindUser      = "user"
	KindAssistant = "assistant"
	KindSummary   = "summary"
	KindUnknown   = "unknown"
)

// Entry is one decoded transcript event, reduced to what the analysis
// pipeline consumes: who spoke and the text of what was said.
type Entry struct {
	Kind string
	Text string
}

// transcriptLine is the top-level JSON structure of one transcript event.
// The "type" field discriminates the variant.
type transcriptLine struct {
	Type    string          `json:"type"`
	Summary string          `json:"summary"`
	Message json.RawMessage `json:"message"`
}

// transcriptMessage is the message payload of user/assistant events.
// Content is either a plain string or an array of content blocks.
type transcriptMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// contentBlock is one item of an array-form message content.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Name string `json:"name"`
}

// Decode reads newline-delimited transcript events from r. Malformed lines
// are skipped silently; entries with no extractable text are dropped.
func Decode(r io.Reader) []Entry {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)

	var entries []Entry
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event transcriptLine
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}

		switch event.Type {
		case KindSummary:
			if event.Summary != "" {
				entries = append(entries, Entry{Kind: KindSummary, Text: event.Summary})
			}
		case KindUser, KindAssistant:
			text := messageText(event.Message)
			if text != "" {
				entries = append(entries, Entry{Kind: event.Type, Text: text})
			}
		default:
			if event.Type != "" {
				entries = append(entries, Entry{Kind: KindUnknown, Text: event.Type})
			}
		}
	}
	return entries
}

// Load decodes the transcript file at path. An unreadable file is an error;
// the caller decides whether the transcript was required.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()
	return Decode(f), nil
}

// messageText extracts readable text from a message payload. String-form
// content is returned as is; array-form content concatenates text blocks and
// summarizes tool_use blocks by tool name.
func messageText(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var msg transcriptMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ""
	}

	var asString string
	if err := json.Unmarshal(msg.Content, &asString); err == nil {
		return asString
	}

	var blocks []contentBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return ""
	}
	var out string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if out != "" && b.Text != "" {
				out += "\n"
			}
			out += b.Text
		case "tool_use":
			if b.Name != "" {
				if out != "" {
					out += "\n"
				}
				out += "[tool: " + b.Name + "]"
			}
		}
	}
	return out
}
