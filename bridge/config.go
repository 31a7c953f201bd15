package bridge

import "fmt"

// Source tells which side of a channel a value came from and whether it is a
// command or a state update.
type Source int

const (
	ItemCommand Source = iota
	ItemState
	HandlerCommand
	HandlerState
)

func (s Source) String() string {
	switch s {
	case ItemCommand:
		return "item-command"
	case ItemState:
		return "item-state"
	case HandlerCommand:
		return "handler-command"
	case HandlerState:
		return "handler-state"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// ParseSource is the inverse of Source.String.
func ParseSource(s string) (Source, bool) {
	for _, src := range []Source{ItemCommand, ItemState, HandlerCommand, HandlerState} {
		if src.String() == s {
			return src, true
		}
	}

	return 0, false
}

type TopicConfig struct {
	ItemCommand    string
	ItemState      string
	HandlerCommand string
	HandlerState   string
}

func (c TopicConfig) names() (topics []string) {
	for _, t := range []string{c.ItemCommand, c.ItemState, c.HandlerCommand, c.HandlerState} {
		if t != "" {
			topics = append(topics, t)
		}
	}

	return
}

func (c TopicConfig) source(topic string) (Source, bool) {
	switch topic {
	case "":
		return 0, false
	case c.ItemCommand:
		return ItemCommand, true
	case c.ItemState:
		return ItemState, true
	case c.HandlerCommand:
		return HandlerCommand, true
	case c.HandlerState:
		return HandlerState, true
	default:
		return 0, false
	}
}
