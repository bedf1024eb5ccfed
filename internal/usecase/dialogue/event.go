package dialogue

// Event drives one dialogue transition.
type Event interface {
	event()
}

// UserMessage is free text typed by the user.
type UserMessage struct {
	Text string
}

// SearchNow forces a search with whatever facets are known.
type SearchNow struct{}

// Reset discards facets and results.
type Reset struct{}

// Exit ends the conversation.
type Exit struct{}

func (UserMessage) event() {}
func (SearchNow) event()   {}
func (Reset) event()       {}
func (Exit) event()        {}
