package notification

// Message is a push notification addressed to every device of one user.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}
