package models

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Session is the server-side state behind a session cookie. An anonymous
// session has UserID 0 and may still carry flashes.
type Session struct {
	UserID   uint    `json:"user_id,omitempty"`
	Username string  `json:"username,omitempty"`
	Email    string  `json:"email,omitempty"`
	IsAdmin  bool    `json:"is_admin,omitempty"`
	Flashes  []Flash `json:"flashes,omitempty"`
}

func (s *Session) LoggedIn() bool {
	return s != nil && s.UserID != 0
}

func (s *Session) AddFlash(category, message string) {
	s.Flashes = append(s.Flashes, Flash{Category: category, Message: message})
}

// TakeFlashes returns the pending flashes and clears them.
func (s *Session) TakeFlashes() []Flash {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}
