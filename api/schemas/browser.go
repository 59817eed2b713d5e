package schemas

// -- Browser Persona Schemas --

// Persona is the identity a session presents in its request headers.
type Persona struct {
	UserAgent string   `json:"userAgent"`
	Languages []string `json:"languages"`
}

// DefaultPersona is used when the configuration does not name a user agent.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	Languages: []string{"en-US", "en"},
}

// Credential holds a username and password pair.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Empty reports whether no username was supplied.
func (c Credential) Empty() bool { return c.Username == "" }
